package confirm

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	dErrors "weekchain/pkg/domain-errors"
	txcontext "weekchain/pkg/platform/tx"
)

// Postgres serialization failure classes. Units hitting these are safe to
// retry: nothing committed.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// PostgresRunner runs the confirmation unit inside one SQL transaction.
// The per-broker key is not used for locking here: the brokers row itself
// serializes concurrent increments through its row lock, and everything else
// in the unit is keyed by the unique sale id.
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresRunner(db *sql.DB, timeout time.Duration) *PostgresRunner {
	return &PostgresRunner{db: db, timeout: timeout}
}

func (t *PostgresRunner) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "confirmation aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return classifyTxErr(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyTxErr(dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to commit confirmation"))
	}
	return nil
}

func classifyTxErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction aborted, retry")
	}
	return err
}
