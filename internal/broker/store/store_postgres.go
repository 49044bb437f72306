package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"weekchain/internal/broker"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	txcontext "weekchain/pkg/platform/tx"
)

// Postgres is the durable broker ledger. Per-broker serialization under
// concurrent confirmations comes from the database: the upsert below is an
// atomic increment-and-read, and inside the confirmation transaction the row
// lock it takes holds until commit.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) IncrementUnits(ctx context.Context, id domain.BrokerID, n int) (int, int, error) {
	if n <= 0 {
		return 0, 0, sentinel.ErrInvalidState
	}

	query := `
		INSERT INTO brokers (id, cumulative_units, active, created_at, updated_at)
		VALUES ($1, $2, TRUE, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET cumulative_units = brokers.cumulative_units + EXCLUDED.cumulative_units,
		    updated_at = now()
		RETURNING cumulative_units
	`
	var after int
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id), n).Scan(&after); err != nil {
		return 0, 0, fmt.Errorf("increment broker units: %w", err)
	}
	return after - n, after, nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.BrokerID) (*broker.Broker, error) {
	query := `
		SELECT id, cumulative_units, active, created_at, updated_at
		FROM brokers
		WHERE id = $1
	`
	var (
		b   broker.Broker
		bID uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)).
		Scan(&bID, &b.CumulativeUnits, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan broker: %w", err)
	}
	b.ID = domain.BrokerID(bID)
	return &b, nil
}

func (s *Postgres) AdjustUnits(ctx context.Context, id domain.BrokerID, delta int) (int, error) {
	// The WHERE clause rejects corrections that would push the total
	// negative; zero rows affected then distinguishes "not found" from
	// "would go negative".
	query := `
		UPDATE brokers
		SET cumulative_units = cumulative_units + $2, updated_at = now()
		WHERE id = $1 AND cumulative_units + $2 >= 0
		RETURNING cumulative_units
	`
	var after int
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id), delta).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return 0, sentinel.ErrNotFound
		}
		return 0, sentinel.ErrInvalidState
	}
	if err != nil {
		return 0, fmt.Errorf("adjust broker units: %w", err)
	}
	return after, nil
}

func (s *Postgres) SetActive(ctx context.Context, id domain.BrokerID, active bool) error {
	query := `UPDATE brokers SET active = $2, updated_at = now() WHERE id = $1`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(id), active)
	if err != nil {
		return fmt.Errorf("set broker active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set broker active: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
