package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"weekchain/internal/certificate"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	txcontext "weekchain/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// Postgres persists certificates. Two unique constraints back the minting
// contract: certificates_sale_id_key (one certificate per sale) and the
// primary key on code (no code reuse across sales). Constraint names
// disambiguate which uniqueness was violated.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts the certificate. Inside a transaction the insert runs under
// a savepoint: a unique violation would otherwise abort the whole confirmation
// unit, and the mint loop needs to retry code collisions on the same
// transaction.
func (s *Postgres) Create(ctx context.Context, c *certificate.Certificate) error {
	tx, inTx := txcontext.From(ctx)
	if !inTx {
		return s.insert(ctx, s.db, c)
	}

	if _, err := tx.ExecContext(ctx, `SAVEPOINT certificate_insert`); err != nil {
		return fmt.Errorf("savepoint certificate insert: %w", err)
	}
	if err := s.insert(ctx, tx, c); err != nil {
		if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT certificate_insert`); rbErr != nil {
			return fmt.Errorf("rollback certificate insert savepoint: %w", rbErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT certificate_insert`); err != nil {
		return fmt.Errorf("release certificate insert savepoint: %w", err)
	}
	return nil
}

func (s *Postgres) insert(ctx context.Context, run dbExecutor, c *certificate.Certificate) error {
	query := `
		INSERT INTO certificates (code, sale_id, buyer_ref, property_ref, unit_count, issued_at, integrity_hash, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := run.ExecContext(ctx, query,
		c.Code,
		uuid.UUID(c.SaleID),
		c.BuyerRef,
		c.PropertyRef,
		c.UnitCount,
		c.IssuedAt,
		c.IntegrityHash,
		c.Revoked,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "certificates_sale_id_key" {
				return sentinel.ErrDuplicate
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

const certificateColumns = `code, sale_id, buyer_ref, property_ref, unit_count, issued_at, integrity_hash, revoked`

func (s *Postgres) FindByCode(ctx context.Context, code string) (*certificate.Certificate, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE code = $1`, code)
	return scanCertificate(row)
}

func (s *Postgres) FindByHash(ctx context.Context, hash string) (*certificate.Certificate, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE integrity_hash = $1`, hash)
	return scanCertificate(row)
}

func (s *Postgres) FindBySaleID(ctx context.Context, saleID domain.SaleID) (*certificate.Certificate, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE sale_id = $1`, uuid.UUID(saleID))
	return scanCertificate(row)
}

func (s *Postgres) SetRevoked(ctx context.Context, code string, revoked bool) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE certificates SET revoked = $2 WHERE code = $1`, code, revoked)
	if err != nil {
		return fmt.Errorf("set certificate revoked: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set certificate revoked: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListRecent(ctx context.Context, limit int) ([]*certificate.Certificate, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates ORDER BY issued_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent certificates: %w", err)
	}
	defer rows.Close()

	var certs []*certificate.Certificate
	for rows.Next() {
		c, err := scanCertificateRow(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return certs, nil
}

func scanCertificate(row *sql.Row) (*certificate.Certificate, error) {
	var (
		c      certificate.Certificate
		saleID uuid.UUID
	)
	err := row.Scan(&c.Code, &saleID, &c.BuyerRef, &c.PropertyRef, &c.UnitCount, &c.IssuedAt, &c.IntegrityHash, &c.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	c.SaleID = domain.SaleID(saleID)
	return &c, nil
}

func scanCertificateRow(rows *sql.Rows) (*certificate.Certificate, error) {
	var (
		c      certificate.Certificate
		saleID uuid.UUID
	)
	err := rows.Scan(&c.Code, &saleID, &c.BuyerRef, &c.PropertyRef, &c.UnitCount, &c.IssuedAt, &c.IntegrityHash, &c.Revoked)
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	c.SaleID = domain.SaleID(saleID)
	return &c, nil
}
