package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"weekchain/internal/sale"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	txcontext "weekchain/pkg/platform/tx"
)

// Postgres is the durable sales ledger. All statements pick up the SQL
// transaction from context when the confirmation unit is running, so the
// ledger append commits or rolls back with the rest of the unit.
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

func (s *Postgres) Create(ctx context.Context, sl *sale.Sale) error {
	var brokerID *uuid.UUID
	if sl.BrokerID != nil {
		b := uuid.UUID(*sl.BrokerID)
		brokerID = &b
	}

	// ON CONFLICT DO NOTHING keeps a duplicate append from aborting the
	// enclosing confirmation transaction; the zero row count reports it.
	query := `
		INSERT INTO sales (id, broker_id, gross_amount, unit_count, property_ref, buyer_ref, season, status, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(sl.ID),
		brokerID,
		sl.GrossAmount.String(),
		sl.UnitCount,
		sl.PropertyRef,
		sl.BuyerRef,
		sl.Season,
		string(sl.Status),
		sl.CreatedAt,
		sl.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.SaleID) (*sale.Sale, error) {
	query := `
		SELECT id, broker_id, gross_amount, unit_count, property_ref, buyer_ref, season, status, created_at, confirmed_at
		FROM sales
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id))
	return scanSale(row)
}

func (s *Postgres) UpdateStatus(ctx context.Context, sl *sale.Sale, from sale.Status) error {
	query := `
		UPDATE sales
		SET status = $2, confirmed_at = $3
		WHERE id = $1 AND status = $4
	`
	run := s.execer(ctx)
	res, err := run.ExecContext(ctx, query, uuid.UUID(sl.ID), string(sl.Status), sl.ConfirmedAt, string(from))
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	if affected == 0 {
		// Zero rows means either the sale does not exist or its status moved
		// on concurrently. Tell those apart for the caller.
		var exists bool
		if err := run.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, uuid.UUID(sl.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("update sale status: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) Totals(ctx context.Context) (sale.Totals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(gross_amount), 0), COALESCE(SUM(unit_count), 0)
		FROM sales
		WHERE status = 'confirmed'
	`
	var (
		t      sale.Totals
		volume string
	)
	if err := s.execer(ctx).QueryRowContext(ctx, query).Scan(&t.ConfirmedCount, &volume, &t.Units); err != nil {
		return sale.Totals{}, fmt.Errorf("aggregate sales: %w", err)
	}
	gross, err := decimal.NewFromString(volume)
	if err != nil {
		return sale.Totals{}, fmt.Errorf("parse aggregate volume: %w", err)
	}
	t.GrossVolume = gross
	return t, nil
}

func scanSale(row *sql.Row) (*sale.Sale, error) {
	var (
		sl          sale.Sale
		id          uuid.UUID
		brokerID    *uuid.UUID
		gross       string
		status      string
		confirmedAt *time.Time
	)
	err := row.Scan(&id, &brokerID, &gross, &sl.UnitCount, &sl.PropertyRef, &sl.BuyerRef, &sl.Season, &status, &sl.CreatedAt, &confirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sale: %w", err)
	}

	sl.ID = domain.SaleID(id)
	if brokerID != nil {
		b := domain.BrokerID(*brokerID)
		sl.BrokerID = &b
	}
	amount, err := decimal.NewFromString(gross)
	if err != nil {
		return nil, fmt.Errorf("parse gross amount: %w", err)
	}
	sl.GrossAmount = amount
	sl.Status = sale.Status(status)
	sl.ConfirmedAt = confirmedAt
	return &sl, nil
}
