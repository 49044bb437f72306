package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"weekchain/internal/commission"
	"weekchain/internal/tier"
	"weekchain/pkg/domain"
	"weekchain/pkg/platform/sentinel"
	txcontext "weekchain/pkg/platform/tx"
)

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

func (s *Postgres) Create(ctx context.Context, rec *commission.Record) error {
	// Duplicate records are tolerated and must not abort an enclosing
	// confirmation transaction, hence ON CONFLICT over a raised violation.
	query := `
		INSERT INTO commission_records (sale_id, broker_id, tier_at_time, rate_applied, amount_owed, units_before, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sale_id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.SaleID),
		uuid.UUID(rec.BrokerID),
		string(rec.TierAtTime),
		rec.RateApplied.String(),
		rec.AmountOwed.String(),
		rec.UnitsBefore,
		rec.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert commission record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert commission record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrDuplicate
	}
	return nil
}

func (s *Postgres) FindBySaleID(ctx context.Context, saleID domain.SaleID) (*commission.Record, error) {
	query := `
		SELECT sale_id, broker_id, tier_at_time, rate_applied, amount_owed, units_before, computed_at
		FROM commission_records
		WHERE sale_id = $1
	`
	var (
		rec      commission.Record
		sID, bID uuid.UUID
		tierName string
		rate     string
		amount   string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(saleID)).
		Scan(&sID, &bID, &tierName, &rate, &amount, &rec.UnitsBefore, &rec.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan commission record: %w", err)
	}

	rec.SaleID = domain.SaleID(sID)
	rec.BrokerID = domain.BrokerID(bID)
	rec.TierAtTime = tier.Name(tierName)
	if rec.RateApplied, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("parse rate: %w", err)
	}
	if rec.AmountOwed, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &rec, nil
}
