package sale

import (
	"context"

	"github.com/shopspring/decimal"

	"weekchain/pkg/domain"
)

// Totals are the public aggregate counters fed by the sales ledger.
type Totals struct {
	ConfirmedCount int64
	GrossVolume    decimal.Decimal
	Units          int64
}

// Store is the append-mostly sales ledger. Historical rows are never updated
// except for the lifecycle status, which only moves forward.
type Store interface {
	// Create appends a new sale. Returns sentinel.ErrDuplicate when a sale
	// with the same id already exists.
	Create(ctx context.Context, s *Sale) error
	// FindByID returns sentinel.ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id domain.SaleID) (*Sale, error)
	// UpdateStatus persists a status transition made on the model, guarded by
	// the status the caller observed. Returns sentinel.ErrInvalidState when the
	// stored status no longer matches, so a concurrent transition can never be
	// overwritten.
	UpdateStatus(ctx context.Context, s *Sale, from Status) error
	// Totals aggregates over confirmed sales only.
	Totals(ctx context.Context) (Totals, error)
}
