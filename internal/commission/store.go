package commission

import (
	"context"

	"weekchain/pkg/domain"
)

// Store persists commission records, 1:1 with confirmed sales.
type Store interface {
	// Create appends a record. Returns sentinel.ErrDuplicate when a record
	// for the same sale already exists; callers treat that as an idempotent
	// replay, never as a reason to recompute.
	Create(ctx context.Context, rec *Record) error
	// FindBySaleID returns sentinel.ErrNotFound when no record exists.
	FindBySaleID(ctx context.Context, saleID domain.SaleID) (*Record, error)
}
