package broker

import (
	"context"

	"weekchain/pkg/domain"
)

// Store is the mutable-but-serialized broker ledger. IncrementUnits is the
// only hot-path mutation and must be atomic per broker: two concurrent
// confirmations for the same broker serialize such that each sees a consistent
// unitsBefore snapshot and the final total reflects both additions exactly
// once. The Postgres implementation relies on a row-level atomic
// increment-and-read; the in-memory implementation relies on the per-broker
// serialization provided by the confirmation transaction runner plus its own
// mutex.
type Store interface {
	// IncrementUnits adds n units to the broker's cumulative total, creating
	// the broker on first confirmed sale. Returns the totals before and after.
	IncrementUnits(ctx context.Context, id domain.BrokerID, n int) (unitsBefore, unitsAfter int, err error)
	// FindByID returns sentinel.ErrNotFound for unknown brokers.
	FindByID(ctx context.Context, id domain.BrokerID) (*Broker, error)
	// AdjustUnits applies an administrative correction (delta may be
	// negative); the resulting total must stay non-negative or the
	// correction is rejected with sentinel.ErrInvalidState.
	AdjustUnits(ctx context.Context, id domain.BrokerID, delta int) (unitsAfter int, err error)
	// SetActive flips the broker lifecycle flag. Deactivated brokers keep
	// their history; nothing is ever deleted.
	SetActive(ctx context.Context, id domain.BrokerID, active bool) error
}
