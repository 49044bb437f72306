package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"weekchain/pkg/domain"
	dErrors "weekchain/pkg/domain-errors"
	"weekchain/pkg/platform/sentinel"
)

// Status is the sale lifecycle state. Transitions are strictly forward:
// pending -> confirmed, or pending -> cancelled. A confirmed sale can never
// be cancelled and a cancelled sale can never be confirmed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Sale is one settled purchase handed over by the purchase orchestrator.
// Amounts are already settled and expressed in the reference currency.
// BrokerID is nil for sales that were not broker-referred.
type Sale struct {
	ID          domain.SaleID
	BrokerID    *domain.BrokerID
	GrossAmount decimal.Decimal
	UnitCount   int
	PropertyRef string
	BuyerRef    string
	Season      string
	Status      Status
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// New validates the immutable sale attributes and returns a pending sale.
// Validation happens before any state mutation, so a rejected sale leaves
// no trace in any ledger.
func New(id domain.SaleID, brokerID *domain.BrokerID, gross decimal.Decimal, unitCount int, propertyRef, buyerRef, season string, now time.Time) (*Sale, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sale id is required")
	}
	if brokerID != nil && brokerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "broker id must not be the nil uuid")
	}
	if !gross.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "gross amount must be positive")
	}
	if unitCount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unit count must be positive")
	}
	if propertyRef == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property reference is required")
	}
	if buyerRef == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "buyer reference is required")
	}
	return &Sale{
		ID:          id,
		BrokerID:    brokerID,
		GrossAmount: gross,
		UnitCount:   unitCount,
		PropertyRef: propertyRef,
		BuyerRef:    buyerRef,
		Season:      season,
		Status:      StatusPending,
		CreatedAt:   now,
	}, nil
}

// Confirm transitions the sale to confirmed. ConfirmedAt is set exactly once.
func (s *Sale) Confirm(at time.Time) error {
	switch s.Status {
	case StatusPending:
		s.Status = StatusConfirmed
		s.ConfirmedAt = &at
		return nil
	case StatusConfirmed:
		return sentinel.ErrDuplicate
	default:
		return sentinel.ErrInvalidState
	}
}

// Cancel transitions a pending sale to cancelled, excluding it from all
// ledgers. Cancelling after confirmation is disallowed.
func (s *Sale) Cancel() error {
	switch s.Status {
	case StatusPending:
		s.Status = StatusCancelled
		return nil
	case StatusCancelled:
		return sentinel.ErrDuplicate
	default:
		return sentinel.ErrInvalidState
	}
}
