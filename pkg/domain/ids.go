// Package domain holds typed identifiers shared across modules. Distinct uuid
// wrappers keep a BrokerID from ever being passed where a SaleID is expected;
// the compiler enforces the distinction.
package domain

import (
	"github.com/google/uuid"

	dErrors "weekchain/pkg/domain-errors"
)

// BrokerID identifies a referring broker. The identity itself is owned by the
// external identity system; this core only references it.
type BrokerID uuid.UUID

// SaleID identifies a sale. Assigned by the purchase orchestrator, immutable.
type SaleID uuid.UUID

func (id BrokerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BrokerID) String() string { return uuid.UUID(id).String() }

func (id SaleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SaleID) String() string { return uuid.UUID(id).String() }

// ParseBrokerID validates and parses a broker id at a trust boundary.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseBrokerID(s string) (BrokerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BrokerID{}, err
	}
	return BrokerID(u), nil
}

// ParseSaleID validates and parses a sale id at a trust boundary.
func ParseSaleID(s string) (SaleID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SaleID{}, err
	}
	return SaleID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return u, nil
}
