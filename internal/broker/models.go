package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"weekchain/internal/tier"
	"weekchain/pkg/domain"
)

// Broker is the ledger row for one referring broker. The tier is never stored:
// it is always derived from CumulativeUnits, so commission math and displayed
// standing cannot drift apart.
//
// CumulativeUnits is monotonically non-decreasing except for explicit
// administrative correction. Brokers are created on their first confirmed
// referred sale and never deleted, only deactivated.
type Broker struct {
	ID              domain.BrokerID
	CumulativeUnits int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Standing is the derived view rendered on broker dashboards.
type Standing struct {
	BrokerID        domain.BrokerID
	TierName        tier.Name
	CumulativeUnits int
	CommissionRate  decimal.Decimal
	BonusUnits      int
	Active          bool
}
