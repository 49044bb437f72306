package commission

import (
	"time"

	"github.com/shopspring/decimal"

	"weekchain/internal/tier"
	"weekchain/pkg/domain"
)

// Record is the commission owed for one confirmed sale. TierAtTime and
// RateApplied are snapshots taken at computation time and are immutable even
// if the broker's tier later changes: commissions are never retroactively
// recalculated.
type Record struct {
	SaleID      domain.SaleID
	BrokerID    domain.BrokerID
	TierAtTime  tier.Name
	RateApplied decimal.Decimal
	AmountOwed  decimal.Decimal
	UnitsBefore int
	ComputedAt  time.Time
}
