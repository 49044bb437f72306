package commission

import (
	"time"

	"weekchain/internal/sale"
	"weekchain/internal/tier"
)

// Compute determines the commission owed for one sale. Pure function, no side
// effects, so payout math stays independently testable.
//
// The tier is resolved from the broker's cumulative units BEFORE this sale's
// units are added: the sale that pushes a broker over a threshold is paid at
// the pre-promotion rate, and the promotion takes effect for the next sale.
// This tie-break directly affects payout amounts, so it is explicit here and
// pinned by tests.
//
// The amount is gross_amount x rate, rounded to the smallest currency unit
// with banker's rounding.
func Compute(table *tier.Table, s *sale.Sale, unitsBeforeSale int, now time.Time) Record {
	t := table.Resolve(unitsBeforeSale)
	amount := s.GrossAmount.Mul(t.CommissionRate).RoundBank(2)
	return Record{
		SaleID:      s.ID,
		BrokerID:    *s.BrokerID,
		TierAtTime:  t.Name,
		RateApplied: t.CommissionRate,
		AmountOwed:  amount,
		UnitsBefore: unitsBeforeSale,
		ComputedAt:  now,
	}
}
