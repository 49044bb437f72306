package commission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekchain/internal/sale"
	"weekchain/internal/tier"
	"weekchain/pkg/domain"
)

func referredSale(t *testing.T, amount string, units int) *sale.Sale {
	t.Helper()
	brokerID := domain.BrokerID(uuid.New())
	s, err := sale.New(
		domain.SaleID(uuid.New()),
		&brokerID,
		decimal.RequireFromString(amount),
		units,
		"villa-mar-12",
		"buyer-4711",
		"high",
		time.Now(),
	)
	require.NoError(t, err)
	return s
}

// The sale that crosses a tier threshold is paid at the pre-promotion rate;
// the promotion only applies to subsequent sales.
func TestComputeUsesPrePromotionSnapshot(t *testing.T) {
	table := tier.Default()

	// Broker holds 23 units, sale of 5 crosses into Silver territory -
	// but the snapshot before the sale is Entry.
	s := referredSale(t, "10000.00", 5)
	rec := Compute(table, s, 23, time.Now())

	assert.Equal(t, tier.NameEntry, rec.TierAtTime)
	assert.Equal(t, "0.04", rec.RateApplied.String())
	assert.True(t, rec.AmountOwed.Equal(decimal.RequireFromString("400.00")), "got %s", rec.AmountOwed)
	assert.Equal(t, 23, rec.UnitsBefore)
}

func TestComputeRatePerTierSnapshot(t *testing.T) {
	table := tier.Default()
	cases := []struct {
		unitsBefore int
		wantTier    tier.Name
		wantRate    string
	}{
		{0, tier.NameEntry, "0.04"},
		{23, tier.NameEntry, "0.04"},
		{24, tier.NameSilver, "0.05"},
		{47, tier.NameSilver, "0.05"},
		{48, tier.NameGold, "0.06"},
		{500, tier.NameGold, "0.06"},
	}
	for _, c := range cases {
		rec := Compute(table, referredSale(t, "1000.00", 1), c.unitsBefore, time.Now())
		assert.Equal(t, c.wantTier, rec.TierAtTime, "unitsBefore=%d", c.unitsBefore)
		assert.Equal(t, c.wantRate, rec.RateApplied.String(), "unitsBefore=%d", c.unitsBefore)
	}
}

// Worked scenario from the payout policy: three sales of 10, 15 and 25 units.
// Sales 1 and 2 are paid at Entry; sale 3 sees 25 units before it and is paid
// at Silver; afterwards the broker stands at 50 units, Gold for the next sale.
func TestComputeThreeSaleScenario(t *testing.T) {
	table := tier.Default()
	now := time.Now()

	rec1 := Compute(table, referredSale(t, "1000.00", 10), 0, now)
	assert.Equal(t, tier.NameEntry, rec1.TierAtTime)

	rec2 := Compute(table, referredSale(t, "1000.00", 15), 10, now)
	assert.Equal(t, tier.NameEntry, rec2.TierAtTime)

	rec3 := Compute(table, referredSale(t, "1000.00", 25), 25, now)
	assert.Equal(t, tier.NameSilver, rec3.TierAtTime)
	assert.Equal(t, "0.05", rec3.RateApplied.String())

	assert.Equal(t, tier.NameGold, table.Resolve(50).Name)
}

// Banker's rounding: ties round to the even cent.
func TestComputeBankersRounding(t *testing.T) {
	table := tier.Default()

	// 101.125 * 0.04 = 4.045 -> rounds to 4.04 (4 is even), not 4.05.
	rec := Compute(table, referredSale(t, "101.125", 1), 0, time.Now())
	assert.True(t, rec.AmountOwed.Equal(decimal.RequireFromString("4.04")), "got %s", rec.AmountOwed)

	// 101.875 * 0.04 = 4.075 -> rounds to 4.08 (8 is even).
	rec = Compute(table, referredSale(t, "101.875", 1), 0, time.Now())
	assert.True(t, rec.AmountOwed.Equal(decimal.RequireFromString("4.08")), "got %s", rec.AmountOwed)
}
