package tier

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Table is the ordered, contiguous set of tier definitions. It is immutable
// after construction and safe for unsynchronized concurrent reads; Resolve is
// total over non-negative unit counts.
type Table struct {
	defs []Definition
}

// NewTable validates the configured bands. A malformed table (gap, overlap,
// out-of-range rate, bounded top tier) is a startup-time configuration error:
// the service refuses to start rather than serve incorrect commission math.
func NewTable(defs []Definition) (*Table, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("tier table must not be empty")
	}
	if defs[0].MinUnits != 0 {
		return nil, fmt.Errorf("first tier %q must start at 0 units, starts at %d", defs[0].Name, defs[0].MinUnits)
	}
	one := decimal.NewFromInt(1)
	for i, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tier %d has no name", i)
		}
		if !d.CommissionRate.IsPositive() || d.CommissionRate.GreaterThan(one) {
			return nil, fmt.Errorf("tier %q commission rate %s outside (0,1]", d.Name, d.CommissionRate)
		}
		if d.BonusUnits < 0 {
			return nil, fmt.Errorf("tier %q bonus units must not be negative", d.Name)
		}
		if i < len(defs)-1 {
			if d.MaxUnits == nil {
				return nil, fmt.Errorf("tier %q is unbounded but is not the top tier", d.Name)
			}
			if *d.MaxUnits < d.MinUnits {
				return nil, fmt.Errorf("tier %q range [%d,%d] is inverted", d.Name, d.MinUnits, *d.MaxUnits)
			}
			if next := defs[i+1]; next.MinUnits != *d.MaxUnits+1 {
				return nil, fmt.Errorf("tiers %q and %q are not contiguous: [..,%d] then [%d,..]",
					d.Name, next.Name, *d.MaxUnits, next.MinUnits)
			}
		} else if d.MaxUnits != nil {
			return nil, fmt.Errorf("top tier %q must be unbounded", d.Name)
		}
	}

	cp := make([]Definition, len(defs))
	copy(cp, defs)
	return &Table{defs: cp}, nil
}

// Default returns the shipped tier table:
// Entry [0,23] 4%, Silver [24,47] 5% +1 bonus unit, Gold [48,∞) 6% +2.
func Default() *Table {
	max23, max47 := 23, 47
	t, err := NewTable([]Definition{
		{Name: NameEntry, MinUnits: 0, MaxUnits: &max23, CommissionRate: decimal.RequireFromString("0.04")},
		{Name: NameSilver, MinUnits: 24, MaxUnits: &max47, CommissionRate: decimal.RequireFromString("0.05"), BonusUnits: 1},
		{Name: NameGold, MinUnits: 48, CommissionRate: decimal.RequireFromString("0.06"), BonusUnits: 2},
	})
	if err != nil {
		panic(err) // unreachable: the default table is validated by tests
	}
	return t
}

// Resolve returns the tier covering the given cumulative unit count.
// Total over non-negative integers; negative counts clamp to the first band.
func (t *Table) Resolve(cumulativeUnits int) Definition {
	if cumulativeUnits < 0 {
		cumulativeUnits = 0
	}
	for _, d := range t.defs {
		if d.Contains(cumulativeUnits) {
			return d
		}
	}
	// Unreachable for a validated table: the top band is unbounded.
	return t.defs[len(t.defs)-1]
}

// Definitions returns a copy of the configured bands, for display surfaces.
func (t *Table) Definitions() []Definition {
	cp := make([]Definition, len(t.defs))
	copy(cp, t.defs)
	return cp
}
