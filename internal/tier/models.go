package tier

import "github.com/shopspring/decimal"

// Name labels a commission band. The set is ordered and extensible through
// configuration; these are the defaults shipped with the service.
type Name string

const (
	NameEntry  Name = "Entry"
	NameSilver Name = "Silver"
	NameGold   Name = "Gold"
)

// Definition is one band of the tier table: an inclusive range of cumulative
// referred units carrying a fixed commission rate and a bonus-unit entitlement.
// MaxUnits nil means the band is unbounded above (the top tier).
type Definition struct {
	Name           Name
	MinUnits       int
	MaxUnits       *int
	CommissionRate decimal.Decimal
	BonusUnits     int
}

// Contains reports whether the band covers the given cumulative unit count.
func (d Definition) Contains(units int) bool {
	if units < d.MinUnits {
		return false
	}
	return d.MaxUnits == nil || units <= *d.MaxUnits
}
