package tier

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileSchema is the YAML layout of an external tier table, e.g.
//
//	tiers:
//	  - name: Entry
//	    min_units: 0
//	    max_units: 23
//	    commission_rate: "0.04"
//	    bonus_units: 0
//
// The top tier omits max_units to mark it unbounded.
type fileSchema struct {
	Tiers []struct {
		Name           string `yaml:"name"`
		MinUnits       int    `yaml:"min_units"`
		MaxUnits       *int   `yaml:"max_units"`
		CommissionRate string `yaml:"commission_rate"`
		BonusUnits     int    `yaml:"bonus_units"`
	} `yaml:"tiers"`
}

// LoadFile reads and validates a tier table from a YAML file. Any parse or
// validation failure is fatal to startup, matching the configuration-error
// policy: never serve with a malformed table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier table: %w", err)
	}
	var f fileSchema
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}

	defs := make([]Definition, 0, len(f.Tiers))
	for _, t := range f.Tiers {
		rate, err := decimal.NewFromString(t.CommissionRate)
		if err != nil {
			return nil, fmt.Errorf("tier %q: invalid commission rate %q: %w", t.Name, t.CommissionRate, err)
		}
		defs = append(defs, Definition{
			Name:           Name(t.Name),
			MinUnits:       t.MinUnits,
			MaxUnits:       t.MaxUnits,
			CommissionRate: rate,
			BonusUnits:     t.BonusUnits,
		})
	}
	return NewTable(defs)
}
