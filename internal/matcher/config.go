// Package matcher provides the keyed lookups the reconciliation engine joins on.
//
// Every identifier comparison goes through NormalizeKey, so a code read from a
// spreadsheet as 500.0 and one read from CSV as "500" compare equal. The package
// builds three indexes over the loaded tables:
//   - MaterialIndex resolves an item id to its product name and material codes
//   - SupplyIndex groups supply records by PO number in table order
//   - StockIndex groups stock on hand by material code
//
// City names are resolved to the warehouse city that serves them by a
// CityResolver built from DefaultCityAliases plus configured overrides.
//
// Example usage:
//
//	config := matcher.DefaultConfig()
//	config.CityAliases["vapi"] = "ahmedabad"
//
//	cities := config.NewCityResolver()
//	materials := matcher.NewMaterialIndex(entries)
//	codes := materials.MaterialCodes(line.ItemID)
package matcher

import (
	"fmt"
	"strings"
)

// Config holds the matching options that can be changed from configuration
type Config struct {
	// CityAliases overrides or extends the default city alias table.
	// Keys are raw city names, values are canonical warehouse cities.
	CityAliases map[string]string `json:"city_aliases" mapstructure:"city_aliases" yaml:"city_aliases"`
}

// DefaultConfig returns a configuration with no alias overrides
func DefaultConfig() *Config {
	return &Config{
		CityAliases: make(map[string]string),
	}
}

// Validate checks that every alias maps a non-empty name to a non-empty city
func (c *Config) Validate() error {
	for raw, canonical := range c.CityAliases {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("city alias with empty name maps to %q", canonical)
		}
		if strings.TrimSpace(canonical) == "" {
			return fmt.Errorf("city alias %q has an empty target", raw)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := DefaultConfig()
	for raw, canonical := range c.CityAliases {
		clone.CityAliases[raw] = canonical
	}
	return clone
}

// NewCityResolver builds a CityResolver from the defaults and the configured overrides
func (c *Config) NewCityResolver() *CityResolver {
	return NewCityResolver(c.CityAliases)
}
