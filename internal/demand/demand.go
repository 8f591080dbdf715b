// Package demand loads delivery quantities from the sources a dispatch
// office actually has: the built-in table, CSV exports and the freight
// department's spreadsheets. Quantities are kilograms keyed by location
// name; name matching against the distance table happens later, so keys
// here keep whatever casing the source used.
package demand

import (
	"context"
)

// Source is one provider of a demand table.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (map[string]int64, error)
}

// Static serves a fixed table, typically straight from configuration.
type Static struct {
	Table map[string]int64
}

func (s Static) Name() string { return "static" }

func (s Static) Fetch(context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.Table))
	for name, kg := range s.Table {
		out[name] = kg
	}
	return out, nil
}

// Defaults is the Western Europe delivery table the planner ships with.
// Transit stops carry no demand and are omitted.
func Defaults() map[string]int64 {
	return map[string]int64{
		"Lille":                 6351,
		"Macon":                 11580,
		"Colmar":                8767,
		"Beauvais":              14781,
		"Nantes":                1900,
		"Rouen":                 22483,
		"Versailles":            2139,
		"Goussainville":         8095,
		"Saint Michel Sur Orge": 13218,
		"Orleans":               10885,
		"Melun":                 3933,
	}
}

// Merge overlays override entries onto base without mutating either.
func Merge(base, override map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(base)+len(override))
	for name, kg := range base {
		out[name] = kg
	}
	for name, kg := range override {
		out[name] = kg
	}
	return out
}
