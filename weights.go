package geonarrative

import (
	"fmt"
	"math"
)

// MaxSpatialWeight is the largest λ a weight table may assign.
const MaxSpatialWeight = 0.4

// WeightTable maps a classification to its spatial weight λ.
type WeightTable struct {
	Syndicated      float64 `yaml:"syndicated" json:"syndicated"`
	LocalWithQuotes float64 `yaml:"local_with_quotes" json:"local_with_quotes"`
	LocalOrQuotes   float64 `yaml:"local_or_quotes" json:"local_or_quotes"`
	Default         float64 `yaml:"default" json:"default"`
}

// DefaultWeightTable returns the adaptive λ mapping.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		Syndicated:      0.00,
		LocalWithQuotes: 0.40,
		LocalOrQuotes:   0.25,
		Default:         0.15,
	}
}

// FixedWeightTable gives every classification the same λ. It is the
// non-adaptive baseline used when comparing methods.
func FixedWeightTable(lambda float64) WeightTable {
	return WeightTable{Syndicated: lambda, LocalWithQuotes: lambda, LocalOrQuotes: lambda, Default: lambda}
}

// Validate checks that every λ lies in [0, MaxSpatialWeight].
func (t WeightTable) Validate() error {
	entries := []struct {
		name  string
		value float64
	}{
		{"syndicated", t.Syndicated},
		{"local_with_quotes", t.LocalWithQuotes},
		{"local_or_quotes", t.LocalOrQuotes},
		{"default", t.Default},
	}
	for _, e := range entries {
		if math.IsNaN(e.value) || e.value < 0 || e.value > MaxSpatialWeight {
			return inputErrorf("", "weights."+e.name, "λ %v outside [0, %v]", e.value, MaxSpatialWeight)
		}
	}
	return nil
}

// Lambda returns the spatial weight for c. Unknown labels get the default.
func (t WeightTable) Lambda(c Classification) float64 {
	switch c {
	case Syndicated:
		return t.Syndicated
	case LocalWithQuotes:
		return t.LocalWithQuotes
	case LocalOrQuotes:
		return t.LocalOrQuotes
	default:
		return t.Default
	}
}

func (t WeightTable) String() string {
	return fmt.Sprintf("syndicated=%.2f local_with_quotes=%.2f local_or_quotes=%.2f default=%.2f",
		t.Syndicated, t.LocalWithQuotes, t.LocalOrQuotes, t.Default)
}
