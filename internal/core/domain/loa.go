package domain

import "fmt"

// LevelOfAssurance is the ordered trust-strength tag attached to an
// authentication, per the eIDAS regulation.
type LevelOfAssurance string

const (
	LoALow         LevelOfAssurance = "http://eidas.europa.eu/LoA/low"
	LoASubstantial LevelOfAssurance = "http://eidas.europa.eu/LoA/substantial"
	LoAHigh        LevelOfAssurance = "http://eidas.europa.eu/LoA/high"
)

// LoAComparison selects how an offered level is matched against the
// requested one.
type LoAComparison string

const (
	// ComparisonMinimum accepts any offered level at or above the requested one.
	ComparisonMinimum LoAComparison = "minimum"

	// ComparisonExact accepts only the exact requested level.
	ComparisonExact LoAComparison = "exact"
)

// loaOrder ranks the known levels. Unknown levels rank below low.
var loaOrder = map[LevelOfAssurance]int{
	LoALow:         1,
	LoASubstantial: 2,
	LoAHigh:        3,
}

// ParseLevelOfAssurance accepts either the full URI or the short form
// ("low", "substantial", "high").
func ParseLevelOfAssurance(s string) (LevelOfAssurance, error) {
	switch s {
	case string(LoALow), "low":
		return LoALow, nil
	case string(LoASubstantial), "substantial":
		return LoASubstantial, nil
	case string(LoAHigh), "high":
		return LoAHigh, nil
	}
	return "", fmt.Errorf("unknown level of assurance %q", s)
}

// ValidateLoAComparison reports whether c is a valid comparison mode.
// Empty defaults to minimum.
func ValidateLoAComparison(c LoAComparison) error {
	switch c {
	case "", ComparisonMinimum, ComparisonExact:
		return nil
	}
	return fmt.Errorf("invalid LoA comparison %q (must be minimum or exact)", c)
}

// Rank returns the numeric rank of the level, 0 for unknown levels.
func (l LevelOfAssurance) Rank() int {
	return loaOrder[l]
}

// Satisfies reports whether the offered level l meets the required level
// under the given comparison mode. An empty comparison means minimum.
// This is a pure function with no side effects or I/O.
func (l LevelOfAssurance) Satisfies(required LevelOfAssurance, comparison LoAComparison) bool {
	switch comparison {
	case ComparisonExact:
		return l == required
	default:
		return l.Rank() >= required.Rank() && l.Rank() > 0
	}
}
