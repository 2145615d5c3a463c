package repository

import "FeatPipe/internal/domain/models"

// IsValidBar returns true if b is a supported bar interval.
func IsValidBar(b models.BarInterval) bool {
	switch b {
	case models.Bar15m, models.Bar1H, models.Bar4H, models.Bar1D:
		return true
	default:
		return false
	}
}

// DefaultBar is the anchor granularity.
func DefaultBar() models.BarInterval { return models.Bar1H }

// NormalizeBar converts a raw string to a valid bar (or default).
// Lower-case hour/day spellings are accepted.
func NormalizeBar(s string) models.BarInterval {
	switch s {
	case "":
		return DefaultBar()
	case "1h":
		return models.Bar1H
	case "4h":
		return models.Bar4H
	case "1d":
		return models.Bar1D
	}
	b := models.BarInterval(s)
	if IsValidBar(b) {
		return b
	}
	return DefaultBar()
}
