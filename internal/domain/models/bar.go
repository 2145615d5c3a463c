package models

import "time"

// BarInterval is the sampling granularity of a candle series.
type BarInterval string

const (
	Bar15m BarInterval = "15m"
	Bar1H  BarInterval = "1H"
	Bar4H  BarInterval = "4H"
	Bar1D  BarInterval = "1D"
)

// Duration returns the spacing between consecutive candles, or 0 if unknown.
func (b BarInterval) Duration() time.Duration {
	switch b {
	case Bar15m:
		return 15 * time.Minute
	case Bar1H:
		return time.Hour
	case Bar4H:
		return 4 * time.Hour
	case Bar1D:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Millis is Duration in milliseconds.
func (b BarInterval) Millis() int64 { return b.Duration().Milliseconds() }

func (b BarInterval) String() string { return string(b) }

// AllBars lists the granularities merged into one feature record.
func AllBars() []BarInterval { return []BarInterval{Bar15m, Bar1H, Bar4H, Bar1D} }
