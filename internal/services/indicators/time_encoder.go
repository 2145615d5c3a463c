package indicators

import "math"

// EncodeHour maps an hour of day onto the unit circle.
func EncodeHour(hour int) (cos, sin float64) {
	rad := float64(hour) * 2 * math.Pi / 24
	return math.Cos(rad), math.Sin(rad)
}
