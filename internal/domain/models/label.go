package models

// LabelThreshold is one bucket of the classification table. Which edge is
// closed depends on the bucket's side of the neutral one, see Contains.
type LabelThreshold struct {
	Label int     `yaml:"label" json:"label"`
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

// Contains reports whether pct falls in the bucket. Buckets below neutral
// are (Lower, Upper], the rest [Lower, Upper), so a shared edge belongs to
// the bucket farther from neutral.
func (t LabelThreshold) Contains(pct float64, belowNeutral bool) bool {
	if belowNeutral {
		return pct > t.Lower && pct <= t.Upper
	}
	return pct >= t.Lower && pct < t.Upper
}

// LabelMode selects which stored records a labeling run touches.
type LabelMode string

const (
	LabelModeFix LabelMode = "fix" // only records without a label
	LabelModeAll LabelMode = "all"
)
