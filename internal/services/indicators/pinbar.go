package indicators

import "math"

type ShadowType int

const (
	ShadowBalanced ShadowType = iota
	ShadowLongUpper
	ShadowLongLower
	ShadowBothLong
)

// Pinbar measures the shape of a single candle. A shadow is long when it
// exceeds the body times LongShadowThreshold; the candle is a doji when the
// body is below DojiThreshold of the full range.
type Pinbar struct {
	LongShadowThreshold float64
	DojiThreshold       float64
}

func DefaultPinbar() Pinbar { return Pinbar{LongShadowThreshold: 1.0, DojiThreshold: 0.1} }

type PinbarShape struct {
	UpperShadow      float64
	LowerShadow      float64
	BodyHeight       float64
	UpperShadowRatio float64
	LowerShadowRatio float64
	TotalShadowRatio float64
	ShadowImbalance  float64
	BodyRatio        float64
	IsLongUpper      bool
	IsLongLower      bool
	IsDoji           bool
	ShadowType       ShadowType
}

func (p Pinbar) Name() string { return "pinbar" }

// Shape returns the zero shape when the candle has no range.
func (p Pinbar) Shape(open, high, low, closePx float64) PinbarShape {
	rng := high - low
	if !(rng > 0) {
		return PinbarShape{}
	}
	top := math.Max(open, closePx)
	bottom := math.Min(open, closePx)

	s := PinbarShape{
		UpperShadow: high - top,
		LowerShadow: bottom - low,
		BodyHeight:  top - bottom,
	}
	if s.BodyHeight > 0 {
		s.UpperShadowRatio = s.UpperShadow / s.BodyHeight
		s.LowerShadowRatio = s.LowerShadow / s.BodyHeight
	}
	s.TotalShadowRatio = (s.UpperShadow + s.LowerShadow) / rng
	s.ShadowImbalance = (s.UpperShadow - s.LowerShadow) / rng
	s.BodyRatio = s.BodyHeight / rng

	s.IsLongUpper = s.UpperShadow > s.BodyHeight*p.LongShadowThreshold
	s.IsLongLower = s.LowerShadow > s.BodyHeight*p.LongShadowThreshold
	s.IsDoji = s.BodyHeight < rng*p.DojiThreshold

	switch {
	case s.IsLongUpper && s.IsLongLower:
		s.ShadowType = ShadowBothLong
	case s.IsLongUpper:
		s.ShadowType = ShadowLongUpper
	case s.IsLongLower:
		s.ShadowType = ShadowLongLower
	}
	return s
}

// Last measures the final row of f.
func (p Pinbar) Last(f Frame) (PinbarShape, error) {
	if len(f.Open) != len(f.Close) {
		return PinbarShape{}, ErrMismatchedColumns
	}
	high, low, closes, err := f.hlc()
	if err != nil {
		return PinbarShape{}, err
	}
	if err := needLen(p.Name(), len(closes), 1); err != nil {
		return PinbarShape{}, err
	}
	i := len(closes) - 1
	return p.Shape(f.Open[i], high[i], low[i], closes[i]), nil
}

func (p Pinbar) Compute(f Frame) (Result, error) {
	s, err := p.Last(f)
	if err != nil {
		return nil, err
	}
	return Result{
		"upper_shadow":         s.UpperShadow,
		"lower_shadow":         s.LowerShadow,
		"body_height":          s.BodyHeight,
		"upper_shadow_ratio":   s.UpperShadowRatio,
		"lower_shadow_ratio":   s.LowerShadowRatio,
		"total_shadow_ratio":   s.TotalShadowRatio,
		"shadow_imbalance":     s.ShadowImbalance,
		"body_ratio":           s.BodyRatio,
		"is_long_upper_shadow": boolFloat(s.IsLongUpper),
		"is_long_lower_shadow": boolFloat(s.IsLongLower),
		"is_doji":              boolFloat(s.IsDoji),
		"shadow_type":          float64(s.ShadowType),
	}, nil
}
