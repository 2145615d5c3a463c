package indicators

import "math"

// Bollinger bands over the trailing Window using the population standard
// deviation. A zero Window uses the whole series.
type Bollinger struct {
	Window int
	K      float64
}

func DefaultBollinger() Bollinger { return Bollinger{Window: 20, K: 2} }

type BollingerValue struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Width    float64
	Position float64 // in [0,1]; 0.5 when the bands collapse
}

func (b Bollinger) Name() string { return "bollinger" }

func (b Bollinger) Last(closes []float64) (BollingerValue, error) {
	w := b.Window
	if w <= 0 {
		w = len(closes)
	}
	if w < 1 {
		w = 1
	}
	if err := needLen(b.Name(), len(closes), w); err != nil {
		return BollingerValue{}, err
	}

	tail := closes[len(closes)-w:]
	m := mean(tail)
	ss := 0.0
	for _, x := range tail {
		ss += (x - m) * (x - m)
	}
	sd := math.Sqrt(ss / float64(w))

	v := BollingerValue{
		Upper:  m + b.K*sd,
		Middle: m,
		Lower:  m - b.K*sd,
	}
	v.Width = v.Upper - v.Lower
	v.Position = 0.5
	if v.Width > 0 {
		v.Position = clamp((closes[len(closes)-1]-v.Lower)/v.Width, 0, 1)
	}
	return v, nil
}

func (b Bollinger) Compute(f Frame) (Result, error) {
	v, err := b.Last(f.Close)
	if err != nil {
		return nil, err
	}
	return Result{
		"bb_upper":    v.Upper,
		"bb_middle":   v.Middle,
		"bb_lower":    v.Lower,
		"bb_width":    v.Width,
		"bb_position": v.Position,
	}, nil
}
