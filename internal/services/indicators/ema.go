package indicators

import "math"

// EMA is an exponential moving average with alpha = 2/(span+1), seeded with
// the first observation and without bias adjustment.
type EMA struct {
	Span int
}

func (e EMA) Name() string { return "ema" }

func emaSeries(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

func (e EMA) Last(xs []float64) (float64, error) {
	need := e.Span
	if need < 1 {
		need = 1
	}
	if err := needLen(e.Name(), len(xs), need); err != nil {
		return math.NaN(), err
	}
	s := emaSeries(xs, need)
	return s[len(s)-1], nil
}

func (e EMA) Compute(f Frame) (Result, error) {
	v, err := e.Last(f.Close)
	if err != nil {
		return nil, err
	}
	return Result{"ema": v}, nil
}
