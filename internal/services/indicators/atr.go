package indicators

import "math"

// DefaultATRWindow is the smoothing period shared by ATR and ADX.
const DefaultATRWindow = 14

// ATR is the average true range: a simple mean of the first Window true
// ranges, then Wilder smoothing.
type ATR struct {
	Window int
}

func (a ATR) Name() string { return "atr" }

func trueRange(high, low, closes []float64) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		prev := closes[i-1]
		tr[i] = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return tr
}

func (a ATR) Last(f Frame) (float64, error) {
	high, low, closes, err := f.hlc()
	if err != nil {
		return math.NaN(), err
	}
	w := a.Window
	if w < 1 {
		w = DefaultATRWindow
	}
	if err := needLen(a.Name(), len(closes), w); err != nil {
		return math.NaN(), err
	}

	tr := trueRange(high, low, closes)
	atr := mean(tr[:w])
	fw := float64(w)
	for i := w; i < len(tr); i++ {
		atr = (atr*(fw-1) + tr[i]) / fw
	}
	return atr, nil
}

func (a ATR) Compute(f Frame) (Result, error) {
	v, err := a.Last(f)
	if err != nil {
		return nil, err
	}
	return Result{"atr": v}, nil
}
