package indicators

import "math"

// DefaultRSIWindow is the lookback the feature builders use.
const DefaultRSIWindow = 14

// RSI is the relative strength index. A zero Window uses the whole series.
// The seed is a simple mean of the first Window deltas (the first delta is
// taken as zero), then Wilder smoothing runs over the remainder.
type RSI struct {
	Window int
}

func (r RSI) Name() string { return "rsi" }

func (r RSI) window(n int) int {
	if r.Window > 0 {
		return r.Window
	}
	return n - 1
}

// Last returns the RSI at the final point of closes.
func (r RSI) Last(closes []float64) (float64, error) {
	n := len(closes)
	w := r.window(n)
	if w < 1 {
		w = 1
	}
	if err := needLen(r.Name(), n, w+1); err != nil {
		return math.NaN(), err
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		switch {
		case d > 0:
			gains[i] = d
		case d < 0:
			losses[i] = -d
		}
	}

	avgGain := mean(gains[:w])
	avgLoss := mean(losses[:w])
	fw := float64(w)
	for i := w; i < n; i++ {
		avgGain = (avgGain*(fw-1) + gains[i]) / fw
		avgLoss = (avgLoss*(fw-1) + losses[i]) / fw
	}
	return rsiFromAverages(avgGain, avgLoss), nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

func (r RSI) Compute(f Frame) (Result, error) {
	v, err := r.Last(f.Close)
	if err != nil {
		return nil, err
	}
	return Result{"rsi": v}, nil
}
