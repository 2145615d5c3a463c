package indicators

import "math"

// ADX is the average directional index. True range and directional movement
// are smoothed with a trailing mean over Window, as is DX.
type ADX struct {
	Window int
}

type ADXValue struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

func (a ADX) Name() string { return "adx" }

func (a ADX) Last(f Frame) (ADXValue, error) {
	high, low, closes, err := f.hlc()
	if err != nil {
		return ADXValue{}, err
	}
	w := a.Window
	if w < 1 {
		w = DefaultATRWindow
	}
	if err := needLen(a.Name(), len(closes), 2*w); err != nil {
		return ADXValue{}, err
	}

	n := len(closes)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := rollingMean(trueRange(high, low, closes), w)
	pdm := rollingMean(plusDM, w)
	mdm := rollingMean(minusDM, w)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if tr[i] > 0 {
			plusDI[i] = clamp(100*pdm[i]/tr[i], 0, 100)
			minusDI[i] = clamp(100*mdm[i]/tr[i], 0, 100)
		}
		if sum := plusDI[i] + minusDI[i]; sum > 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}

	return ADXValue{
		ADX:     clamp(mean(dx[n-w:]), 0, 100),
		PlusDI:  plusDI[n-1],
		MinusDI: minusDI[n-1],
	}, nil
}

func (a ADX) Compute(f Frame) (Result, error) {
	v, err := a.Last(f)
	if err != nil {
		return nil, err
	}
	return Result{"adx": v.ADX, "plus_di": v.PlusDI, "minus_di": v.MinusDI}, nil
}
