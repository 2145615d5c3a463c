package indicators

// Stochastic oscillator. %K is 50 when the lookback range is flat.
type Stochastic struct {
	KWindow int
	DWindow int
}

func DefaultStochastic() Stochastic { return Stochastic{KWindow: 14, DWindow: 3} }

type StochasticValue struct {
	K float64
	D float64
}

func (s Stochastic) Name() string { return "stochastic" }

func (s Stochastic) Last(f Frame) (StochasticValue, error) {
	high, low, closes, err := f.hlc()
	if err != nil {
		return StochasticValue{}, err
	}
	k, d := s.KWindow, s.DWindow
	if k < 1 {
		k = 14
	}
	if d < 1 {
		d = 3
	}
	if err := needLen(s.Name(), len(closes), k+d-1); err != nil {
		return StochasticValue{}, err
	}

	n := len(closes)
	ks := make([]float64, 0, d)
	for i := n - d; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - k + 1; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		pk := 50.0
		if hh > ll {
			pk = clamp(100*(closes[i]-ll)/(hh-ll), 0, 100)
		}
		ks = append(ks, pk)
	}
	return StochasticValue{K: ks[len(ks)-1], D: mean(ks)}, nil
}

func (s Stochastic) Compute(f Frame) (Result, error) {
	v, err := s.Last(f)
	if err != nil {
		return nil, err
	}
	return Result{"stoch_k": v.K, "stoch_d": v.D}, nil
}
