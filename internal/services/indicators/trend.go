package indicators

import "math"

// TrendContinuation scores directional persistence over the whole series:
// (up-down)/(up+down) scaled by the longest same-direction run over the
// number of moves. Flat moves count toward neither side and break runs.
type TrendContinuation struct{}

func (TrendContinuation) Name() string { return "trend_continuation" }

func (t TrendContinuation) Last(closes []float64) (float64, error) {
	if err := needLen(t.Name(), len(closes), 2); err != nil {
		return math.NaN(), err
	}

	var up, down, run, longest int
	prevDir := 0
	for i := 1; i < len(closes); i++ {
		dir := 0
		switch d := closes[i] - closes[i-1]; {
		case d > 0:
			dir = 1
			up++
		case d < 0:
			dir = -1
			down++
		}
		switch {
		case dir == 0:
			run = 0
		case dir == prevDir:
			run++
		default:
			run = 1
		}
		if run > longest {
			longest = run
		}
		prevDir = dir
	}

	total := up + down
	if total == 0 {
		return 0, nil
	}
	strength := float64(up-down) / float64(total)
	return strength * float64(longest) / float64(len(closes)-1), nil
}

func (t TrendContinuation) Compute(f Frame) (Result, error) {
	v, err := t.Last(f.Close)
	if err != nil {
		return nil, err
	}
	return Result{"trend_continuation": v}, nil
}
