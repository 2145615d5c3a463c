package indicators

import (
	"errors"
	"math"
)

// ErrDegenerateStd is returned for a non-positive or non-finite deviation.
var ErrDegenerateStd = errors.New("normalization std must be positive and finite")

// ZScore returns (value-mean)/std.
func ZScore(value, mean, std float64) (float64, error) {
	if !(std > 0) || math.IsInf(std, 0) {
		return math.NaN(), ErrDegenerateStd
	}
	return (value - mean) / std, nil
}

// MeanStd returns the mean and sample standard deviation of xs.
func MeanStd(xs []float64) (float64, float64, error) {
	if err := needLen("mean_std", len(xs), 2); err != nil {
		return math.NaN(), math.NaN(), err
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return m, math.Sqrt(ss / float64(len(xs)-1)), nil
}
