package indicators

import (
	"errors"
	"fmt"
	"math"

	"FeatPipe/internal/domain/models"
)

// ErrInsufficientData is returned when a series is shorter than a calculator's minimum.
var ErrInsufficientData = errors.New("insufficient data")

// ErrMismatchedColumns is returned when OHLC columns of a Frame differ in length.
var ErrMismatchedColumns = errors.New("ohlc columns differ in length")

// LengthError reports the minimum length a calculator needed.
type LengthError struct {
	Indicator string
	Need      int
	Got       int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: need at least %d points, got %d", e.Indicator, e.Need, e.Got)
}

func (e *LengthError) Unwrap() error { return ErrInsufficientData }

func needLen(name string, got, need int) error {
	if got < need {
		return &LengthError{Indicator: name, Need: need, Got: got}
	}
	return nil
}

// Frame holds OHLCV columns, oldest first.
type Frame struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// FrameFromCandles splits candles into columns.
func FrameFromCandles(candles []models.Candle) Frame {
	f := Frame{
		Open:   make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		f.Open[i] = c.Open
		f.High[i] = c.High
		f.Low[i] = c.Low
		f.Close[i] = c.Close
		f.Volume[i] = c.Volume
	}
	return f
}

// Len is the number of rows, taken from the close column.
func (f Frame) Len() int { return len(f.Close) }

func (f Frame) hlc() ([]float64, []float64, []float64, error) {
	if len(f.High) != len(f.Close) || len(f.Low) != len(f.Close) {
		return nil, nil, nil, ErrMismatchedColumns
	}
	return f.High, f.Low, f.Close, nil
}

// Result is the named output of a Calculator.
type Result map[string]float64

// Calculator is the capability every indicator exposes to the registry.
type Calculator interface {
	Name() string
	Compute(f Frame) (Result, error)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// rollingMean mirrors a trailing window with min_periods=1.
func rollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
