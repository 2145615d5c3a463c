package indicators

import "fmt"

type MACD struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACD is the 12/26/9 configuration.
func DefaultMACD() MACD { return MACD{Fast: 12, Slow: 26, Signal: 9} }

type MACDValue struct {
	Line      float64
	Signal    float64
	Histogram float64
}

func (m MACD) Name() string { return "macd" }

func (m MACD) Last(closes []float64) (MACDValue, error) {
	if m.Fast < 1 || m.Slow <= m.Fast || m.Signal < 1 {
		return MACDValue{}, fmt.Errorf("macd: invalid spans fast=%d slow=%d signal=%d", m.Fast, m.Slow, m.Signal)
	}
	if err := needLen(m.Name(), len(closes), m.Slow+m.Signal-1); err != nil {
		return MACDValue{}, err
	}

	fast := emaSeries(closes, m.Fast)
	slow := emaSeries(closes, m.Slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal := emaSeries(line, m.Signal)

	last := len(closes) - 1
	v := MACDValue{Line: line[last], Signal: signal[last]}
	v.Histogram = v.Line - v.Signal
	return v, nil
}

func (m MACD) Compute(f Frame) (Result, error) {
	v, err := m.Last(f.Close)
	if err != nil {
		return nil, err
	}
	return Result{"macd_line": v.Line, "macd_signal": v.Signal, "macd_hist": v.Histogram}, nil
}
