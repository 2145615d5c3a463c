package features

import (
	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/services/indicators"
)

// MinuteBuilder produces the 15-minute momentum and volume fields.
type MinuteBuilder struct {
	cfg Config
}

func NewMinuteBuilder(cfg Config) *MinuteBuilder { return &MinuteBuilder{cfg: cfg} }

func (b *MinuteBuilder) Bar() models.BarInterval { return models.Bar15m }

func (b *MinuteBuilder) Build(window []models.Candle) (map[string]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	frame := indicators.FrameFromCandles(window)
	out := fieldSet{}

	if rsi, err := (indicators.RSI{Window: b.cfg.RSIWindow}).Last(frame.Close); err == nil {
		out.putRounded(rsiField(b.cfg.RSIWindow, "15m"), rsi, 1)
	}
	if imp, err := (indicators.VolumeImpulse{Window: b.cfg.ImpulseWindow}).Last(frame.Volume); err == nil {
		out.putRounded("volume_impulse_15m", imp, 2)
	}
	if m, err := b.cfg.MACD.Last(frame.Close); err == nil {
		out.putRounded("macd_line_15m", m.Line, 3)
		out.putRounded("macd_signal_15m", m.Signal, 3)
	}
	if st, err := b.cfg.Stochastic.Last(frame); err == nil {
		out.putRounded("stoch_k_15m", st.K, 1)
		out.putRounded("stoch_d_15m", st.D, 1)
	}
	return out, nil
}
