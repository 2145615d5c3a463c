package features

import (
	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/services/indicators"
)

// FourHourBuilder produces the 4-hour trend fields.
type FourHourBuilder struct {
	cfg Config
}

func NewFourHourBuilder(cfg Config) *FourHourBuilder { return &FourHourBuilder{cfg: cfg} }

func (b *FourHourBuilder) Bar() models.BarInterval { return models.Bar4H }

func (b *FourHourBuilder) Build(window []models.Candle) (map[string]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	frame := indicators.FrameFromCandles(window)
	out := fieldSet{}

	if rsi, err := (indicators.RSI{Window: b.cfg.RSIWindow}).Last(frame.Close); err == nil {
		out.putRounded(rsiField(b.cfg.RSIWindow, "4h"), rsi, 1)
	}
	if tc, err := (indicators.TrendContinuation{}).Last(frame.Close); err == nil {
		out.putRounded("trend_continuation_4h", tc, 2)
	}
	if m, err := b.cfg.MACD.Last(frame.Close); err == nil {
		out.putRounded("macd_line_4h", m.Line, 3)
		out.putRounded("macd_signal_4h", m.Signal, 3)
	}
	if adx, err := (indicators.ADX{Window: b.cfg.ADXWindow}).Last(frame); err == nil {
		out.putRounded("adx_4h", adx.ADX, 1)
		out.putRounded("plus_di_4h", adx.PlusDI, 1)
		out.putRounded("minus_di_4h", adx.MinusDI, 1)
	}
	return out, nil
}
