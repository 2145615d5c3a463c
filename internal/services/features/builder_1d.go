package features

import (
	"fmt"

	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/services/indicators"
)

// DayBuilder produces daily momentum, range and band fields. Band edges are
// normalized with the daily close params.
type DayBuilder struct {
	cfg       Config
	closeNorm models.NormalizationParams
}

func NewDayBuilder(cfg Config, closeNorm models.NormalizationParams) *DayBuilder {
	return &DayBuilder{cfg: cfg, closeNorm: closeNorm}
}

func (b *DayBuilder) Bar() models.BarInterval { return models.Bar1D }

func (b *DayBuilder) Build(window []models.Candle) (map[string]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	frame := indicators.FrameFromCandles(window)
	out := fieldSet{}

	if rsi, err := (indicators.RSI{Window: b.cfg.RSIWindow}).Last(frame.Close); err == nil {
		out.putRounded(rsiField(b.cfg.RSIWindow, "1d"), rsi, 0)
	}
	if atr, err := (indicators.ATR{Window: b.cfg.ATRWindow}).Last(frame); err == nil {
		out.putRounded("atr_1d", atr, 3)
	}
	if bb, err := b.cfg.Bollinger.Last(frame.Close); err == nil {
		upper, err := indicators.ZScore(bb.Upper, b.closeNorm.Mean, b.closeNorm.Std)
		if err != nil {
			return nil, fmt.Errorf("bb_upper_1d_normalized: %w", err)
		}
		lower, err := indicators.ZScore(bb.Lower, b.closeNorm.Mean, b.closeNorm.Std)
		if err != nil {
			return nil, fmt.Errorf("bb_lower_1d_normalized: %w", err)
		}
		out.putRounded("bb_position_1d", bb.Position, 3)
		out.put("bb_upper_1d_normalized", upper)
		out.put("bb_lower_1d_normalized", lower)
	}

	rets := ComputeLogReturns(window)
	out.putRounded("realized_vol_1d", RealizedVolatility(rets, b.cfg.VolatilityWindow, BarsPerYear(models.Bar1D)), 4)
	return out, nil
}
