package features

import (
	"errors"
	"fmt"

	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/services/indicators"
)

// ErrEmptyWindow is returned when a builder receives no candles.
var ErrEmptyWindow = errors.New("empty candle window")

// HourBuilder produces the anchor granularity fields: normalized close and
// volume, momentum, calendar encoding and the anchor candle's shape.
type HourBuilder struct {
	cfg        Config
	closeNorm  models.NormalizationParams
	volumeNorm models.NormalizationParams
}

func NewHourBuilder(cfg Config, closeNorm, volumeNorm models.NormalizationParams) *HourBuilder {
	return &HourBuilder{cfg: cfg, closeNorm: closeNorm, volumeNorm: volumeNorm}
}

func (b *HourBuilder) Bar() models.BarInterval { return models.Bar1H }

func (b *HourBuilder) Build(window []models.Candle) (map[string]float64, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}
	anchor := window[len(window)-1]
	frame := indicators.FrameFromCandles(window)

	closeZ, err := indicators.ZScore(anchor.Close, b.closeNorm.Mean, b.closeNorm.Std)
	if err != nil {
		return nil, fmt.Errorf("close_1h_normalized: %w", err)
	}
	volumeZ, err := indicators.ZScore(anchor.Volume, b.volumeNorm.Mean, b.volumeNorm.Std)
	if err != nil {
		return nil, fmt.Errorf("volume_1h_normalized: %w", err)
	}

	out := fieldSet{}
	out.put("close_1h_normalized", closeZ)
	out.put("volume_1h_normalized", volumeZ)

	if rsi, err := (indicators.RSI{Window: b.cfg.RSIWindow}).Last(frame.Close); err == nil {
		out.put(rsiField(b.cfg.RSIWindow, "1h"), rsi)
	}
	if m, err := b.cfg.MACD.Last(frame.Close); err == nil {
		out.put("macd_line_1h", m.Line)
		out.put("macd_signal_1h", m.Signal)
		out.put("macd_hist_1h", m.Histogram)
	}

	cos, sin := indicators.EncodeHour(anchor.HourOfDay)
	out.put("hour_cos", cos)
	out.put("hour_sin", sin)
	out.put("day_of_week", float64(anchor.DayOfWeek))

	shape := b.cfg.Pinbar.Shape(anchor.Open, anchor.High, anchor.Low, anchor.Close)
	out.put("shadow_type_1h", float64(shape.ShadowType))
	out.put("body_ratio_1h", shape.BodyRatio)
	out.put("upper_shadow_ratio_1h", shape.UpperShadowRatio)
	out.put("lower_shadow_ratio_1h", shape.LowerShadowRatio)
	out.put("is_doji_1h", boolField(shape.IsDoji))

	return out, nil
}

func boolField(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
