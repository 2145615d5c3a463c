package usecase

import (
	"context"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	"FeatPipe/internal/services/indicators"
	applogger "FeatPipe/pkg/logger"
)

// NormalizationFitter derives mean/std for a candle column from stored history.
type NormalizationFitter struct {
	candles domrepo.CandleStore
	norms   domrepo.NormalizationStore
	l       *applogger.Logger
}

func NewNormalizationFitter(candles domrepo.CandleStore, norms domrepo.NormalizationStore, l *applogger.Logger) *NormalizationFitter {
	return &NormalizationFitter{candles: candles, norms: norms, l: l}
}

// Fit uses the latest length candles of (instID, bar).
func (f *NormalizationFitter) Fit(ctx context.Context, instID string, bar models.BarInterval, column string, length int) (models.NormalizationParams, error) {
	var pick func(models.Candle) float64
	switch column {
	case "close":
		pick = func(c models.Candle) float64 { return c.Close }
	case "volume":
		pick = func(c models.Candle) float64 { return c.Volume }
	default:
		return models.NormalizationParams{}, fmt.Errorf("unsupported normalization column %q", column)
	}

	w, err := f.candles.GetWindow(ctx, instID, bar, length, nil)
	if err != nil {
		return models.NormalizationParams{}, fmt.Errorf("get %s history: %w", bar, err)
	}
	values := make([]float64, len(w))
	for i, c := range w {
		values[i] = pick(c)
	}
	mean, std, err := indicators.MeanStd(values)
	if err != nil {
		return models.NormalizationParams{}, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	p := models.NormalizationParams{
		InstID:    instID,
		Bar:       bar,
		Column:    column,
		Mean:      mean,
		Std:       std,
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.norms.SaveParams(ctx, p); err != nil {
		return p, fmt.Errorf("save normalization params: %w", err)
	}
	f.l.Info("normalization params fitted",
		applogger.String("inst_id", instID),
		applogger.String("bar", string(bar)),
		applogger.String("column", column),
		applogger.Int("samples", len(values)),
		applogger.Float64("mean", mean),
		applogger.Float64("std", std))
	return p, nil
}
