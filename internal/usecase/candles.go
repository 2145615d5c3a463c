package usecase

import (
	"context"
	"fmt"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	"FeatPipe/internal/services/alignment"
	"FeatPipe/internal/services/indicators"
)

// CandlesUseCase provides business logic for retrieving candle windows.
type CandlesUseCase struct {
	store domrepo.CandleStore
}

func NewCandlesUseCase(store domrepo.CandleStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetWindowParams struct {
	InstID string
	Bar    models.BarInterval
	Length int
	Before *int64
}

type GetWindowResult struct {
	InstID     string          `json:"inst_id"`
	Bar        string          `json:"bar"`
	Count      int             `json:"count"`
	Contiguous bool            `json:"contiguous"`
	Candles    []models.Candle `json:"candles"`
}

func (uc *CandlesUseCase) GetWindow(ctx context.Context, p GetWindowParams) (*GetWindowResult, error) {
	if p.InstID == "" {
		return nil, fmt.Errorf("inst_id required")
	}
	if !domrepo.IsValidBar(p.Bar) {
		return nil, fmt.Errorf("unsupported bar %q", p.Bar)
	}
	if p.Length <= 0 {
		p.Length = 48
	}
	if p.Length > 5000 {
		p.Length = 5000
	}

	candles, err := uc.store.GetWindow(ctx, p.InstID, p.Bar, p.Length, p.Before)
	if err != nil {
		return nil, fmt.Errorf("get window: %w", err)
	}

	return &GetWindowResult{
		InstID:     p.InstID,
		Bar:        string(p.Bar),
		Count:      len(candles),
		Contiguous: alignment.Gap(candles, p.Bar) < 0,
		Candles:    candles,
	}, nil
}

type IndicatorResult struct {
	Name   string            `json:"name"`
	InstID string            `json:"inst_id"`
	Bar    string            `json:"bar"`
	Anchor int64             `json:"anchor"`
	Points int               `json:"points"`
	Values indicators.Result `json:"values"`
}

// ComputeIndicator runs a registered indicator over a window.
func (uc *CandlesUseCase) ComputeIndicator(ctx context.Context, name string, p GetWindowParams) (*IndicatorResult, error) {
	calc, err := indicators.New(name)
	if err != nil {
		return nil, err
	}
	w, err := uc.GetWindow(ctx, p)
	if err != nil {
		return nil, err
	}
	if w.Count == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s", ErrInsufficientData, p.InstID, p.Bar)
	}
	values, err := calc.Compute(indicators.FrameFromCandles(w.Candles))
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", name, err)
	}
	return &IndicatorResult{
		Name:   name,
		InstID: p.InstID,
		Bar:    w.Bar,
		Anchor: w.Candles[w.Count-1].Timestamp,
		Points: w.Count,
		Values: values,
	}, nil
}
