package service

import "FeatPipe/internal/domain/models"

// FeatureBuilder turns one window of its granularity into named fields.
// A field is either a finite number or absent.
type FeatureBuilder interface {
	Bar() models.BarInterval
	Build(window []models.Candle) (map[string]float64, error)
}

// WindowValidator checks a set of per-granularity windows before building.
type WindowValidator interface {
	Validate(windows map[models.BarInterval][]models.Candle) error
}
