package repository

import (
	"context"
	"errors"

	"FeatPipe/internal/domain/models"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// CandleStore serves candle windows. GetWindow returns at most length candles
// strictly older than before (or the most recent length when before is nil),
// sorted ascending by timestamp. An empty slice means no data.
type CandleStore interface {
	GetWindow(ctx context.Context, instID string, bar models.BarInterval, length int, before *int64) ([]models.Candle, error)
}

// NormalizationStore serves externally fitted mean/std pairs.
type NormalizationStore interface {
	// GetParams returns ErrNotFound when no params exist for the column.
	GetParams(ctx context.Context, instID string, bar models.BarInterval, column string) (models.NormalizationParams, error)
	SaveParams(ctx context.Context, p models.NormalizationParams) error
}

// FeatureSink receives merged records. PersistFeature is an idempotent upsert
// keyed by (inst_id, bar, timestamp).
type FeatureSink interface {
	PersistFeature(ctx context.Context, rec *models.FeatureRecord) error
}

// LabelStore attaches labels to previously persisted records.
type LabelStore interface {
	UpdateLabel(ctx context.Context, instID string, ts int64, label int) error
	ListFeatureKeys(ctx context.Context, instID string, bar models.BarInterval, onlyUnlabeled bool, limit int) ([]models.FeatureKey, error)
}

// FeatureStore is the persisted side of the pipeline.
type FeatureStore interface {
	FeatureSink
	LabelStore
	GetFeature(ctx context.Context, instID string, bar models.BarInterval, ts int64) (*models.FeatureRecord, error)
	Init(ctx context.Context) error
	Health(ctx context.Context) error
}

// Publisher streams merged records to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec *models.FeatureRecord) error
	Close() error
}

type Metrics interface {
	RecordFeatureSent(backend, instID string)
	RecordError(kind string)
	RecordLastAnchor(instID string, ts int64)
	RecordLatency(op string, seconds float64)
}
