package usecase

import (
	"context"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	applogger "FeatPipe/pkg/logger"
)

// FeaturePipeline runs the merger and hands records to the sink.
type FeaturePipeline struct {
	merger  *FeatureMerger
	sink    domrepo.FeatureSink
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewFeaturePipeline(merger *FeatureMerger, sink domrepo.FeatureSink, metrics domrepo.Metrics, l *applogger.Logger) *FeaturePipeline {
	return &FeaturePipeline{merger: merger, sink: sink, metrics: metrics, l: l}
}

// Merge computes the record for the anchor before asOf and persists it when asked.
func (p *FeaturePipeline) Merge(ctx context.Context, instID string, asOf *int64, persist bool) (*models.FeatureRecord, error) {
	rec, err := p.merger.Merge(ctx, instID, asOf)
	if err != nil {
		return nil, err
	}
	if persist {
		if err := p.persist(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Backfill walks backward persisting every produced record.
func (p *FeaturePipeline) Backfill(ctx context.Context, instID string, asOf *int64, count int) (*models.LoopResult, error) {
	start := time.Now()
	res, err := p.merger.Loop(ctx, instID, asOf, count, p.persist)
	p.metrics.RecordLatency("backfill", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("backfill")
		p.l.Error("backfill failed",
			applogger.String("inst_id", instID),
			applogger.Int("produced", res.Produced),
			applogger.Error(err))
		return res, err
	}
	p.l.Info("backfill finished",
		applogger.String("run_id", res.RunID),
		applogger.String("inst_id", instID),
		applogger.Int("requested", count),
		applogger.Int("produced", res.Produced),
		applogger.Int("skipped", len(res.Skipped)),
		applogger.String("stop_cause", res.StopCause))
	return res, nil
}

func (p *FeaturePipeline) persist(ctx context.Context, rec *models.FeatureRecord) error {
	start := time.Now()
	if err := p.sink.PersistFeature(ctx, rec); err != nil {
		p.metrics.RecordError("persist_feature")
		return fmt.Errorf("persist feature %s %d: %w", rec.InstID, rec.Timestamp, err)
	}
	p.metrics.RecordLatency("persist_feature", time.Since(start).Seconds())
	p.metrics.RecordLastAnchor(rec.InstID, rec.Timestamp)
	return nil
}
