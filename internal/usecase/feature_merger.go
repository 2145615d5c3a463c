package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	domsvc "FeatPipe/internal/domain/service"
	pipemetrics "FeatPipe/internal/service/metrics"
	"FeatPipe/internal/services/alignment"
	"FeatPipe/internal/services/features"
	"FeatPipe/internal/services/indicators"
	applogger "FeatPipe/pkg/logger"
)

// MergerConfig is passed explicitly to the merger.
type MergerConfig struct {
	WindowLength int
	// MaxSkips bounds the anchors a Loop may skip before giving up.
	MaxSkips int
	Builders features.Config
}

const defaultMaxSkips = 500

func DefaultMergerConfig() MergerConfig {
	return MergerConfig{WindowLength: 48, MaxSkips: defaultMaxSkips, Builders: features.DefaultConfig()}
}

// FeatureMerger fetches the four windows for an anchor, validates them and
// unions the builders' fields into one record keyed by the 1H anchor.
type FeatureMerger struct {
	candles   domrepo.CandleStore
	norms     domrepo.NormalizationStore
	validator domsvc.WindowValidator
	cfg       MergerConfig
	l         *applogger.Logger
}

func NewFeatureMerger(candles domrepo.CandleStore, norms domrepo.NormalizationStore, cfg MergerConfig, l *applogger.Logger) *FeatureMerger {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = 48
	}
	if cfg.MaxSkips <= 0 {
		cfg.MaxSkips = defaultMaxSkips
	}
	return &FeatureMerger{
		candles:   candles,
		norms:     norms,
		validator: alignment.New(cfg.WindowLength),
		cfg:       cfg,
		l:         l,
	}
}

// Merge builds the record for the newest anchor strictly older than asOf
// (latest data when asOf is nil). Data problems come back as
// ErrInsufficientData or an *AnchorError wrapping the alignment failure;
// ErrMissingNormalization aborts the caller.
func (m *FeatureMerger) Merge(ctx context.Context, instID string, asOf *int64) (*models.FeatureRecord, error) {
	start := time.Now()
	rec, err := m.merge(ctx, instID, asOf)
	pipemetrics.StageLatency.WithLabelValues("merge").Observe(time.Since(start).Seconds())
	pipemetrics.MergeOutcomes.WithLabelValues(mergeOutcome(err)).Inc()
	return rec, err
}

func (m *FeatureMerger) merge(ctx context.Context, instID string, asOf *int64) (*models.FeatureRecord, error) {
	windows, err := m.fetchWindows(ctx, instID, asOf)
	if err != nil {
		return nil, err
	}

	if err := m.validator.Validate(windows); err != nil {
		if errors.Is(err, alignment.ErrIncomplete) {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientData, err)
		}
		h := windows[models.Bar1H]
		return nil, &AnchorError{Anchor: h[len(h)-1].Timestamp, Err: err}
	}

	norms, err := m.loadNorms(ctx, instID)
	if err != nil {
		return nil, err
	}

	h := windows[models.Bar1H]
	rec := &models.FeatureRecord{
		InstID:    instID,
		Bar:       models.Bar1H,
		Timestamp: h[len(h)-1].Timestamp,
		Fields:    make(map[string]float64, 48),
	}
	for _, b := range features.NewBuilders(m.cfg.Builders, norms) {
		fields, err := b.Build(windows[b.Bar()])
		if err != nil {
			return nil, fmt.Errorf("build %s features: %w", b.Bar(), err)
		}
		for k, v := range fields {
			if _, dup := rec.Fields[k]; dup {
				return nil, fmt.Errorf("duplicate feature field %q from %s builder", k, b.Bar())
			}
			rec.Fields[k] = v
		}
	}
	return rec, nil
}

func (m *FeatureMerger) fetchWindows(ctx context.Context, instID string, asOf *int64) (map[models.BarInterval][]models.Candle, error) {
	out := make(map[models.BarInterval][]models.Candle, 4)
	for _, bar := range models.AllBars() {
		w, err := m.candles.GetWindow(ctx, instID, bar, m.cfg.WindowLength, asOf)
		if err != nil {
			return nil, fmt.Errorf("get %s window: %w", bar, err)
		}
		out[bar] = w
	}
	return out, nil
}

func (m *FeatureMerger) loadNorms(ctx context.Context, instID string) (features.NormSet, error) {
	var ns features.NormSet
	var err error
	if ns.Close1H, err = m.param(ctx, instID, models.Bar1H, "close"); err != nil {
		return ns, err
	}
	if ns.Volume1H, err = m.param(ctx, instID, models.Bar1H, "volume"); err != nil {
		return ns, err
	}
	if ns.Close1D, err = m.param(ctx, instID, models.Bar1D, "close"); err != nil {
		return ns, err
	}
	return ns, nil
}

func (m *FeatureMerger) param(ctx context.Context, instID string, bar models.BarInterval, column string) (models.NormalizationParams, error) {
	p, err := m.norms.GetParams(ctx, instID, bar, column)
	if errors.Is(err, domrepo.ErrNotFound) {
		return p, fmt.Errorf("%w: %s %s %s", ErrMissingNormalization, instID, bar, column)
	}
	if err != nil {
		return p, fmt.Errorf("get normalization %s %s: %w", bar, column, err)
	}
	if !(p.Std > 0) || !indicators.Finite(p.Std) || !indicators.Finite(p.Mean) {
		return p, fmt.Errorf("%w: %s %s %s has std %v", ErrMissingNormalization, instID, bar, column, p.Std)
	}
	return p, nil
}

// Loop walks backward from asOf until count records are produced. Each
// record is handed to emit, or collected in the result when emit is nil.
// Short windows end the walk; gaps and misalignment skip the anchor and
// continue from it, up to MaxSkips skipped anchors per run. Missing
// normalization and store failures are returned.
func (m *FeatureMerger) Loop(ctx context.Context, instID string, asOf *int64, count int, emit func(context.Context, *models.FeatureRecord) error) (*models.LoopResult, error) {
	res := &models.LoopResult{RunID: uuid.NewString(), InstID: instID, Requested: count}
	cursor := asOf

	for res.Produced < count {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := m.Merge(ctx, instID, cursor)
		var next int64
		var aerr *AnchorError
		switch {
		case err == nil:
			next = rec.Timestamp
			if emit != nil {
				if err := emit(ctx, rec); err != nil {
					return res, fmt.Errorf("emit record %d: %w", rec.Timestamp, err)
				}
			} else {
				res.Records = append(res.Records, *rec)
			}
			res.Produced++
		case errors.Is(err, ErrInsufficientData):
			res.StopCause = err.Error()
			m.l.Info("backfill reached end of data",
				applogger.String("run_id", res.RunID),
				applogger.String("inst_id", instID),
				applogger.Int("produced", res.Produced),
				applogger.Error(err))
			return res, nil
		case errors.As(err, &aerr):
			next = aerr.Anchor
			res.Skipped = append(res.Skipped, models.SkippedAnchor{Timestamp: aerr.Anchor, Reason: aerr.Err.Error()})
			m.l.Info("skipping anchor",
				applogger.String("run_id", res.RunID),
				applogger.String("inst_id", instID),
				applogger.Int64("anchor", aerr.Anchor),
				applogger.Error(aerr.Err))
			if len(res.Skipped) >= m.cfg.MaxSkips {
				res.StopCause = fmt.Sprintf("skipped %d anchors", len(res.Skipped))
				return res, nil
			}
		default:
			return res, err
		}

		if cursor != nil && next >= *cursor {
			res.StopCause = fmt.Sprintf("cursor did not advance past %d", *cursor)
			return res, nil
		}
		res.Earliest = next
		cursor = &next
	}
	return res, nil
}

func mergeOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientData):
		return "incomplete"
	case errors.Is(err, alignment.ErrNotContiguous):
		return "gap"
	case errors.Is(err, alignment.ErrMisaligned):
		return "misaligned"
	case errors.Is(err, ErrMissingNormalization):
		return "missing_norm"
	default:
		return "error"
	}
}
