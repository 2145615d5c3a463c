package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pipemetrics "FeatPipe/internal/service/metrics"
	"FeatPipe/internal/services/alignment"
	applogger "FeatPipe/pkg/logger"
)

// LabelConfig is passed explicitly to the label generator.
type LabelConfig struct {
	Bar          models.BarInterval
	Horizon      int
	NeutralLabel int
	Thresholds   []models.LabelThreshold
}

func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Bar:          models.Bar1H,
		Horizon:      24,
		NeutralLabel: 3,
		Thresholds: []models.LabelThreshold{
			{Label: 1, Lower: -100, Upper: -3.6},
			{Label: 2, Lower: -3.6, Upper: -1.2},
			{Label: 3, Lower: -1.2, Upper: 1.2},
			{Label: 4, Lower: 1.2, Upper: 3.6},
			{Label: 5, Lower: 3.6, Upper: 100},
		},
	}
}

// Validate requires ordered, gap-free, non-overlapping buckets and a neutral
// label that exists in the table.
func (c LabelConfig) Validate() error {
	if c.Bar.Duration() == 0 {
		return fmt.Errorf("label bar %q not supported", c.Bar)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("label horizon must be >= 1")
	}
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("label thresholds required")
	}
	seen := make(map[int]bool, len(c.Thresholds))
	for i, t := range c.Thresholds {
		if !(t.Lower < t.Upper) {
			return fmt.Errorf("threshold %d: lower %v must be below upper %v", t.Label, t.Lower, t.Upper)
		}
		if seen[t.Label] {
			return fmt.Errorf("threshold label %d repeated", t.Label)
		}
		seen[t.Label] = true
		if i > 0 && c.Thresholds[i-1].Upper != t.Lower {
			return fmt.Errorf("thresholds %d and %d are not contiguous", c.Thresholds[i-1].Label, t.Label)
		}
	}
	if !seen[c.NeutralLabel] {
		return fmt.Errorf("neutral label %d not in threshold table", c.NeutralLabel)
	}
	return nil
}

// LabelGenerator classifies realized returns over a horizon and attaches
// the label to stored feature records.
type LabelGenerator struct {
	candles domrepo.CandleStore
	labels  domrepo.LabelStore
	cfg     LabelConfig
	neutral int // index of the neutral bucket in cfg.Thresholds
	l       *applogger.Logger
}

func NewLabelGenerator(candles domrepo.CandleStore, labels domrepo.LabelStore, cfg LabelConfig, l *applogger.Logger) (*LabelGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("label config: %w", err)
	}
	cfg.Thresholds = append([]models.LabelThreshold(nil), cfg.Thresholds...)
	g := &LabelGenerator{candles: candles, labels: labels, cfg: cfg, l: l}
	for i, t := range cfg.Thresholds {
		if t.Label == cfg.NeutralLabel {
			g.neutral = i
		}
	}
	return g, nil
}

// Horizon is the number of bars between the anchor and the future close.
func (g *LabelGenerator) Horizon() int { return g.cfg.Horizon }

// Bar is the granularity the horizon is counted in.
func (g *LabelGenerator) Bar() models.BarInterval { return g.cfg.Bar }

// PercentChange is 100*(future/current-1).
func PercentChange(current, future float64) (float64, error) {
	if !(current > 0) || math.IsInf(current, 0) || math.IsNaN(future) || math.IsInf(future, 0) {
		return math.NaN(), fmt.Errorf("%w: current=%v future=%v", ErrInvalidPrice, current, future)
	}
	return 100 * (future/current - 1), nil
}

// Classify returns the bucket containing pct. A value on a shared edge goes
// to the bucket farther from neutral, so 1.2 and -1.2 both leave the neutral
// bucket. On a miss it returns the neutral label and false.
func (g *LabelGenerator) Classify(pct float64) (int, bool) {
	for i, t := range g.cfg.Thresholds {
		if t.Contains(pct, i < g.neutral) {
			return t.Label, true
		}
	}
	pipemetrics.ThresholdMisses.Inc()
	g.l.Warn("percentage change outside threshold table",
		applogger.Float64("pct", pct),
		applogger.Int("neutral_label", g.cfg.NeutralLabel))
	return g.cfg.NeutralLabel, false
}

// LabelAt computes the label of the anchor at ts from the close exactly
// Horizon bars later. ErrFutureUnavailable means the label stays absent.
func (g *LabelGenerator) LabelAt(ctx context.Context, instID string, ts int64) (int, float64, bool, error) {
	n := g.cfg.Horizon + 1
	before := ts + int64(n)*g.cfg.Bar.Millis()
	w, err := g.candles.GetWindow(ctx, instID, g.cfg.Bar, n, &before)
	if err != nil {
		return 0, 0, false, fmt.Errorf("get future window: %w", err)
	}
	if len(w) != n || w[0].Timestamp != ts || alignment.Gap(w, g.cfg.Bar) >= 0 {
		return 0, 0, false, fmt.Errorf("%w: %s %d has %d of %d candles", ErrFutureUnavailable, instID, ts, len(w), n)
	}

	pct, err := PercentChange(w[0].Close, w[n-1].Close)
	if err != nil {
		return 0, 0, false, err
	}
	label, matched := g.Classify(pct)
	return label, pct, matched, nil
}

// LabelAndStore computes and writes the label for one anchor.
func (g *LabelGenerator) LabelAndStore(ctx context.Context, instID string, ts int64) (int, error) {
	label, _, _, err := g.LabelAt(ctx, instID, ts)
	if err != nil {
		return 0, err
	}
	if err := g.labels.UpdateLabel(ctx, instID, ts, label); err != nil {
		return 0, fmt.Errorf("update label %s %d: %w", instID, ts, err)
	}
	pipemetrics.LabelsAssigned.WithLabelValues(strconv.Itoa(label)).Inc()
	return label, nil
}

// Run labels stored records. Fix mode only visits records without a label;
// all mode recomputes every record, for use after the table changes.
func (g *LabelGenerator) Run(ctx context.Context, instID string, mode models.LabelMode, limit int) (*models.LabelRunResult, error) {
	if mode != models.LabelModeFix && mode != models.LabelModeAll {
		return nil, fmt.Errorf("unknown label mode %q", mode)
	}
	keys, err := g.labels.ListFeatureKeys(ctx, instID, g.cfg.Bar, mode == models.LabelModeFix, limit)
	if err != nil {
		return nil, fmt.Errorf("list feature keys: %w", err)
	}

	res := &models.LabelRunResult{InstID: instID, Mode: mode}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		label, _, matched, err := g.LabelAt(ctx, instID, k.Timestamp)
		switch {
		case errors.Is(err, ErrFutureUnavailable), errors.Is(err, ErrInvalidPrice):
			res.Pending++
			continue
		case err != nil:
			return res, err
		}
		if !matched {
			res.ThresholdMisses++
		}
		if err := g.labels.UpdateLabel(ctx, instID, k.Timestamp, label); err != nil {
			return res, fmt.Errorf("update label %s %d: %w", instID, k.Timestamp, err)
		}
		pipemetrics.LabelsAssigned.WithLabelValues(strconv.Itoa(label)).Inc()
		res.Labeled++
	}

	g.l.Info("label run finished",
		applogger.String("inst_id", instID),
		applogger.String("mode", string(mode)),
		applogger.Int("scanned", res.Scanned),
		applogger.Int("labeled", res.Labeled),
		applogger.Int("pending", res.Pending),
		applogger.Int("threshold_misses", res.ThresholdMisses))
	return res, nil
}
