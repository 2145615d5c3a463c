package usecase

import (
	"context"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/queue"
	"FeatPipe/pkg/util"
)

const (
	JobTypeBackfill = "features.backfill"
	JobTypeLabels   = "labels.run"
)

// BackfillPayload is the queued form of a backfill request.
type BackfillPayload struct {
	InstID string `json:"inst_id"`
	Count  int    `json:"count"`
	AsOf   string `json:"as_of,omitempty"`
}

// BackfillJob runs queued backfills.
type BackfillJob struct {
	pipeline *FeaturePipeline
	l        *applogger.Logger
}

func NewBackfillJob(pipeline *FeaturePipeline, l *applogger.Logger) *BackfillJob {
	return &BackfillJob{pipeline: pipeline, l: l}
}

func (j *BackfillJob) Name() string { return "feature-backfill" }
func (j *BackfillJob) Type() string { return JobTypeBackfill }

// Timeout bounds one queued backfill.
func (j *BackfillJob) Timeout() time.Duration { return 30 * time.Minute }

func (j *BackfillJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[BackfillPayload](payload)
	if err != nil {
		return queue.Permanent(err)
	}
	asOf, err := ParseAsOf(p.AsOf)
	if err != nil {
		return queue.Permanent(err)
	}
	res, err := j.pipeline.Backfill(ctx, p.InstID, asOf, p.Count)
	if err != nil {
		return err
	}
	j.l.Info("queued backfill done",
		applogger.String("run_id", res.RunID),
		applogger.String("inst_id", p.InstID),
		applogger.Int("produced", res.Produced),
		applogger.Int("skipped", len(res.Skipped)))
	return nil
}

// LabelPayload is the queued form of a label run.
type LabelPayload struct {
	InstID string `json:"inst_id"`
	Mode   string `json:"mode"`
	Limit  int    `json:"limit"`
}

// LabelJob runs queued label passes.
type LabelJob struct {
	labels *LabelGenerator
	l      *applogger.Logger
}

func NewLabelJob(labels *LabelGenerator, l *applogger.Logger) *LabelJob {
	return &LabelJob{labels: labels, l: l}
}

func (j *LabelJob) Name() string { return "label-run" }
func (j *LabelJob) Type() string { return JobTypeLabels }

func (j *LabelJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[LabelPayload](payload)
	if err != nil {
		return queue.Permanent(err)
	}
	mode := models.LabelMode(p.Mode)
	if mode != models.LabelModeFix && mode != models.LabelModeAll {
		return queue.Permanent(fmt.Errorf("unknown label mode %q", p.Mode))
	}
	_, err = j.labels.Run(ctx, p.InstID, mode, p.Limit)
	return err
}

// ParseAsOf accepts RFC3339 or a unix epoch (seconds or ms); empty means latest.
func ParseAsOf(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	ms, ok := util.ParseMillis(s)
	if !ok {
		return nil, fmt.Errorf("invalid as_of %q", s)
	}
	return &ms, nil
}

var (
	_ queue.Job = (*BackfillJob)(nil)
	_ queue.Job = (*LabelJob)(nil)
)
