package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pkgkafka "FeatPipe/pkg/kafka"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/util"
)

// CandleCloseHandler reacts to closed 1H candles: it merges the new anchor
// and labels the anchor whose horizon just completed.
type CandleCloseHandler struct {
	topic    string
	pipeline *FeaturePipeline
	labels   *LabelGenerator
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewCandleCloseHandler(topic string, pipeline *FeaturePipeline, labels *LabelGenerator, metrics domrepo.Metrics, l *applogger.Logger) *CandleCloseHandler {
	return &CandleCloseHandler{topic: topic, pipeline: pipeline, labels: labels, metrics: metrics, l: l}
}

func (h *CandleCloseHandler) Topic() string { return h.topic }

// CandleClosedEvent is the message schema: {inst_id, bar, ts}, ts being the
// open time of the closed candle in epoch ms.
type CandleClosedEvent struct {
	InstID string `json:"inst_id"`
	Bar    string `json:"bar"`
	TS     int64  `json:"ts"`
}

func (h *CandleCloseHandler) Handle(ctx context.Context, b []byte) error {
	var ev CandleClosedEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if ev.InstID == "" || ev.TS <= 0 {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("invalid candle event: %s", string(b))
	}
	bar := models.BarInterval(ev.Bar)
	if bar != models.Bar1H {
		return nil
	}

	// producers may stamp a few ms past the bar boundary
	ts := util.AlignMillis(ev.TS, bar.Millis())
	closedAt := ts + bar.Millis()
	h.metrics.RecordLatency("candle_event_lag_seconds", time.Since(time.UnixMilli(closedAt)).Seconds())

	rec, err := h.pipeline.Merge(ctx, ev.InstID, &closedAt, true)
	switch {
	case err == nil:
		h.metrics.RecordFeatureSent("pipeline", ev.InstID)
	case isDataSkip(err):
		h.l.Info("no feature record for closed candle",
			applogger.String("inst_id", ev.InstID),
			applogger.Int64("ts", ts),
			applogger.Error(err))
	default:
		h.metrics.RecordError("consumer_merge")
		return err
	}
	if rec != nil && rec.Timestamp != ts {
		h.l.Warn("merged anchor differs from closed candle",
			applogger.String("inst_id", ev.InstID),
			applogger.Int64("ts", ts),
			applogger.Int64("anchor", rec.Timestamp))
	}

	if h.labels == nil {
		return nil
	}
	anchor := ts - int64(h.labels.Horizon())*h.labels.Bar().Millis()
	label, err := h.labels.LabelAndStore(ctx, ev.InstID, anchor)
	switch {
	case err == nil:
		h.l.Debug("label stored",
			applogger.String("inst_id", ev.InstID),
			applogger.Int64("anchor", anchor),
			applogger.Int("label", label))
	case errors.Is(err, ErrFutureUnavailable), errors.Is(err, ErrInvalidPrice):
		h.l.Debug("label not yet available",
			applogger.String("inst_id", ev.InstID),
			applogger.Int64("anchor", anchor),
			applogger.Error(err))
	default:
		h.metrics.RecordError("consumer_label")
		return err
	}
	return nil
}

// isDataSkip reports merge failures that are data conditions rather than faults.
func isDataSkip(err error) bool {
	var aerr *AnchorError
	return errors.Is(err, ErrInsufficientData) || errors.As(err, &aerr)
}

var _ pkgkafka.MessageHandler = (*CandleCloseHandler)(nil)
