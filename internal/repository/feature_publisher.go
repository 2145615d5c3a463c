package repository

import (
	"context"
	"fmt"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pkgkafka "FeatPipe/pkg/kafka"
	applogger "FeatPipe/pkg/logger"
)

// KafkaFeaturePublisher implements Publisher for Kafka. Records are keyed by
// instrument so each instrument stays ordered within a partition.
type KafkaFeaturePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaFeaturePublisher(producer *pkgkafka.Producer, topic string) *KafkaFeaturePublisher {
	return &KafkaFeaturePublisher{producer: producer, topic: topic}
}

func (p *KafkaFeaturePublisher) Publish(ctx context.Context, rec *models.FeatureRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.InstID), rec)
}

func (p *KafkaFeaturePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// FanoutSink persists to the store first, then publishes. A publish failure
// is logged and counted but does not fail the persist.
type FanoutSink struct {
	store     domrepo.FeatureSink
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

// NewFanoutSink accepts a nil publisher, in which case it only persists.
func NewFanoutSink(store domrepo.FeatureSink, publisher domrepo.Publisher, metrics domrepo.Metrics, l *applogger.Logger) *FanoutSink {
	if l == nil {
		l = applogger.Nop()
	}
	return &FanoutSink{store: store, publisher: publisher, metrics: metrics, l: l}
}

func (s *FanoutSink) PersistFeature(ctx context.Context, rec *models.FeatureRecord) error {
	if err := s.store.PersistFeature(ctx, rec); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s.metrics.RecordFeatureSent("store", rec.InstID)
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, rec); err != nil {
		s.metrics.RecordError("publish_feature")
		s.l.Warn("feature publish failed",
			applogger.String("inst_id", rec.InstID),
			applogger.Int64("ts", rec.Timestamp),
			applogger.Error(err))
		return nil
	}
	s.metrics.RecordFeatureSent("kafka", rec.InstID)
	return nil
}

var (
	_ domrepo.Publisher   = (*KafkaFeaturePublisher)(nil)
	_ domrepo.FeatureSink = (*FanoutSink)(nil)
)
