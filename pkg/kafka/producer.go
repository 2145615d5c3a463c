package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON payloads. Payloads that are already encoded
// ([]byte, string) are sent as-is.
type Producer struct {
	writer  messageWriter
	codec   string
	metrics *producerMetrics
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	codec, compression := parseCompression(cfg.Compression)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compression,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	return &Producer{writer: w, codec: codec, metrics: newProducerMetrics(cfg.Registerer)}, nil
}

// Publish encodes value and writes it to topic under key. A trace id on
// ctx is forwarded as the trace_id header.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   payload,
		Time:    start,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	}
	if id := TraceIDFrom(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: traceIDHeader, Value: []byte(id)})
	}

	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.observe(topic, p.codec, len(payload), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

// parseCompression returns the codec name actually used for metrics
// labels along with the kafka-go codec.
func parseCompression(s string) (string, kafka.Compression) {
	switch s {
	case "gzip":
		return s, kafka.Gzip
	case "snappy":
		return s, kafka.Snappy
	case "lz4":
		return s, kafka.Lz4
	case "zstd":
		return s, kafka.Zstd
	default:
		return "none", 0
	}
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	defaultProducerMetrics     *producerMetrics
	defaultProducerMetricsOnce sync.Once
)

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		defaultProducerMetricsOnce.Do(func() {
			defaultProducerMetrics = buildProducerMetrics(prometheus.DefaultRegisterer)
		})
		return defaultProducerMetrics
	}
	return buildProducerMetrics(reg)
}

func buildProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "featpipe_kafka_producer_messages_total",
			Help: "Messages published to Kafka by result",
		}, []string{"topic", "compression", "result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "featpipe_kafka_producer_bytes_total",
			Help: "Payload bytes published before compression",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "featpipe_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, codec string, n int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, codec, result).Inc()
	m.bytes.WithLabelValues(topic, codec).Add(float64(n))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
