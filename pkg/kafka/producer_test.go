package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerOptions_KeepDefaultsOnZero(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithMaxAttempts(0),
		WithBatchSize(-1),
		WithBatchTimeout(0),
		WithTimeouts(0, 5*time.Second),
		WithRequiredAcks(7),
	} {
		opt(cfg)
	}
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, -1, cfg.RequiredAcks)
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(WithCompression("zstd"))
	require.Error(t, err)
}

func TestProducerPublish_HeadersAndMetrics(t *testing.T) {
	w := &capturingWriter{}
	reg := prometheus.NewRegistry()
	p := &Producer{writer: w, codec: "zstd", metrics: newProducerMetrics(reg)}

	ctx := WithTraceID(context.Background(), "t-42")
	require.NoError(t, p.Publish(ctx, "features", []byte("BTC-USDT"), map[string]float64{"rsi_14_1h": 61.2}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "features", msg.Topic)
	assert.JSONEq(t, `{"rsi_14_1h":61.2}`, string(msg.Value))
	assert.Equal(t, "t-42", ExtractTraceID(msg))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("features", "zstd", "ok")))

	w.err = errors.New("leader not available")
	err := p.Publish(context.Background(), "features", nil, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("features", "zstd", "error")))
}

func TestParseCompression(t *testing.T) {
	name, codec := parseCompression("lz4")
	assert.Equal(t, "lz4", name)
	assert.Equal(t, kafka.Lz4, codec)

	name, _ = parseCompression("brotli")
	assert.Equal(t, "none", name)
}
