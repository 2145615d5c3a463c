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

func TestBackoffWithJitter_Bounds(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
}

func TestStartOffset(t *testing.T) {
	assert.Equal(t, kafka.LastOffset, startOffset("latest"))
	assert.Equal(t, kafka.FirstOffset, startOffset("earliest"))
	assert.Equal(t, kafka.FirstOffset, startOffset(""))
}

func TestHookChain_OrderAndPanicSafety(t *testing.T) {
	var calls []string
	first := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			calls = append(calls, "before-1")
			return ctx, km, append(data, '1'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { calls = append(calls, "after-1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			calls = append(calls, "before-2")
			return ctx, km, append(data, '2'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) {
			calls = append(calls, "after-2")
			panic("boom")
		},
	}

	chain := NewHookChain(first, nil, second)
	_, _, data, err := chain.BeforeHandle(context.Background(), "candles.closed", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x12", string(data))

	assert.NotPanics(t, func() {
		chain.AfterHandle(context.Background(), "candles.closed", kafka.Message{}, data, nil)
	})
	assert.Equal(t, []string{"before-1", "before-2", "after-2", "after-1"}, calls)
}

func TestHookChain_BeforeErrorNotifiesAll(t *testing.T) {
	var notified int
	failing := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, data, &HookError{Code: "ERR_VALIDATION", Err: errors.New("bad payload")}
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) { notified++ },
	}
	observer := HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { notified++ }}

	_, _, _, err := NewHookChain(failing, observer).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var herr *HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ERR_VALIDATION", herr.Code)
	assert.Equal(t, 2, notified)
}

func TestJSONPayloadHook(t *testing.T) {
	h := JSONPayloadHook()

	_, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(`{"inst_id":"BTC-USDT"}`))
	assert.NoError(t, err)

	_, _, _, err = h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	var herr *HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ERR_DECODE", herr.Code)
}

func TestTraceAndStartTime(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{
		{Key: "traceparent", Value: []byte("00-abc-01")},
	}}
	assert.Equal(t, "00-abc-01", ExtractTraceID(km))

	km.Headers = append(km.Headers, kafka.Header{Key: "trace_id", Value: []byte("t-1")})
	assert.Equal(t, "t-1", ExtractTraceID(km))

	ctx := WithTraceID(context.Background(), "")
	assert.Empty(t, TraceIDFrom(ctx))
	ctx = WithTraceID(ctx, "t-1")
	assert.Equal(t, "t-1", TraceIDFrom(ctx))

	_, ok := StartTimeFrom(ctx)
	assert.False(t, ok)
	now := time.Now()
	got, ok := StartTimeFrom(WithStartTime(ctx, now))
	require.True(t, ok)
	assert.Equal(t, now, got)
}

type flakyHandler struct {
	failures int
	calls    int
	panics   bool
}

func (h *flakyHandler) Topic() string { return "candles.closed" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.panics {
		panic("bad candle")
	}
	if h.calls <= h.failures {
		return errors.New("clickhouse unavailable")
	}
	return nil
}

type capturingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, time.Millisecond),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return c
}

func TestConsumerProcess_RetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &flakyHandler{failures: 2}

	err := c.process(h, kafka.Message{Topic: h.Topic(), Value: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.retries.WithLabelValues(h.Topic())))
}

func TestConsumerProcess_GivesUpAfterRetryMax(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &flakyHandler{failures: 10}

	err := c.process(h, kafka.Message{Topic: h.Topic()})
	require.Error(t, err)
	assert.Equal(t, 2, h.calls)
}

func TestConsumerProcess_BeforeHookErrorIsNotRetried(t *testing.T) {
	c := newTestConsumer(t, 3)
	c.WithConsumerHook(JSONPayloadHook())
	h := &flakyHandler{}

	err := c.process(h, kafka.Message{Topic: h.Topic(), Value: []byte("not json")})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, h.calls)
}

func TestConsumerProcess_RecoversPanic(t *testing.T) {
	c := newTestConsumer(t, 0)
	err := c.process(&flakyHandler{panics: true}, kafka.Message{Topic: "candles.closed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad candle")
}

func TestConsumerDeadLetter(t *testing.T) {
	c := newTestConsumer(t, 0)
	km := kafka.Message{Topic: "candles.closed", Partition: 2, Offset: 41, Key: []byte("BTC-USDT"), Value: []byte(`{}`)}

	assert.False(t, c.deadLetter(km, errors.New("x")), "no dlq configured")

	w := &capturingWriter{}
	c.dlq = w
	require.True(t, c.deadLetter(km, errors.New("merge failed")))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("BTC-USDT"), w.msgs[0].Key)

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "candles.closed", headers["source_topic"])
	assert.Equal(t, "2", headers["source_partition"])
	assert.Equal(t, "41", headers["source_offset"])
	assert.Equal(t, "merge failed", headers["error"])

	c.dlq = &capturingWriter{err: errors.New("broker down")}
	assert.False(t, c.deadLetter(km, errors.New("merge failed")))
}

func TestShardFor(t *testing.T) {
	assert.Equal(t, 0, shardFor(5, 1))
	assert.Equal(t, 1, shardFor(5, 4))
	assert.Equal(t, 0, shardFor(-1, 4))
}

func TestConsumerStart_RequiresHandler(t *testing.T) {
	c := newTestConsumer(t, 0)
	assert.Error(t, c.Start())
}
