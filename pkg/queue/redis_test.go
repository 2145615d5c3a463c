package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"FeatPipe/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(cfg *QueueConfig) *RedisQueue {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	return NewRedisQueue(logger.Nop(), cfg, client,
		WithKeyPrefix("test:queue"),
		WithQueueRegisterer(prometheus.NewRegistry()))
}

func TestRedisQueue_Keys(t *testing.T) {
	q := newTestQueue(nil)
	assert.Equal(t, "test:queue:pending", q.key(pendingKey))
	assert.Equal(t, "test:queue:dead", q.key(deadKey))
}

func TestRedisQueue_RetryDelayDoublesAndCaps(t *testing.T) {
	q := newTestQueue(&QueueConfig{RetryDelay: time.Second})
	assert.Equal(t, time.Second, q.retryDelay(1))
	assert.Equal(t, 4*time.Second, q.retryDelay(3))
	assert.Equal(t, 32*time.Second, q.retryDelay(6))
	assert.Equal(t, 32*time.Second, q.retryDelay(40))
}

func TestRedisQueue_EnqueueRequiresRunning(t *testing.T) {
	q := newTestQueue(nil)
	q.RegisterJob(timedJob{})
	_, err := q.Enqueue(context.Background(), "timed", nil)
	assert.EqualError(t, err, "queue not running")
}

func TestRedisQueue_RegisterJobKeepsFirst(t *testing.T) {
	q := newTestQueue(nil)
	q.RegisterJobs([]Job{timedJob{d: time.Second}, timedJob{d: time.Minute}})
	require.Len(t, q.jobs, 1)
	assert.Equal(t, time.Second, q.jobs["timed"].(timedJob).d)
}

func TestRawPayload(t *testing.T) {
	got := rawPayload(map[string]interface{}{"inst_id": "ETH-USDT"})
	raw, ok := got.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"inst_id":"ETH-USDT"}`, string(raw))

	p := &backfillPayload{InstID: "ETH-USDT"}
	assert.Same(t, p, rawPayload(p))
}
