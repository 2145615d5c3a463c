package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FeatPipe/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue. Pending messages live in a list,
// failed ones wait in a sorted set scored by their due time, and messages
// that cannot succeed end up in a dead-letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	keyPrefix string
	reg       prometheus.Registerer
	depth     *prometheus.GaugeVec
	handled   *prometheus.CounterVec

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// WithQueueRegisterer registers queue metrics on reg instead of the
// default registry.
func WithQueueRegisterer(reg prometheus.Registerer) RedisQueueOption {
	return func(r *RedisQueue) { r.reg = reg }
}

// NewRedisQueue creates a queue that both publishes and runs jobs.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisQueue{
		logger:    lgr,
		config:    config.withDefaults(),
		client:    client,
		keyPrefix: "featpipe:queue",
		jobs:      make(map[string]Job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.depth, r.handled = queueMetrics(r.reg)
	return r
}

// RegisterJobs registers handlers. Call before Start.
func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.logger.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and starts the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryLoop()

	r.running = true
	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("prefix", r.keyPrefix),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers. A job cancelled
// mid-run is not requeued.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes a message for a registered job type.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return "", errors.New("queue not running")
	}
	if !known {
		return "", fmt.Errorf("no job registered for type %q", msgType)
	}

	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: payload, Timestamp: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.key(pendingKey), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	r.logger.Debug("message enqueued", logger.String("id", msg.ID), logger.String("type", msgType))
	return msg.ID, nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	_, err := r.Enqueue(ctx, msgType, payload)
	return err
}

// Stats reports the length of the pending, retry and dead-letter keys.
func (r *RedisQueue) Stats(ctx context.Context) (map[string]int64, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.key(pendingKey))
	retry := pipe.ZCard(ctx, r.key(retryKey))
	dead := pipe.LLen(ctx, r.key(deadKey))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return map[string]int64{
		pendingKey: pending.Val(),
		retryKey:   retry.Val(),
		deadKey:    dead.Val(),
	}, nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, time.Second, r.key(pendingKey)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || r.ctx.Err() != nil {
				continue
			}
			r.logger.Error("brpop failed", logger.Int("worker", id), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-r.ctx.Done():
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.logger.Error("drop undecodable message", logger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.bury(msg, fmt.Errorf("no job registered for type %q", msg.Type))
		return
	}

	ctx, cancel := jobContext(r.ctx, job)
	defer cancel()
	start := time.Now()
	err := job.Handle(ctx, rawPayload(msg.Payload))

	switch {
	case err == nil:
		r.handled.WithLabelValues(msg.Type, "ok").Inc()
		r.logger.Debug("job done",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()))
	case r.ctx.Err() != nil:
		r.handled.WithLabelValues(msg.Type, "cancelled").Inc()
		r.logger.Warn("job cancelled by shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
	default:
		r.fail(msg, job, err)
	}
}

// rawPayload hands jobs the JSON form of a decoded payload so ParsePayload
// can target the job's own struct.
func rawPayload(p interface{}) interface{} {
	switch p.(type) {
	case map[string]interface{}, []interface{}:
		if b, err := json.Marshal(p); err == nil {
			return json.RawMessage(b)
		}
	}
	return p
}

func (r *RedisQueue) fail(msg Message, job Job, err error) {
	r.logger.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Bool("permanent", IsPermanent(err)),
		logger.Error(err))

	if IsPermanent(err) || msg.Attempts >= r.config.RetryLimit {
		r.handled.WithLabelValues(msg.Type, "dead").Inc()
		r.bury(msg, err)
		return
	}

	msg.Attempts++
	due := time.Now().Add(r.retryDelay(msg.Attempts))
	data, merr := json.Marshal(msg)
	if merr != nil {
		r.logger.Error("marshal retry", logger.Error(merr))
		return
	}
	if zerr := r.client.ZAdd(context.Background(), r.key(retryKey), redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: data,
	}).Err(); zerr != nil {
		r.logger.Error("schedule retry", logger.String("id", msg.ID), logger.Error(zerr))
		return
	}
	r.handled.WithLabelValues(msg.Type, "retry").Inc()
	r.logger.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.Format(time.RFC3339)))
}

// retryDelay doubles RetryDelay per attempt, capped at 32x.
func (r *RedisQueue) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return r.config.RetryDelay << uint(attempt-1)
}

type deadLetter struct {
	Message
	Error    string    `json:"error"`
	BuriedAt time.Time `json:"buried_at"`
}

func (r *RedisQueue) bury(msg Message, cause error) {
	data, err := json.Marshal(deadLetter{Message: msg, Error: cause.Error(), BuriedAt: time.Now()})
	if err != nil {
		r.logger.Error("marshal dead letter", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.key(deadKey), data).Err(); err != nil {
		r.logger.Error("dead letter push", logger.String("id", msg.ID), logger.Error(err))
	}
}

// promoteDue moves due retries back to the pending list. ZREM decides the
// winner so two replicas never both requeue the same member.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local moved = 0
for _, m in ipairs(due) do
  if redis.call('ZREM', KEYS[1], m) == 1 then
    redis.call('LPUSH', KEYS[2], m)
    moved = moved + 1
  end
end
return moved
`)

func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			n, err := promoteDue.Run(r.ctx, r.client,
				[]string{r.key(retryKey), r.key(pendingKey)},
				time.Now().UnixMilli(), 100).Int()
			if err != nil && r.ctx.Err() == nil {
				r.logger.Error("promote retries", logger.Error(err))
			}
			if n > 0 {
				r.logger.Debug("retries promoted", logger.Int("count", n))
			}
			r.refreshDepth()
		}
	}
}

func (r *RedisQueue) refreshDepth() {
	stats, err := r.Stats(r.ctx)
	if err != nil {
		return
	}
	for state, n := range stats {
		r.depth.WithLabelValues(state).Set(float64(n))
	}
}

const (
	pendingKey = "pending"
	retryKey   = "retry"
	deadKey    = "dead"
)

func (r *RedisQueue) key(kind string) string {
	return r.keyPrefix + ":" + kind
}

var (
	defaultQueueDepth   *prometheus.GaugeVec
	defaultQueueHandled *prometheus.CounterVec
	defaultQueueOnce    sync.Once
)

func queueMetrics(reg prometheus.Registerer) (*prometheus.GaugeVec, *prometheus.CounterVec) {
	if reg == nil {
		defaultQueueOnce.Do(func() {
			defaultQueueDepth, defaultQueueHandled = buildQueueMetrics(prometheus.DefaultRegisterer)
		})
		return defaultQueueDepth, defaultQueueHandled
	}
	return buildQueueMetrics(reg)
}

func buildQueueMetrics(reg prometheus.Registerer) (*prometheus.GaugeVec, *prometheus.CounterVec) {
	f := promauto.With(reg)
	depth := f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "featpipe_queue_depth",
		Help: "Messages per queue state",
	}, []string{"state"})
	handled := f.NewCounterVec(prometheus.CounterOpts{
		Name: "featpipe_queue_jobs_total",
		Help: "Job outcomes by type",
	}, []string{"type", "result"})
	return depth, handled
}
