package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "FeatPipe/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string
	WorkerCount     int
	BufferSize      int // per-worker queue
	RetryMax        int // retries after the first attempt
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
	Logger          *applogger.Logger
	Registerer      prometheus.Registerer
}

type ConsumerOption func(*ConsumerConfig)

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if groupID != "" {
			c.GroupID = groupID
		}
	}
}

// WithConsumerAutoOffsetReset applies to groups without a committed offset:
// "earliest" replays the topic, "latest" only sees new closes.
func WithConsumerAutoOffsetReset(reset string) ConsumerOption {
	return func(c *ConsumerConfig) { c.AutoOffsetReset = reset }
}

func WithConsumerWorkers(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.WorkerCount = n
		}
	}
}

func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		if max >= 0 {
			c.RetryMax = max
		}
		if backoffMin > 0 {
			c.BackoffMin = backoffMin
		}
		if backoffMax > 0 {
			c.BackoffMax = backoffMax
		}
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to topic and
// commits past them. Without a DLQ the offset is left uncommitted.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if minBytes > 0 {
			c.MinBytes = minBytes
		}
		if maxBytes > 0 {
			c.MaxBytes = maxBytes
		}
	}
}

func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

// WithConsumerRegisterer registers consumer metrics on reg instead of the
// default registry.
func WithConsumerRegisterer(reg prometheus.Registerer) ConsumerOption {
	return func(c *ConsumerConfig) { c.Registerer = reg }
}

// Consumer reads registered topics as one consumer group and fans messages
// out to workers by partition. A partition is always served by the same
// worker, so messages of one key are handled in order and offsets are
// committed in order.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	hook     ConsumerHook
	metrics  *consumerMetrics
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	shards   []chan kafka.Message
	dlq      messageWriter
	stop     chan struct{}
	stopOnce sync.Once
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "featpipe",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      16,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        1,
		MaxBytes:        10 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		l:        cfg.Logger,
		hook:     NoopHook{},
		metrics:  newConsumerMetrics(cfg.Registerer),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		stop:     make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return c, nil
}

// WithConsumerHook sets the lifecycle hook. Call before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers handler for its topic. Call before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no kafka handlers registered")
	}

	c.shards = make([]chan kafka.Message, c.cfg.WorkerCount)
	for i := range c.shards {
		c.shards[i] = make(chan kafka.Message, c.cfg.BufferSize)
		c.workWG.Add(1)
		go c.work(i, c.shards[i])
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset(c.cfg.AutoOffsetReset),
		})
		c.readers[topic] = r
		c.readWG.Add(1)
		go c.read(topic, r)
	}

	c.l.Info("kafka consumer started",
		applogger.String("group_id", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount))
	return nil
}

// Stop stops reading, lets workers drain their queues and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		if err = wait(ctx, &c.readWG); err == nil {
			for _, ch := range c.shards {
				close(ch)
			}
			err = wait(ctx, &c.workWG)
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq writer close failed", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.l.Info("kafka consumer stopped")
		}
	})
	return err
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka consumer stop: %w", ctx.Err())
	}
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.readWG.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stop
		cancel()
	}()

	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.l.Error("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
				continue
			case <-c.stop:
				return
			}
		}

		shard := c.shards[shardFor(km.Partition, len(c.shards))]
		select {
		case shard <- km:
			c.metrics.depth.WithLabelValues(topic).Set(float64(len(shard)))
		case <-c.stop:
			return
		}
	}
}

func shardFor(partition, n int) int {
	if n <= 1 || partition < 0 {
		return 0
	}
	return partition % n
}

func (c *Consumer) work(id int, in <-chan kafka.Message) {
	defer c.workWG.Done()
	for km := range in {
		h, ok := c.handlers[km.Topic]
		if !ok {
			c.l.Warn("kafka message for unregistered topic", applogger.String("topic", km.Topic))
			continue
		}
		start := time.Now()
		err := c.process(h, km)
		c.metrics.latency.WithLabelValues(km.Topic).Observe(time.Since(start).Seconds())

		if err != nil {
			c.metrics.failed.WithLabelValues(km.Topic).Inc()
			c.l.Error("kafka handler failed",
				applogger.String("topic", km.Topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Int("worker", id),
				applogger.Error(err))
			if !c.deadLetter(km, err) {
				// leave uncommitted so the group redelivers after a restart
				continue
			}
		}
		if r := c.readers[km.Topic]; r != nil {
			_ = c.commit(r, km)
		}
	}
}

// process runs the hooks and the handler, retrying handler errors with
// backoff. Before-hook errors are not retried.
func (c *Consumer) process(h MessageHandler, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	for attempt := 1; ; attempt++ {
		ctx, hkm, data, berr := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
		if berr != nil {
			return berr
		}
		err = h.Handle(ctx, data)
		c.hook.AfterHandle(ctx, km.Topic, hkm, data, err)
		if err == nil {
			return nil
		}
		c.hook.OnError(ctx, km.Topic, hkm, data, err)
		if attempt > c.cfg.RetryMax {
			return err
		}
		c.metrics.retries.WithLabelValues(km.Topic).Inc()
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

// deadLetter reports whether km was parked and may be committed.
func (c *Consumer) deadLetter(km kafka.Message, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: append(km.Headers,
			kafka.Header{Key: "source_topic", Value: []byte(km.Topic)},
			kafka.Header{Key: "source_partition", Value: []byte(strconv.Itoa(km.Partition))},
			kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
		),
	})
	if err != nil {
		c.l.Error("kafka dlq write failed", applogger.String("dlq_topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	c.metrics.deadLettered.WithLabelValues(km.Topic).Inc()
	return true
}

func (c *Consumer) commit(r *kafka.Reader, km kafka.Message) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Error("kafka commit failed",
		applogger.String("topic", km.Topic),
		applogger.Int64("offset", km.Offset),
		applogger.Error(err))
	return err
}

// startOffset applies only when the group has no committed offset yet.
func startOffset(reset string) int64 {
	if reset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// backoffWithJitter doubles from min per attempt, caps at max and
// subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

type consumerMetrics struct {
	depth        *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
}

var (
	defaultConsumerMetrics     *consumerMetrics
	defaultConsumerMetricsOnce sync.Once
)

// newConsumerMetrics registers on reg, or once on the default registry
// when reg is nil.
func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		defaultConsumerMetricsOnce.Do(func() {
			defaultConsumerMetrics = buildConsumerMetrics(prometheus.DefaultRegisterer)
		})
		return defaultConsumerMetrics
	}
	return buildConsumerMetrics(reg)
}

func buildConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	f := promauto.With(reg)
	return &consumerMetrics{
		depth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "featpipe_kafka_consumer_queue_depth",
			Help: "Messages waiting in the worker queue that last received one",
		}, []string{"topic"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "featpipe_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"topic"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "featpipe_kafka_consumer_retries_total",
			Help: "Handler retries",
		}, []string{"topic"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "featpipe_kafka_consumer_failed_total",
			Help: "Messages that exhausted retries",
		}, []string{"topic"}),
		deadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "featpipe_kafka_consumer_dead_lettered_total",
			Help: "Messages written to the dead letter topic",
		}, []string{"topic"}),
	}
}
