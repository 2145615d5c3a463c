package di

import (
	"context"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/domain/repository"
	"FeatPipe/internal/handler/api"
	internalrepo "FeatPipe/internal/repository"
	pipemetrics "FeatPipe/internal/service/metrics"
	"FeatPipe/internal/service/ratelimit"
	"FeatPipe/internal/services/features"
	"FeatPipe/internal/services/indicators"
	"FeatPipe/internal/usecase"
	"FeatPipe/pkg/cache"
	pkgch "FeatPipe/pkg/clickhouse"
	"FeatPipe/pkg/config"
	xhttp "FeatPipe/pkg/http"
	pkgkafka "FeatPipe/pkg/kafka"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/metrics"
	"FeatPipe/pkg/postgres"
	"FeatPipe/pkg/queue"
	"FeatPipe/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// Toolkit exposes the use cases to one-shot CLI modes.
type Toolkit struct {
	Pipeline *usecase.FeaturePipeline
	Labels   *usecase.LabelGenerator
	Fitter   *usecase.NormalizationFitter
	Logger   *applogger.Logger
}

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the
// pipeline collectors on the default registry.
func ProvideMetrics() repository.Metrics {
	pipemetrics.Register(prometheus.DefaultRegisterer)
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("clickhouse connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePostgresPool opens the pool that backs normalization params.
func ProvidePostgresPool(cfg *config.Config, l *applogger.Logger) (*postgres.Pool, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN,
		postgres.WithMaxConns(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
		postgres.WithConnLifetime(cfg.Postgres.MaxConnLifetime, cfg.Postgres.MaxConnIdleTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", err)
	}
	l.Info("postgres connected", applogger.Int("max_conns", int(cfg.Postgres.MaxConns)))
	return pool, pool.Close, nil
}

// ProvideRedisCache connects to Redis. It returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", applogger.String("addr", rc.Client().Options().Addr))
	return rc, func() {}, nil
}

// ProvideCache layers an in-process cache over Redis, or falls back to the
// in-process cache alone when Redis is disabled.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.MemorySweep),
		)
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
	return lc, func() {
		if err := lc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
}

// ProvideCandleStore reads candles from ClickHouse.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.CandleStore {
	return internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database, cfg.Location(), l)
}

// ProvideFeatureStore creates the ClickHouse feature store, applying the
// schema when configured.
func ProvideFeatureStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHFeatureStore, error) {
	store := internalrepo.NewCHFeatureStore(ch, cfg.ClickHouse.Database, l)
	if cfg.ClickHouse.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return store, nil
}

// ProvideNormalizationStore is the Postgres store behind a read-through cache.
func ProvideNormalizationStore(pool *postgres.Pool, c cache.Service, cfg *config.Config, l *applogger.Logger) (repository.NormalizationStore, error) {
	pg := internalrepo.NewPGNormalizationStore(pool, l)
	if cfg.Postgres.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.Init(ctx); err != nil {
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	return internalrepo.NewCachedNormalizationStore(pg, c, cfg.Cache.NormTTL, l), nil
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when the
// producer is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Producer.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideFeaturePublisher wraps the producer. A nil producer yields a nil
// Publisher so the sink only persists.
func ProvideFeaturePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaFeaturePublisher(producer, cfg.Kafka.Producer.Topic)
}

// ProvideFeatureSink persists to ClickHouse and then publishes.
func ProvideFeatureSink(store *internalrepo.CHFeatureStore, pub repository.Publisher, m repository.Metrics, l *applogger.Logger) repository.FeatureSink {
	return internalrepo.NewFanoutSink(store, pub, m, l)
}

// ProvideLabelStore exposes the feature store's label side.
func ProvideLabelStore(store *internalrepo.CHFeatureStore) repository.LabelStore {
	return store
}

// MergerConfigFrom maps the pipeline section onto builder parameters.
func MergerConfigFrom(cfg *config.Config) usecase.MergerConfig {
	ind := cfg.Pipeline.Indicators
	return usecase.MergerConfig{
		WindowLength: cfg.Pipeline.WindowLength,
		MaxSkips:     cfg.Pipeline.MaxSkips,
		Builders: features.Config{
			RSIWindow:        ind.RSIWindow,
			MACD:             indicators.MACD{Fast: ind.MACDFast, Slow: ind.MACDSlow, Signal: ind.MACDSignal},
			Bollinger:        indicators.Bollinger{Window: ind.BollingerWindow, K: ind.BollingerK},
			ATRWindow:        ind.ATRWindow,
			ADXWindow:        ind.ADXWindow,
			Stochastic:       indicators.Stochastic{KWindow: ind.StochK, DWindow: ind.StochD},
			Pinbar:           indicators.Pinbar{LongShadowThreshold: ind.LongShadow, DojiThreshold: ind.Doji},
			ImpulseWindow:    ind.ImpulseWindow,
			VolatilityWindow: ind.VolatilityWindow,
		},
	}
}

// LabelConfigFrom maps the labels section. An empty threshold list keeps the
// default table.
func LabelConfigFrom(cfg *config.Config) usecase.LabelConfig {
	lc := usecase.DefaultLabelConfig()
	lc.Bar = models.BarInterval(cfg.Labels.Bar)
	lc.Horizon = cfg.Labels.Horizon
	lc.NeutralLabel = cfg.Labels.NeutralLabel
	if len(cfg.Labels.Thresholds) > 0 {
		lc.Thresholds = make([]models.LabelThreshold, 0, len(cfg.Labels.Thresholds))
		for _, t := range cfg.Labels.Thresholds {
			lc.Thresholds = append(lc.Thresholds, models.LabelThreshold{Label: t.Label, Lower: t.Lower, Upper: t.Upper})
		}
	}
	return lc
}

func ProvideFeatureMerger(candles repository.CandleStore, norms repository.NormalizationStore, cfg *config.Config, l *applogger.Logger) *usecase.FeatureMerger {
	return usecase.NewFeatureMerger(candles, norms, MergerConfigFrom(cfg), l)
}

func ProvideFeaturePipeline(merger *usecase.FeatureMerger, sink repository.FeatureSink, m repository.Metrics, l *applogger.Logger) *usecase.FeaturePipeline {
	return usecase.NewFeaturePipeline(merger, sink, m, l)
}

func ProvideLabelGenerator(candles repository.CandleStore, labels repository.LabelStore, cfg *config.Config, l *applogger.Logger) (*usecase.LabelGenerator, error) {
	return usecase.NewLabelGenerator(candles, labels, LabelConfigFrom(cfg), l)
}

func ProvideNormalizationFitter(candles repository.CandleStore, norms repository.NormalizationStore, l *applogger.Logger) *usecase.NormalizationFitter {
	return usecase.NewNormalizationFitter(candles, norms, l)
}

func ProvideCandlesUseCase(candles repository.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(candles)
}

// ProvideCandleCloseHandler handles the candle-close topic.
func ProvideCandleCloseHandler(cfg *config.Config, p *usecase.FeaturePipeline, labels *usecase.LabelGenerator, m repository.Metrics, l *applogger.Logger) *usecase.CandleCloseHandler {
	return usecase.NewCandleCloseHandler(cfg.Kafka.Consumer.Topic, p, labels, m, l)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML. It
// returns nil when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.JSONPayloadHook(), tracingHook(l)))
	return consumer, nil
}

// tracingHook stamps the handling context with a start time and the
// producer's trace id, and logs slow or failed messages.
func tracingHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			start, ok := pkgkafka.StartTimeFrom(ctx)
			if !ok || err != nil {
				return
			}
			if d := time.Since(start); d > 5*time.Second {
				l.Warn("slow candle message",
					applogger.String("topic", topic),
					applogger.Int("partition", km.Partition),
					applogger.Int64("offset", km.Offset),
					applogger.Duration("took", d))
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			l.Warn("candle message attempt failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
				applogger.Error(err))
		},
	}
}

// ProvideJobQueue creates the Redis job queue with the backfill and label
// jobs registered. It returns nil when the queue is disabled.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, p *usecase.FeaturePipeline, labels *usecase.LabelGenerator, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJobs([]queue.Job{
		usecase.NewBackfillJob(p, l),
		usecase.NewLabelJob(labels, l),
	})
	return q
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.Refill)
}

// ProvideFeaturesHandler wires the HTTP API. Async paths are enabled only
// when the job queue exists.
func ProvideFeaturesHandler(
	cfg *config.Config,
	l *applogger.Logger,
	p *usecase.FeaturePipeline,
	labels *usecase.LabelGenerator,
	fitter *usecase.NormalizationFitter,
	candles *usecase.CandlesUseCase,
	c cache.Service,
	q *queue.RedisQueue,
	rl *ratelimit.Limiter,
) *api.FeaturesHandler {
	opts := []api.FeaturesHandlerOption{
		api.WithBackfillLock(c, cfg.Cache.BackfillLock),
		api.WithRateLimit(rl),
	}
	if q != nil {
		opts = append(opts, api.WithJobQueue(q))
	}
	return api.NewFeaturesHandler(l, p, labels, fitter, candles, opts...)
}

// ProvideReadinessHandler checks every backing store.
func ProvideReadinessHandler(l *applogger.Logger, ch *pkgch.Client, pool *postgres.Pool, rc *cache.RedisCache) *api.ReadinessHandler {
	checks := map[string]api.Checker{
		"clickhouse": ch.Health,
		"postgres":   pool.Health,
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	return api.NewReadinessHandler(l, checks)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, fh *api.FeaturesHandler, rh *api.ReadinessHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(xhttp.Handlers{fh, rh},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(metricsPath, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		xhttp.WithLogger(l),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.CandleCloseHandler,
	q *queue.RedisQueue,
	rl *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, srv, consumer, kh, q, rl)
}

// ProvideToolkit bundles the use cases for CLI modes.
func ProvideToolkit(l *applogger.Logger, p *usecase.FeaturePipeline, labels *usecase.LabelGenerator, fitter *usecase.NormalizationFitter) *Toolkit {
	return &Toolkit{Pipeline: p, Labels: labels, Fitter: fitter, Logger: l}
}
