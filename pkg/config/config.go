package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"FeatPipe/pkg/logger"
	"FeatPipe/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		BodyLimit       string        `yaml:"body_limit" default:"1M"`
		RateLimit       struct {
			Capacity float64 `yaml:"capacity" default:"10" validate:"gt=0"`
			Refill   float64 `yaml:"refill_per_sec" default:"1" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log        logger.Config `yaml:"log"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost" validate:"required"`
		Port             int           `yaml:"port" default:"9000" validate:"gt=0"`
		Database         string        `yaml:"database" default:"featpipe" validate:"required"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		InitSchema       bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn" validate:"required"`
		MaxConns        int32         `yaml:"max_conns" default:"10"`
		MinConns        int32         `yaml:"min_conns" default:"1"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" default:"30m"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" default:"5m"`
		InitSchema      bool          `yaml:"init_schema"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"featpipe"`
	} `yaml:"redis"`
	Cache struct {
		NormTTL       time.Duration `yaml:"norm_ttl" default:"10m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
		MemoryTTL     time.Duration `yaml:"memory_ttl" default:"1m"`
		MemorySweep   time.Duration `yaml:"memory_sweep" default:"1m"`
		BackfillLock  time.Duration `yaml:"backfill_lock" default:"30m"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"zstd" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			Enabled      bool          `yaml:"enabled"`
			Topic        string        `yaml:"topic" default:"features"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled         bool          `yaml:"enabled"`
			Topic           string        `yaml:"topic" default:"candles.closed"`
			GroupID         string        `yaml:"group_id" default:"featpipe"`
			AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest" validate:"oneof=earliest latest"`
			Workers         int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize      int           `yaml:"buffer_size" default:"64"`
			RetryMax        int           `yaml:"retry_max" default:"3"`
			BackoffMin      time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic        string        `yaml:"dlq_topic"`
			MinBytes        int           `yaml:"min_bytes" default:"1"`
			MaxBytes        int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"featpipe:queue"`
	} `yaml:"queue"`
	Pipeline struct {
		WindowLength int    `yaml:"window_length" default:"48" validate:"gte=2"`
		MaxSkips     int    `yaml:"max_skips" default:"500" validate:"gte=1"`
		Timezone     string `yaml:"timezone" default:"UTC"`
		Indicators   struct {
			RSIWindow        int     `yaml:"rsi_window" default:"14" validate:"gte=1"`
			MACDFast         int     `yaml:"macd_fast" default:"12" validate:"gte=1"`
			MACDSlow         int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
			MACDSignal       int     `yaml:"macd_signal" default:"9" validate:"gte=1"`
			BollingerWindow  int     `yaml:"bollinger_window" default:"20" validate:"gte=2"`
			BollingerK       float64 `yaml:"bollinger_k" default:"2" validate:"gt=0"`
			ATRWindow        int     `yaml:"atr_window" default:"14" validate:"gte=1"`
			ADXWindow        int     `yaml:"adx_window" default:"14" validate:"gte=1"`
			StochK           int     `yaml:"stoch_k" default:"14" validate:"gte=1"`
			StochD           int     `yaml:"stoch_d" default:"3" validate:"gte=1"`
			ImpulseWindow    int     `yaml:"impulse_window" validate:"gte=0"`
			VolatilityWindow int     `yaml:"volatility_window" default:"30" validate:"gte=2"`
			LongShadow       float64 `yaml:"long_shadow_threshold" default:"1" validate:"gt=0"`
			Doji             float64 `yaml:"doji_threshold" default:"0.1" validate:"gt=0,lte=1"`
		} `yaml:"indicators"`
	} `yaml:"pipeline"`
	Labels struct {
		Bar          string      `yaml:"bar" default:"1H" validate:"oneof=15m 1H 4H 1D"`
		Horizon      int         `yaml:"horizon" default:"24" validate:"gte=1"`
		NeutralLabel int         `yaml:"neutral_label" default:"3"`
		Thresholds   []Threshold `yaml:"thresholds" validate:"dive"`
	} `yaml:"labels"`
}

// Threshold is one label bucket in percent. Buckets below neutral are closed
// at Upper, the others at Lower.
type Threshold struct {
	Label int     `yaml:"label"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper" validate:"gtfield=Lower"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load with FEATPIPE_* environment overrides applied before
// validation.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = util.SplitNonEmpty(v)
		}
	}
	integer := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	flag := func(key string, dst *bool) error {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	str("FEATPIPE_ENV", &c.Environment)
	str("FEATPIPE_LOG_LEVEL", &c.Log.Level)
	str("FEATPIPE_CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("FEATPIPE_CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	str("FEATPIPE_POSTGRES_DSN", &c.Postgres.DSN)
	str("FEATPIPE_REDIS_HOST", &c.Redis.Host)
	str("FEATPIPE_REDIS_PASSWORD", &c.Redis.Password)
	str("FEATPIPE_TIMEZONE", &c.Pipeline.Timezone)
	list("FEATPIPE_KAFKA_BROKERS", &c.Kafka.Brokers)
	list("FEATPIPE_CORS_ORIGINS", &c.Server.CORSOrigins)
	for key, dst := range map[string]*int{
		"FEATPIPE_SERVER_PORT":     &c.Server.Port,
		"FEATPIPE_CLICKHOUSE_PORT": &c.ClickHouse.Port,
		"FEATPIPE_WINDOW_LENGTH":   &c.Pipeline.WindowLength,
		"FEATPIPE_LABEL_HORIZON":   &c.Labels.Horizon,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*bool{
		"FEATPIPE_REDIS_ENABLED":          &c.Redis.Enabled,
		"FEATPIPE_KAFKA_PRODUCER_ENABLED": &c.Kafka.Producer.Enabled,
		"FEATPIPE_KAFKA_CONSUMER_ENABLED": &c.Kafka.Consumer.Enabled,
		"FEATPIPE_QUEUE_ENABLED":          &c.Queue.Enabled,
	} {
		if err := flag(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs the struct tags plus the checks that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone: %w", err)
	}
	if (c.Kafka.Producer.Enabled || c.Kafka.Consumer.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis.enabled")
	}
	return c.validateThresholds()
}

// validateThresholds checks an explicit table is ordered, gap-free and
// contains the neutral label. An empty table keeps the built-in one.
func (c *Config) validateThresholds() error {
	ts := c.Labels.Thresholds
	if len(ts) == 0 {
		return nil
	}
	neutral := false
	for i, t := range ts {
		if t.Lower >= t.Upper {
			return fmt.Errorf("labels.thresholds[%d]: lower must be below upper", i)
		}
		if i > 0 && ts[i-1].Upper != t.Lower {
			return fmt.Errorf("labels.thresholds[%d]: gap or overlap after label %d", i, ts[i-1].Label)
		}
		if t.Label == c.Labels.NeutralLabel {
			neutral = true
		}
	}
	if !neutral {
		return fmt.Errorf("labels.neutral_label %d missing from thresholds", c.Labels.NeutralLabel)
	}
	return nil
}

// Location returns the pipeline calendar timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
