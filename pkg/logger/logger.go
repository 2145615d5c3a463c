package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled structured logger backed by zerolog.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"` // stdout, stderr, or file path
	TimeFormat string `yaml:"time_format"`
}

// callerSkip points the caller field past emit and the level method.
const callerSkip = 4

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	return newLogger(out, level), nil
}

func newLogger(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(callerSkip).
		Logger()
	return &Logger{zl: zl}
}

func openOutput(dst string) (io.Writer, error) {
	switch dst {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.ctx(ctx)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}

// Field is one key/value pair. It knows how to attach itself to a single
// event and to a child logger context.
type Field struct {
	event func(*zerolog.Event)
	ctx   func(zerolog.Context) zerolog.Context
}

func String(key, v string) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Str(key, v) },
		ctx:   func(c zerolog.Context) zerolog.Context { return c.Str(key, v) },
	}
}

func Int(key string, v int) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Int(key, v) },
		ctx:   func(c zerolog.Context) zerolog.Context { return c.Int(key, v) },
	}
}

func Int64(key string, v int64) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Int64(key, v) },
		ctx:   func(c zerolog.Context) zerolog.Context { return c.Int64(key, v) },
	}
}

func Float64(key string, v float64) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Float64(key, v) },
		ctx:   func(c zerolog.Context) zerolog.Context { return c.Float64(key, v) },
	}
}

func Bool(key string, v bool) Field {
	return Field{
		event: func(e *zerolog.Event) { e.Bool(key, v) },
		ctx:   func(c zerolog.Context) zerolog.Context { return c.Bool(key, v) },
	}
}

// Duration logs d in whole milliseconds under key + "_ms".
func Duration(key string, d time.Duration) Field {
	return Int64(key+"_ms", d.Milliseconds())
}

// Error logs err under "error"; a nil error adds nothing.
func Error(err error) Field {
	return Field{
		event: func(e *zerolog.Event) {
			if err != nil {
				e.Err(err)
			}
		},
		ctx: func(c zerolog.Context) zerolog.Context {
			if err != nil {
				return c.Err(err)
			}
			return c
		},
	}
}
