package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FeatPipe/internal/service/ratelimit"
	"FeatPipe/pkg/config"
	xhttp "FeatPipe/pkg/http"
	pkgkafka "FeatPipe/pkg/kafka"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/queue"
)

// App encapsulates the serving lifecycle: HTTP API, candle-close consumer
// and the background job queue. Optional parts are nil when disabled.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	http     *xhttp.Server
	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	jobs     *queue.RedisQueue
	limiter  *ratelimit.Limiter
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	jobs *queue.RedisQueue,
	limiter *ratelimit.Limiter,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		l:        l,
		http:     httpServer,
		consumer: consumer,
		kh:       kh,
		jobs:     jobs,
		limiter:  limiter,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every enabled component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.l.Error("job queue start failed", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start failed", applogger.Error(err))
			a.shutdown()
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.http.Start(); err != nil {
		a.l.Error("http server start failed", applogger.Error(err))
		a.shutdown()
		return err
	}

	if a.limiter != nil {
		go a.pruneLimiter(ctx)
	}

	a.l.Info("featpipe running",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(10 * time.Minute); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("keys", n))
			}
		}
	}
}

// shutdown stops intake first so in-flight work can drain. Infrastructure
// clients are closed by the DI cleanup.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
