package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"FeatPipe/internal/di"
	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	"FeatPipe/internal/usecase"
	"FeatPipe/pkg/config"
	applogger "FeatPipe/pkg/logger"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "serve", "serve | merge | backfill | label | fit-norm")
	inst := flag.String("inst", "", "instrument id, e.g. BTC-USDT")
	asOf := flag.String("as-of", "", "exclusive upper bound (RFC3339 or epoch); empty means latest")
	count := flag.Int("count", 100, "backfill: number of anchors to walk back")
	persist := flag.Bool("persist", false, "merge: persist the record")
	labelMode := flag.String("label-mode", string(models.LabelModeFix), "label: fix | all")
	limit := flag.Int("limit", 1000, "label: max records to visit")
	bar := flag.String("bar", "1H", "fit-norm: granularity")
	column := flag.String("column", "close", "fit-norm: close | volume")
	length := flag.Int("length", 2000, "fit-norm: candles to fit over")
	flag.Parse()

	boot, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stderr"})

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Error("config load failed", applogger.String("path", *configPath), applogger.Error(err))
		os.Exit(1)
	}

	if *mode == "serve" {
		os.Exit(serve(cfg, boot))
	}

	if *inst == "" {
		boot.Error("-inst is required", applogger.String("mode", *mode))
		os.Exit(2)
	}
	cutoff, err := usecase.ParseAsOf(*asOf)
	if err != nil {
		boot.Error("bad -as-of", applogger.Error(err))
		os.Exit(2)
	}

	kit, cleanup, err := di.InitializeToolkit(cfg)
	if err != nil {
		boot.Error("initialization failed", applogger.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out interface{}
	switch *mode {
	case "merge":
		out, err = kit.Pipeline.Merge(ctx, *inst, cutoff, *persist)
	case "backfill":
		out, err = kit.Pipeline.Backfill(ctx, *inst, cutoff, *count)
	case "label":
		out, err = kit.Labels.Run(ctx, *inst, models.LabelMode(*labelMode), *limit)
	case "fit-norm":
		out, err = kit.Fitter.Fit(ctx, *inst, domrepo.NormalizeBar(*bar), *column, *length)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		kit.Logger.Error("run failed", applogger.String("mode", *mode), applogger.String("inst_id", *inst), applogger.Error(err))
		cleanup()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		kit.Logger.Error("encode result", applogger.Error(err))
	}
}

func serve(cfg *config.Config, boot *applogger.Logger) int {
	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		return 1
	}
	defer cleanup()

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		boot.Error("app error", applogger.Error(err))
		return 1
	}
	return 0
}
