package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/robosim/internal/app"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/injector"
)

func main() {
	cfg := app.DefaultConfig()
	var logLevel string
	var report string

	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "scenario YAML or JSON file")
	flag.IntVar(&cfg.Steps, "steps", cfg.Steps, "number of steps to run (0 runs until interrupted, realtime only)")
	flag.StringVar(&cfg.TracePath, "trace", "", "write a trace log (.json, .json.sz or .json.zst)")
	flag.StringVar(&cfg.ListenAddr, "listen", "", "serve websocket telemetry on this address, e.g. 127.0.0.1:8080")
	flag.BoolVar(&cfg.Realtime, "realtime", false, "step in wall-clock time instead of as fast as possible")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn, error or silent")
	flag.StringVar(&cfg.LogEncoding, "log-format", cfg.LogEncoding, "console or json")
	flag.BoolVar(&cfg.TopDown, "top-down", false, "disable gravity")
	flag.BoolVar(&cfg.IgnoreTerrain, "ignore-terrain", false, "load the world without terrain bodies")
	flag.IntVar(&cfg.TelemetryEvery, "telemetry-every", cfg.TelemetryEvery, "publish a telemetry frame every n steps")
	flag.IntVar(&cfg.Runs, "runs", cfg.Runs, "evaluate the scenario over this many consecutive seeds")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel simulators for -runs")
	flag.StringVar(&report, "report", "", "write the batch report as JSON to this file")
	flag.Parse()

	cfg.LogLevel = log.ParseLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cfg, report)
	logger := log.Provide()
	if err != nil {
		logger.Error("robosim failed", log.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, report string) error {
	a, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}

	if cfg.Runs > 1 {
		rep, err := a.RunBatch(ctx)
		if err != nil {
			return err
		}
		if report == "" {
			return nil
		}
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(report, data, 0o644)
	}

	_, err = a.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
