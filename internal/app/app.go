// Package app assembles a scenario, its controller, the simulator and the
// optional telemetry stream into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/control"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/harness"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/sim"
	"github.com/zeusync/robosim/internal/server"
)

var ErrInvalidConfig = errors.New("app: invalid configuration")

// Config is everything the command line can set.
type Config struct {
	ScenarioPath string
	// Steps bounds the run. Zero means run until the context ends, which
	// requires Realtime.
	Steps    int
	Realtime bool
	// TracePath enables trace logging; the extension picks the encoding.
	TracePath string
	// ListenAddr enables the websocket telemetry stream when set.
	ListenAddr string
	// TelemetryEvery publishes a frame every n steps.
	TelemetryEvery int
	TopDown        bool
	IgnoreTerrain  bool
	// Runs greater than one evaluates the scenario over consecutive seeds
	// with the batch harness instead of a single interactive run.
	Runs    int
	Workers int

	LogLevel    log.Level
	LogEncoding string
}

func DefaultConfig() Config {
	return Config{
		Steps:          1000,
		TelemetryEvery: 2,
		Runs:           1,
		Workers:        4,
		LogLevel:       log.LevelInfo,
		LogEncoding:    "console",
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.ScenarioPath == "" {
		errs = append(errs, fmt.Errorf("%w: scenario path is required", ErrInvalidConfig))
	}
	if c.Steps < 0 {
		errs = append(errs, fmt.Errorf("%w: steps must not be negative", ErrInvalidConfig))
	}
	if c.Steps == 0 && !c.Realtime {
		errs = append(errs, fmt.Errorf("%w: an unbounded run needs realtime mode", ErrInvalidConfig))
	}
	if c.Runs > 1 && c.Steps == 0 {
		errs = append(errs, fmt.Errorf("%w: batch runs need a step count", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Stats summarises a single run.
type Stats struct {
	Steps            uint64
	SimTime          float64
	NumericalFaults  int
	ControllerFaults int
	Warnings         int
	TraceRecords     int
	Digest           uint64
	Elapsed          time.Duration
}

type App struct {
	config   Config
	root     log.Log
	logger   log.Log
	bus      bus.EventBus
	registry *control.Registry
	scenario *config.Scenario
	sim      *sim.Simulator

	mu    sync.Mutex
	stats Stats
}

// ProvideLogger builds the process logger from the command line settings.
func ProvideLogger(cfg Config) (log.Log, error) {
	lc := log.DefaultConfig()
	lc.Level = cfg.LogLevel
	if cfg.LogEncoding != "" {
		lc.Encoding = cfg.LogEncoding
	}
	return log.NewWithConfig(lc)
}

// New loads the scenario and binds the controller each robot names.
func New(cfg Config, logger log.Log, eventBus bus.EventBus, registry *control.Registry) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TelemetryEvery <= 0 {
		cfg.TelemetryEvery = 1
	}

	scenario, err := config.LoadScenarioFile(cfg.ScenarioPath)
	if err != nil {
		return nil, err
	}
	bindings, err := registry.Bind(scenario.Fleet(), "")
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		root:     logger,
		logger:   logger.With(log.String("component", "app")),
		bus:      eventBus,
		registry: registry,
		scenario: scenario,
	}
	a.sim = sim.New(append([]sim.Option{sim.WithLogger(logger), sim.WithBus(eventBus)}, bindings...)...)
	if err := a.sim.LoadScenario(*scenario, a.loadOptions()); err != nil {
		return nil, err
	}
	if err := a.subscribe(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) Simulator() *sim.Simulator { return a.sim }

func (a *App) loadOptions() sim.LoadOptions {
	return sim.LoadOptions{TopDown: a.config.TopDown, IgnoreTerrain: a.config.IgnoreTerrain}
}

func (a *App) subscribe() error {
	count := func(field *int) bus.EventHandler {
		return func(bus.Event) error {
			a.mu.Lock()
			*field++
			a.mu.Unlock()
			return nil
		}
	}
	subs := []struct {
		eventType string
		handler   bus.EventHandler
	}{
		{bus.TypeNumericalFault, count(&a.stats.NumericalFaults)},
		{bus.TypeControllerFault, count(&a.stats.ControllerFaults)},
		{bus.TypeWarning, count(&a.stats.Warnings)},
	}
	for _, s := range subs {
		if _, err := a.bus.Subscribe(s.eventType, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.eventType, err)
		}
	}
	return nil
}

// Run drives the simulator until the configured step count is reached or ctx ends,
// then writes the trace if one was requested.
func (a *App) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	var telemetry *server.Telemetry
	if a.config.ListenAddr != "" {
		tc := server.DefaultConfig()
		tc.ListenAddr = a.config.ListenAddr
		t, err := server.NewTelemetry(tc, a.root)
		if err != nil {
			return Stats{}, err
		}
		if err := t.Start(ctx); err != nil {
			return Stats{}, err
		}
		telemetry = t
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := telemetry.Stop(stopCtx); err != nil {
				a.logger.Warn("Telemetry shutdown", log.Error(err))
			}
		}()
	}

	if a.config.TracePath != "" {
		a.sim.EnableTraceLogging(true)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var steps int
	hook := func(sim.StepReport) {
		steps++
		if telemetry != nil && steps%a.config.TelemetryEvery == 0 {
			if err := telemetry.PublishState(a.sim); err != nil {
				a.logger.Warn("Telemetry publish failed", log.Error(err))
			}
		}
		if a.config.Steps > 0 && steps >= a.config.Steps {
			cancel()
		}
	}
	runner := sim.NewRunner(a.sim, sim.WithStepHook(hook))

	var err error
	if a.config.Realtime {
		a.logger.Info("Running in real time", log.Duration("step", runner.StepDuration()))
		err = runner.Run(runCtx)
	} else {
		err = runner.RunSteps(runCtx, a.config.Steps)
	}
	// Reaching the step count cancels runCtx; only the caller's cancellation is reported.
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}

	stats := a.snapshotStats(time.Since(start))
	if a.config.TracePath != "" {
		if saveErr := a.sim.SaveTraceLog(a.config.TracePath); saveErr != nil {
			err = errors.Join(err, saveErr)
		} else {
			a.logger.Info("Trace written",
				log.String("path", a.config.TracePath),
				log.Int("records", stats.TraceRecords))
		}
	}

	a.logger.Info("Run finished",
		log.Uint64("steps", stats.Steps),
		log.Float64("sim_time", stats.SimTime),
		log.Int("numerical_faults", stats.NumericalFaults),
		log.Int("controller_faults", stats.ControllerFaults),
		log.Int("warnings", stats.Warnings),
		log.Uint64("digest", stats.Digest),
		log.Duration("elapsed", stats.Elapsed))
	return stats, err
}

func (a *App) snapshotStats(elapsed time.Duration) Stats {
	a.mu.Lock()
	stats := a.stats
	a.mu.Unlock()

	stats.Steps = a.sim.StepIndex()
	stats.SimTime = a.sim.Time()
	stats.Digest = a.sim.Digest()
	stats.Elapsed = elapsed
	if a.config.TracePath != "" {
		if tl, err := a.sim.TraceLog(); err == nil {
			stats.TraceRecords = len(tl.Records)
		}
	}
	return stats
}

// RunBatch evaluates the scenario over Runs consecutive seeds in parallel.
func (a *App) RunBatch(ctx context.Context) (harness.Report, error) {
	runs := a.config.Runs
	if runs < 1 {
		runs = 1
	}
	jobs := make([]harness.Job, runs)
	for i := range jobs {
		sc := *a.scenario
		sc.World.Seed += int64(i)
		jobs[i] = harness.Job{
			Name:     fmt.Sprintf("%s/seed-%d", sc.World.Name, sc.World.Seed),
			Scenario: sc,
			Steps:    a.config.Steps,
			Options:  a.loadOptions(),
		}
	}

	report, err := harness.Run(ctx, jobs, a.config.Workers,
		harness.WithRegistry(a.registry),
		harness.WithLogger(a.root))
	if err != nil {
		return harness.Report{}, err
	}
	sum := report.Summary
	a.logger.Info("Batch finished",
		log.Int("runs", sum.Runs),
		log.Int("faulted", sum.Faulted),
		log.Float64("mean_distance", sum.MeanDistance),
		log.Float64("std_distance", sum.StdDistance),
		log.Float64("mean_adherence", sum.MeanAdherence),
		log.Float64("std_adherence", sum.StdAdherence))
	return report, nil
}
