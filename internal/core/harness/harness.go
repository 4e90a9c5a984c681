// Package harness evaluates controllers over many independent simulators in parallel.
package harness

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/control"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/sim"
	"github.com/zeusync/robosim/pkg/concurrent"
)

// LineThreshold is the reading above which a line element counts as "on the line".
const LineThreshold = 0.5

// Job is one scenario run.
type Job struct {
	Name     string
	Scenario config.Scenario
	// Controller overrides every robot's configured controller name when set.
	Controller string
	Steps      int
	Options    sim.LoadOptions
	Settings   *sim.Settings
}

type Result struct {
	Job       string    `json:"job"`
	Steps     int       `json:"steps"`
	SimTime   float64   `json:"sim_time"`
	Distance  float64   `json:"distance"`
	FinalPose geom.Pose `json:"final_pose"`
	// Adherence is the fraction of steps with a line under any line sensor.
	// It is only meaningful when LineTracked is set.
	Adherence         float64       `json:"adherence"`
	LineTracked       bool          `json:"line_tracked"`
	NumericalFaults   int           `json:"numerical_faults"`
	ControllerFaulted bool          `json:"controller_faulted"`
	Digest            uint64        `json:"digest"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Summary aggregates results with sample statistics.
type Summary struct {
	Runs          int     `json:"runs"`
	Faulted       int     `json:"faulted"`
	MeanDistance  float64 `json:"mean_distance"`
	StdDistance   float64 `json:"std_distance"`
	MeanAdherence float64 `json:"mean_adherence"`
	StdAdherence  float64 `json:"std_adherence"`
}

type Report struct {
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
}

type options struct {
	registry *control.Registry
	logger   log.Log
}

type Option func(*options)

func WithRegistry(r *control.Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithLogger(l log.Log) Option {
	return func(o *options) { o.logger = l }
}

// Run executes jobs on up to workers goroutines, one simulator per job.
// Results keep the order of jobs. The first failing job cancels the rest.
func Run(ctx context.Context, jobs []Job, workers int, opts ...Option) (Report, error) {
	o := options{registry: control.DefaultRegistry(), logger: log.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	results, err := concurrent.Map(ctx, jobs, workers, func(ctx context.Context, job Job) (Result, error) {
		return runJob(ctx, job, o)
	})
	if err != nil {
		return Report{}, err
	}
	return Report{Results: results, Summary: Summarize(results)}, nil
}

func runJob(ctx context.Context, job Job, o options) (Result, error) {
	simOpts, err := o.registry.Bind(job.Scenario.Fleet(), job.Controller)
	if err != nil {
		return Result{}, fmt.Errorf("job %s: %w", job.Name, err)
	}
	simOpts = append(simOpts, sim.WithLogger(o.logger.With(log.String("job", job.Name))))
	if job.Settings != nil {
		simOpts = append(simOpts, sim.WithSettings(*job.Settings))
	}
	s := sim.New(simOpts...)
	if err := s.LoadScenario(job.Scenario, job.Options); err != nil {
		return Result{}, fmt.Errorf("job %s: %w", job.Name, err)
	}

	res := Result{Job: job.Name}
	start := time.Now()
	prev := s.RobotPose().Position()
	onLine := 0
	for i := 0; i < job.Steps; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		r := s.Step(0)
		res.NumericalFaults += len(r.Faults)
		if r.ControllerFault != nil {
			res.ControllerFaulted = true
		}

		pos := s.RobotPose().Position()
		res.Distance += geom.Distance(prev, pos)
		prev = pos

		tracked, seen := lineSeen(s.Sensors())
		res.LineTracked = res.LineTracked || tracked
		if seen {
			onLine++
		}
	}

	res.Steps = job.Steps
	res.SimTime = s.Time()
	res.FinalPose = s.RobotPose()
	res.Digest = s.Digest()
	res.Elapsed = time.Since(start)
	if job.Steps > 0 {
		res.Adherence = float64(onLine) / float64(job.Steps)
	}
	o.logger.Debug("harness job finished",
		log.String("job", job.Name),
		log.Float64("distance", res.Distance),
		log.Float64("adherence", res.Adherence),
		log.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// lineSeen reports whether any line sensor exists and whether one currently sees a line.
func lineSeen(sensors []*sensor.Sensor) (tracked, seen bool) {
	for _, sn := range sensors {
		if sn.Kind != sensor.KindLine && sn.Kind != sensor.KindLineArray {
			continue
		}
		tracked = true
		r, ok := sn.Last()
		if !ok {
			continue
		}
		if r.Value >= LineThreshold {
			return true, true
		}
		for _, v := range r.Values {
			if v >= LineThreshold {
				return true, true
			}
		}
	}
	return tracked, false
}

// Summarize computes mean and sample standard deviation of distance and adherence.
// Adherence statistics only include runs with a line sensor.
func Summarize(results []Result) Summary {
	sum := Summary{Runs: len(results)}
	var distance, adherence []float64
	for _, r := range results {
		distance = append(distance, r.Distance)
		if r.LineTracked {
			adherence = append(adherence, r.Adherence)
		}
		if r.ControllerFaulted {
			sum.Faulted++
		}
	}
	sum.MeanDistance, sum.StdDistance = meanStd(distance)
	sum.MeanAdherence, sum.StdAdherence = meanStd(adherence)
	return sum
}

func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
