package sim

import (
	"context"
	"time"
)

// DefaultMaxBacklog bounds how many steps one tick may run while catching up.
const DefaultMaxBacklog = 5

// Runner drives a Simulator at its world timestep in wall-clock time.
type Runner struct {
	sim        *Simulator
	step       time.Duration
	maxBacklog int
	onStep     func(StepReport)
}

type RunnerOption func(*Runner)

// WithMaxBacklog caps the catch-up steps per tick; time beyond the cap is dropped.
func WithMaxBacklog(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxBacklog = n
		}
	}
}

// WithStepHook is called after every step on the runner goroutine.
func WithStepHook(fn func(StepReport)) RunnerOption {
	return func(r *Runner) { r.onStep = fn }
}

func NewRunner(s *Simulator, opts ...RunnerOption) *Runner {
	r := &Runner{sim: s, maxBacklog: DefaultMaxBacklog}
	dt := s.Timestep()
	if !(dt > 0) {
		dt = 1.0 / 120
	}
	r.step = time.Duration(dt * float64(time.Second))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) StepDuration() time.Duration { return r.step }

// Run steps in real time until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if !r.sim.Loaded() {
		return ErrNotLoaded
	}
	ticker := time.NewTicker(r.step)
	defer ticker.Stop()

	last := time.Now()
	var accumulator time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			//1.- Accumulate elapsed time and run fixed steps while catching up.
			accumulator += now.Sub(last)
			last = now
			steps := 0
			for accumulator >= r.step && steps < r.maxBacklog {
				r.advance()
				accumulator -= r.step
				steps++
			}
			//2.- Drop whatever could not be caught up so a stall does not snowball.
			if accumulator >= r.step {
				accumulator = 0
			}
		}
	}
}

// RunSteps executes n steps as fast as possible, checking ctx between steps.
func (r *Runner) RunSteps(ctx context.Context, n int) error {
	if !r.sim.Loaded() {
		return ErrNotLoaded
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.advance()
	}
	return nil
}

func (r *Runner) advance() {
	report := r.sim.Step(r.sim.Timestep())
	if r.onStep != nil {
		r.onStep(report)
	}
}
