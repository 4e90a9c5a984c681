package control

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/sim"
)

var (
	ErrUnknownController   = errors.New("control: unknown controller")
	ErrDuplicateController = errors.New("control: controller already registered")
)

// Factory builds a fresh controller instance.
type Factory func() sim.Controller

// Registry resolves controller names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the built-in controllers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	drive := Differential{Left: "left", Right: "right"}
	_ = r.Register("idle", Idle)
	_ = r.Register("forward", func() sim.Controller { return Constant(drive.Mix(0.5, 0)) })
	_ = r.Register("spin", func() sim.Controller { return Constant(drive.Mix(0, 0.5)) })
	_ = r.Register("line_follower", func() sim.Controller { return NewLineFollower(DefaultLineFollowerConfig()) })
	return r
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("control: register needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateController, name)
	}
	r.factories[name] = f
	return nil
}

// New builds the controller registered under name. An empty name yields nil.
func (r *Registry) New(name string) (sim.Controller, error) {
	if name == "" {
		return nil, nil
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, name)
	}
	return f(), nil
}

// Bind builds a fresh controller for every robot, from override when set or
// else from the name each robot carries, and returns the simulator options
// that attach them. The first robot is bound as the simulator's primary.
func (r *Registry) Bind(robots []config.Robot, override string) ([]sim.Option, error) {
	opts := make([]sim.Option, 0, len(robots))
	for i, rb := range robots {
		name := override
		if name == "" {
			name = rb.Controller
		}
		c, err := r.New(name)
		if err != nil {
			return nil, fmt.Errorf("robot %s: %w", rb.Name, err)
		}
		if i == 0 {
			opts = append(opts, sim.WithController(c))
			continue
		}
		id := rb.Name
		if id == "" {
			id = fmt.Sprintf("robot_%d", i+1)
		}
		opts = append(opts, sim.WithRobotController(id, c))
	}
	return opts, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
