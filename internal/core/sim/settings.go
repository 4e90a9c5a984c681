package sim

import (
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics/body"
	"github.com/zeusync/robosim/internal/core/physics/contact"
	"github.com/zeusync/robosim/internal/core/physics/joint"
)

// Settings are the solver tunables. Gravity in Integration is replaced by the world's on Load.
type Settings struct {
	Integration body.Settings    `json:"integration" yaml:"integration"`
	Joints      joint.Settings   `json:"joints" yaml:"joints"`
	Contacts    contact.Settings `json:"contacts" yaml:"contacts"`
	// MaxStepTranslation limits how far a body may move in one step; <= 0 disables the clamp.
	MaxStepTranslation float64 `json:"max_step_translation" yaml:"max_step_translation"`
}

// multiRobotStepTranslation caps MaxStepTranslation when several robots share a world.
const multiRobotStepTranslation = 0.25

func DefaultSettings() Settings {
	return Settings{
		Integration:        body.DefaultSettings(),
		Joints:             joint.DefaultSettings(),
		Contacts:           contact.DefaultSettings(),
		MaxStepTranslation: 0.5,
	}
}

// LoadOptions tweak how a scenario is instantiated.
type LoadOptions struct {
	// TopDown forces zero gravity.
	TopDown bool
	// IgnoreTerrain skips the world's terrain bodies. Drawings and bounds are kept.
	IgnoreTerrain bool
}

type RebindOptions struct {
	// KeepState transfers the opaque state of the old controller into the new one.
	KeepState bool
}

// Option configures a Simulator.
type Option func(*Simulator)

func WithLogger(l log.Log) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBus publishes step and fault events to b.
func WithBus(b bus.EventBus) Option {
	return func(s *Simulator) { s.bus = b }
}

func WithSettings(settings Settings) Option {
	return func(s *Simulator) { s.settings = settings }
}

// WithController binds c to the first robot of every scenario loaded later.
func WithController(c Controller) Option {
	return func(s *Simulator) { s.primary = c }
}

// WithRobotController binds c to the robot called name. It takes precedence
// over WithController when that robot comes first.
func WithRobotController(name string, c Controller) Option {
	return func(s *Simulator) {
		if s.bindings == nil {
			s.bindings = make(map[string]Controller)
		}
		s.bindings[name] = c
	}
}
