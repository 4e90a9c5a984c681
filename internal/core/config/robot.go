package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

type Joint struct {
	Name           string  `json:"name" yaml:"name"`
	Parent         string  `json:"parent" yaml:"parent"`
	Child          string  `json:"child" yaml:"child"`
	AnchorParent   Point   `json:"anchor_parent" yaml:"anchor_parent"`
	AnchorChild    Point   `json:"anchor_child" yaml:"anchor_child"`
	TargetDistance float64 `json:"target_distance" yaml:"target_distance"`
	Compliance     float64 `json:"compliance" yaml:"compliance"`
}

// Actuator names a wheel motor. Params override the preset (or the stock
// defaults) field by field.
type Actuator struct {
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	Body      string         `json:"body" yaml:"body"`
	MountPose geom.Pose      `json:"mount_pose" yaml:"mount_pose"`
	Preset    string         `json:"preset,omitempty" yaml:"preset,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

func (a Actuator) Resolve() (actuator.Kind, actuator.Params, error) {
	kind, err := actuator.ParseKind(a.Type)
	if err != nil {
		return 0, actuator.Params{}, err
	}
	params := actuator.DefaultParams()
	if a.Preset != "" {
		p, ok := actuator.Preset(a.Preset)
		if !ok {
			return 0, actuator.Params{}, fmt.Errorf("unknown actuator preset %q", a.Preset)
		}
		params = p
	}
	if err := overlay(&params, a.Params); err != nil {
		return 0, actuator.Params{}, fmt.Errorf("actuator %q params: %w", a.Name, err)
	}
	if err := params.Validate(); err != nil {
		return 0, actuator.Params{}, fmt.Errorf("actuator %q: %w", a.Name, err)
	}
	return kind, params, nil
}

type Sensor struct {
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	Body      string         `json:"body" yaml:"body"`
	MountPose geom.Pose      `json:"mount_pose" yaml:"mount_pose"`
	Preset    string         `json:"preset,omitempty" yaml:"preset,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

func (s Sensor) Resolve() (sensor.Kind, sensor.Params, error) {
	var (
		kind   sensor.Kind
		params sensor.Params
		err    error
	)
	if s.Preset != "" {
		var ok bool
		kind, params, ok = sensor.Preset(s.Preset)
		if !ok {
			return 0, sensor.Params{}, fmt.Errorf("unknown sensor preset %q", s.Preset)
		}
		if s.Type != "" {
			if kind, err = sensor.ParseKind(s.Type); err != nil {
				return 0, sensor.Params{}, err
			}
		}
	} else {
		if kind, err = sensor.ParseKind(s.Type); err != nil {
			return 0, sensor.Params{}, err
		}
		params = sensor.DefaultParams(kind)
	}
	if err := overlay(&params, s.Params); err != nil {
		return 0, sensor.Params{}, fmt.Errorf("sensor %q params: %w", s.Name, err)
	}
	if err := params.Validate(kind); err != nil {
		return 0, sensor.Params{}, fmt.Errorf("sensor %q: %w", s.Name, err)
	}
	return kind, params, nil
}

// overlay decodes a loose parameter map on top of an already populated struct,
// leaving fields that the map does not mention untouched.
func overlay(dst any, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, dst)
}

type Robot struct {
	Name       string     `json:"name" yaml:"name"`
	SpawnPose  geom.Pose  `json:"spawn_pose" yaml:"spawn_pose"`
	Bodies     []Body     `json:"bodies" yaml:"bodies"`
	Joints     []Joint    `json:"joints,omitempty" yaml:"joints,omitempty"`
	Actuators  []Actuator `json:"actuators,omitempty" yaml:"actuators,omitempty"`
	Sensors    []Sensor   `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	Controller string     `json:"controller,omitempty" yaml:"controller,omitempty"`
}

func (r *Robot) ApplyDefaults() {
	if r.Name == "" {
		r.Name = "robot"
	}
}

func (r *Robot) Validate() error {
	var problems []error
	if !r.SpawnPose.IsFinite() {
		problems = append(problems, fmt.Errorf("spawn pose must be finite"))
	}
	if len(r.Bodies) == 0 {
		problems = append(problems, fmt.Errorf("robot needs at least one body"))
	}

	bodies := make(map[string]struct{}, len(r.Bodies))
	for _, b := range r.Bodies {
		if err := b.validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		if _, dup := bodies[b.Name]; dup {
			problems = append(problems, fmt.Errorf("duplicate body %q", b.Name))
		}
		bodies[b.Name] = struct{}{}
	}

	for _, j := range r.Joints {
		for _, ref := range []string{j.Parent, j.Child} {
			if _, ok := bodies[ref]; !ok {
				problems = append(problems, fmt.Errorf("joint %q references unknown body %q", j.Name, ref))
			}
		}
		if j.Parent == j.Child {
			problems = append(problems, fmt.Errorf("joint %q connects a body to itself", j.Name))
		}
		if j.TargetDistance < 0 || j.Compliance < 0 {
			problems = append(problems, fmt.Errorf("joint %q: target distance and compliance must not be negative", j.Name))
		}
	}

	devices := make(map[string]struct{})
	device := func(kind, name, ref string) {
		if name == "" {
			problems = append(problems, fmt.Errorf("%s name is required", kind))
			return
		}
		if _, dup := devices[name]; dup {
			problems = append(problems, fmt.Errorf("duplicate device name %q", name))
		}
		devices[name] = struct{}{}
		if _, ok := bodies[ref]; !ok {
			problems = append(problems, fmt.Errorf("%s %q references unknown body %q", kind, name, ref))
		}
	}
	for _, a := range r.Actuators {
		device("actuator", a.Name, a.Body)
		if _, _, err := a.Resolve(); err != nil {
			problems = append(problems, err)
		}
	}
	for _, s := range r.Sensors {
		device("sensor", s.Name, s.Body)
		if _, _, err := s.Resolve(); err != nil {
			problems = append(problems, err)
		}
	}
	return invalid("robot "+r.Name, problems)
}
