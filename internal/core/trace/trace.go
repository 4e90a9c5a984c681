// Package trace records per-step simulator diagnostics and persists them as
// plain, snappy-framed or zstd-compressed JSON.
package trace

import (
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/robosim/internal/core/devices/actuator"
	"github.com/zeusync/robosim/internal/core/devices/sensor"
	"github.com/zeusync/robosim/internal/core/physics/geom"
)

// Motor is one wheel's traction report plus the equivalent forces for the step.
type Motor struct {
	actuator.Report
	LongitudinalForce float64 `json:"applied_longitudinal_force"`
	LateralForce      float64 `json:"applied_lateral_force"`
}

type Body struct {
	Pose            geom.Pose `json:"pose"`
	LinearVelocity  geom.Vec2 `json:"lin_vel"`
	AngularVelocity float64   `json:"ang_vel"`
}

// Robot is the per-robot part of a record. Commands use the robot's own wheel names.
type Robot struct {
	Pose            geom.Pose          `json:"pose"`
	Commands        map[string]float64 `json:"commands"`
	ControllerFault string             `json:"controller_fault,omitempty"`
}

// Record is everything captured for a single step.
type Record struct {
	Step            uint64                    `json:"step"`
	Time            float64                   `json:"time"`
	DT              float64                   `json:"dt"`
	RobotPose       geom.Pose                 `json:"robot_pose"`
	Motors          map[string]Motor          `json:"motors"`
	Bodies          map[string]Body           `json:"bodies"`
	Sensors         map[string]sensor.Reading `json:"sensors,omitempty"`
	Robots          map[string]Robot          `json:"robots,omitempty"`
	ControllerFault string                    `json:"controller_fault,omitempty"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

// Log is a persisted run.
type Log struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario,omitempty"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
	Records   []Record  `json:"records"`
}

// Recorder accumulates records in memory and optionally streams them to a sink.
type Recorder struct {
	log  Log
	sink func(Record)
}

func NewRecorder(scenario string, seed int64) *Recorder {
	return &Recorder{log: Log{
		RunID:     uuid.NewString(),
		Scenario:  scenario,
		Seed:      seed,
		CreatedAt: time.Now().UTC(),
	}}
}

// SetSink installs a callback invoked after every Append. Nil removes it.
func (r *Recorder) SetSink(fn func(Record)) { r.sink = fn }

func (r *Recorder) Append(rec Record) {
	r.log.Records = append(r.log.Records, rec)
	if r.sink != nil {
		r.sink(rec)
	}
}

func (r *Recorder) Len() int { return len(r.log.Records) }

func (r *Recorder) Clear() { r.log.Records = nil }

// Log returns a copy of the recorded run; later appends do not affect it.
func (r *Recorder) Log() Log {
	out := r.log
	out.Records = append([]Record(nil), r.log.Records...)
	return out
}
