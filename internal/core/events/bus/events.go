package bus

import "time"

// Event types published by the simulator.
const (
	TypeLoaded          = "sim.loaded"
	TypeStep            = "sim.step"
	TypeNumericalFault  = "sim.fault.numerical"
	TypeControllerFault = "sim.fault.controller"
	TypeWarning         = "sim.warning"
	TypeReset           = "sim.reset"
	TypeSnapshotApplied = "sim.snapshot.applied"
)

type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
	meta    map[string]any
}

func (e simpleEvent) Type() string             { return e.typeStr }
func (e simpleEvent) Source() string           { return e.source }
func (e simpleEvent) Timestamp() time.Time     { return e.ts }
func (e simpleEvent) Data() any                { return e.data }
func (e simpleEvent) Metadata() map[string]any { return e.meta }

func NewEvent(typ, src string, data any, metadata map[string]any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data, meta: metadata}
}
