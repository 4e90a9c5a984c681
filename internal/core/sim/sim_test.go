package sim

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/config"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/physics/geom"
	"github.com/zeusync/robosim/internal/core/trace"
)

func flatWorld() config.World {
	return config.World{Name: "flat", Seed: 3, Timestep: 0.01}
}

func diffBot() config.Robot {
	return config.Robot{
		Name: "bot",
		Bodies: []config.Body{
			{Name: "chassis", Shape: config.Shape{Type: "box", Width: 0.2, Height: 0.15}, Mass: 0.5},
		},
		Actuators: []config.Actuator{
			{Name: "left", Type: "wheel", Body: "chassis", MountPose: geom.NewPose(0, 0.09, 0)},
			{Name: "right", Type: "wheel", Body: "chassis", MountPose: geom.NewPose(0, -0.09, 0)},
		},
		Sensors: []config.Sensor{
			{Name: "imu", Type: "imu", Body: "chassis"},
			{Name: "range", Preset: "range_short", Body: "chassis", MountPose: geom.NewPose(0.1, 0, 0)},
		},
	}
}

func loaded(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	s := New(opts...)
	require.NoError(t, s.Load(flatWorld(), diffBot(), LoadOptions{TopDown: true}))
	return s
}

func drive(left, right float64) Controller {
	return ControllerFunc(func(Readings, float64) (Commands, error) {
		return Commands{"left": left, "right": right}, nil
	})
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	s := New()
	robot := diffBot()
	robot.Bodies = nil

	err := s.Load(flatWorld(), robot, LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.False(t, s.Loaded())

	robot = diffBot()
	robot.Bodies[0].Static = true
	err = s.Load(flatWorld(), robot, LoadOptions{})
	assert.ErrorIs(t, err, ErrConfig, "wheels on a static body")
}

func TestLoadFailureKeepsPreviousScenario(t *testing.T) {
	s := loaded(t)
	before := s.Digest()

	world := flatWorld()
	world.Timestep = -1
	require.Error(t, s.Load(world, diffBot(), LoadOptions{}))
	assert.True(t, s.Loaded())
	assert.Equal(t, before, s.Digest())
}

func TestLoadInfersWheelCount(t *testing.T) {
	s := loaded(t)
	for _, name := range []string{"left", "right"} {
		w, ok := s.Wheel(name)
		require.True(t, ok)
		assert.Equal(t, 2, w.Params.WheelCount)
	}

	robot := diffBot()
	robot.Actuators[0].Params = map[string]any{"wheel_count": 4}
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	w, _ := s.Wheel("left")
	assert.Equal(t, 4, w.Params.WheelCount)
}

func TestStepWithoutLoad(t *testing.T) {
	s := New()
	r := s.Step(0.01)
	assert.ErrorIs(t, r.Err, ErrNotLoaded)
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.ResetToSpawn(), ErrNotLoaded)
}

func TestStepFallsBackToWorldTimestep(t *testing.T) {
	s := loaded(t)
	r := s.Step(0)
	assert.Equal(t, 0.01, r.DT)
	r = s.Step(math.NaN())
	assert.Equal(t, 0.01, r.DT)
	assert.Equal(t, uint64(2), s.StepIndex())
	assert.InDelta(t, 0.02, s.Time(), 1e-12)
}

func TestStraightLineDrive(t *testing.T) {
	s := loaded(t, WithController(drive(1, 1)))
	for i := 0; i < 100; i++ {
		r := s.Step(0.01)
		require.Empty(t, r.Faults)
	}

	chassis, ok := s.Body("chassis")
	require.True(t, ok)
	assert.Greater(t, chassis.Pose.X, 0.2)
	assert.Less(t, math.Abs(chassis.Pose.Y), 0.01)
	assert.Less(t, math.Abs(chassis.Pose.Theta), 0.05)
	assert.Greater(t, chassis.LinearVelocity[0], 0.5)

	st := s.State()
	assert.Equal(t, 1.0, st.Commands["left"])
	assert.Contains(t, st.Readings, "imu")
	assert.False(t, st.Faulted)
}

func TestSymmetricDriveHoldsHeading(t *testing.T) {
	s := loaded(t, WithController(drive(0.8, 0.8)))
	chassis, _ := s.Body("chassis")
	for i := 0; i < 4000; i++ {
		require.Empty(t, s.Step(0.01).Faults)
		require.Less(t, math.Abs(chassis.AngularVelocity), 1e-9, "step %d", i)
	}
	assert.Less(t, math.Abs(chassis.Pose.Theta), 1e-9)
	assert.Less(t, math.Abs(chassis.Pose.Y), 1e-9)
	assert.Greater(t, chassis.Pose.X, 20.0)
}

func TestOpposedWheelsSpinInPlace(t *testing.T) {
	s := loaded(t, WithController(drive(1, -1)))
	for i := 0; i < 50; i++ {
		s.Step(0.01)
	}
	chassis, _ := s.Body("chassis")
	assert.Less(t, chassis.AngularVelocity, -0.5, "left forward, right back turns clockwise")
	assert.Less(t, chassis.Position().Len(), 0.02)
}

func TestTopDownZeroesGravity(t *testing.T) {
	world := flatWorld()
	world.Gravity = config.Point{0, -9.81}
	robot := config.Robot{Bodies: []config.Body{{Name: "ball", Shape: config.Shape{Type: "circle", Radius: 0.05}, Mass: 1}}}

	s := New()
	require.NoError(t, s.Load(world, robot, LoadOptions{TopDown: true}))
	s.Step(0.01)
	ball, _ := s.Body("ball")
	assert.Zero(t, ball.LinearVelocity[1])

	require.NoError(t, s.Load(world, robot, LoadOptions{}))
	s.Step(0.01)
	ball, _ = s.Body("ball")
	assert.Less(t, ball.LinearVelocity[1], 0.0)
}

func TestIgnoreTerrainKeepsBounds(t *testing.T) {
	world := flatWorld()
	world.Terrain = []config.Body{{Name: "crate", Static: true, Shape: config.Shape{Type: "box", Width: 0.2, Height: 0.2}, Pose: geom.NewPose(1, 0, 0)}}
	world.Bounds = &config.Bounds{MinX: -2, MinY: -2, MaxX: 2, MaxY: 2}

	s := New()
	require.NoError(t, s.Load(world, diffBot(), LoadOptions{IgnoreTerrain: true}))
	_, ok := s.Body("crate")
	assert.False(t, ok)
	_, ok = s.Body("bounds_north")
	assert.True(t, ok)
}

func TestSpawnOverlapWarns(t *testing.T) {
	world := flatWorld()
	world.Terrain = []config.Body{{Name: "crate", Static: true, Shape: config.Shape{Type: "box", Width: 0.2, Height: 0.2}}}

	s := New()
	require.NoError(t, s.Load(world, diffBot(), LoadOptions{}))
	require.NotEmpty(t, s.State().Warnings)
	assert.Contains(t, s.State().Warnings[0], "chassis")
}

func TestJointConnectedBodiesDoNotCollide(t *testing.T) {
	box := config.Shape{Type: "box", Width: 0.1, Height: 0.1}
	robot := config.Robot{
		Name: "pair",
		Bodies: []config.Body{
			{Name: "a", Shape: box, Mass: 1},
			{Name: "b", Shape: box, Mass: 1, Pose: geom.NewPose(0.05, 0, 0)},
		},
	}

	s := New()
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	assert.Equal(t, 1, s.Step(0.01).Contacts)

	robot.Joints = []config.Joint{{Name: "hinge", Parent: "a", Child: "b", TargetDistance: 0.05}}
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	assert.Zero(t, s.Step(0.01).Contacts)
}

func TestJointHoldsDistance(t *testing.T) {
	circle := config.Shape{Type: "circle", Radius: 0.02}
	robot := config.Robot{
		Name: "chain",
		Bodies: []config.Body{
			{Name: "a", Shape: circle, Mass: 1},
			{Name: "b", Shape: circle, Mass: 1, Pose: geom.NewPose(0.3, 0, 0)},
		},
		Joints: []config.Joint{{Name: "link", Parent: "a", Child: "b", TargetDistance: 0.2}},
	}
	s := New()
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	for i := 0; i < 200; i++ {
		s.Step(0.01)
	}
	a, _ := s.Body("a")
	b, _ := s.Body("b")
	assert.InDelta(t, 0.2, geom.Distance(a.Position(), b.Position()), 1e-3)
}

func TestStepTranslationClamp(t *testing.T) {
	robot := config.Robot{Bodies: []config.Body{{Name: "puck", Shape: config.Shape{Type: "circle", Radius: 0.05}, Mass: 1}}}
	s := New()
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	puck, _ := s.Body("puck")
	puck.LinearVelocity = geom.V(15, 0)

	r := s.Step(0.1)
	assert.InDelta(t, 0.5, puck.Pose.X, 1e-9)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "puck")
}

func TestRepositionAndResetToSpawn(t *testing.T) {
	robot := diffBot()
	robot.SpawnPose = geom.NewPose(1, 1, math.Pi/2)
	s := New(WithController(drive(1, 1)))
	require.NoError(t, s.Load(flatWorld(), robot, LoadOptions{}))
	for i := 0; i < 20; i++ {
		s.Step(0.01)
	}

	require.NoError(t, s.ResetToSpawn())
	chassis, _ := s.Body("chassis")
	assert.Equal(t, robot.SpawnPose, chassis.Pose)
	assert.Zero(t, chassis.LinearVelocity.Len())
	assert.Zero(t, chassis.AngularVelocity)

	target := geom.NewPose(-1, 0, 0)
	require.NoError(t, s.Reposition(target, true))
	assert.Equal(t, target, s.RobotPose())
	assert.Equal(t, target, s.Robot().SpawnPose)

	assert.ErrorIs(t, s.Reposition(geom.NewPose(math.NaN(), 0, 0), false), ErrConfig)
}

func TestTraceLogging(t *testing.T) {
	s := loaded(t, WithController(drive(0.5, 0.5)))
	_, err := s.TraceLog()
	assert.ErrorIs(t, err, ErrNoTrace)

	s.EnableTraceLogging(true)
	var streamed int
	require.NoError(t, s.SetTraceSink(func(trace.Record) { streamed++ }))
	for i := 0; i < 10; i++ {
		s.Step(0.01)
	}
	s.EnableTraceLogging(false)
	s.Step(0.01)

	path := filepath.Join(t.TempDir(), "run.json.zst")
	require.NoError(t, s.SaveTraceLog(path))
	got, err := trace.Load(path)
	require.NoError(t, err)

	require.Len(t, got.Records, 10)
	assert.Equal(t, 10, streamed)
	assert.Equal(t, int64(3), got.Seed)
	last := got.Records[9]
	assert.Equal(t, uint64(9), last.Step)
	assert.Equal(t, 0.5, last.Motors["left"].Command)
	assert.InDelta(t, last.Motors["left"].AppliedLongitudinalImpulse/0.01, last.Motors["left"].LongitudinalForce, 1e-9)
	assert.Contains(t, last.Bodies, "chassis")
	assert.Contains(t, last.Sensors, "range")
}

func TestEventsArePublished(t *testing.T) {
	b := bus.New()
	var steps, faults int
	_, err := b.Subscribe(bus.TypeStep, func(e bus.Event) error {
		_, ok := e.Data().(StepReport)
		assert.True(t, ok)
		steps++
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe(bus.TypeControllerFault, func(e bus.Event) error {
		faults++
		return errors.New("handler errors do not break stepping")
	})
	require.NoError(t, err)

	failing := ControllerFunc(func(Readings, float64) (Commands, error) { return nil, errors.New("boom") })
	s := loaded(t, WithBus(b), WithController(failing))
	for i := 0; i < 3; i++ {
		s.Step(0.01)
	}
	assert.Equal(t, 3, steps)
	assert.Equal(t, 1, faults)
}
