package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/robosim/internal/core/control"
	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/trace"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ScenarioPath = filepath.Join("testdata", "line_loop.yaml")
	cfg.Steps = 120
	cfg.TopDown = true
	return cfg
}

func newApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(cfg, log.NewNop(), bus.New(), control.DefaultRegistry())
	require.NoError(t, err)
	return a
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg.ScenarioPath = "x.yaml"
	require.NoError(t, cfg.Validate())

	cfg.Steps = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Realtime = true
	require.NoError(t, cfg.Validate())

	cfg.Runs = 3
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestNewBindsScenarioController(t *testing.T) {
	a := newApp(t, testConfig(t))

	s := a.Simulator()
	assert.True(t, s.Loaded())
	assert.Equal(t, "oval", s.World().Name)
	_, ok := s.Controller().(*control.LineFollower)
	assert.True(t, ok)
}

func TestNewLoadsEveryRobot(t *testing.T) {
	cfg := testConfig(t)
	cfg.ScenarioPath = filepath.Join("testdata", "team.yaml")
	a := newApp(t, cfg)

	s := a.Simulator()
	assert.Equal(t, []string{"leader", "robot_2"}, s.Robots())
	leader, _ := s.RobotController("leader")
	_, ok := leader.(*control.LineFollower)
	assert.True(t, ok)
	second, _ := s.RobotController("robot_2")
	assert.NotNil(t, second)

	stats, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.ControllerFaults)
}

func TestNewRejectsUnknownController(t *testing.T) {
	reg := control.NewRegistry()
	_, err := New(testConfig(t), log.NewNop(), bus.New(), reg)
	assert.ErrorIs(t, err, control.ErrUnknownController)
}

func TestRunWritesTrace(t *testing.T) {
	cfg := testConfig(t)
	cfg.TracePath = filepath.Join(t.TempDir(), "run.json.zst")
	a := newApp(t, cfg)

	stats, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(120), stats.Steps)
	assert.Equal(t, 120, stats.TraceRecords)
	assert.Zero(t, stats.NumericalFaults)
	assert.Zero(t, stats.ControllerFaults)
	assert.Equal(t, a.Simulator().Digest(), stats.Digest)

	tl, err := trace.Load(cfg.TracePath)
	require.NoError(t, err)
	assert.Equal(t, "oval", tl.Scenario)
	assert.Len(t, tl.Records, 120)
}

func TestRunIsDeterministic(t *testing.T) {
	a := newApp(t, testConfig(t))
	b := newApp(t, testConfig(t))

	sa, err := a.Run(context.Background())
	require.NoError(t, err)
	sb, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sa.Digest, sb.Digest)
}

func TestRealtimeStopsAtStepCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime = true
	cfg.Steps = 5
	a := newApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := a.Run(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Steps, uint64(5))
}

func TestRunBatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runs = 3
	cfg.Workers = 2
	cfg.Steps = 60
	a := newApp(t, cfg)

	report, err := a.RunBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "oval/seed-7", report.Results[0].Job)
	assert.Equal(t, "oval/seed-9", report.Results[2].Job)
	assert.Equal(t, 3, report.Summary.Runs)
}

func TestProvideLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = log.LevelWarn
	l, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.Equal(t, log.LevelWarn, l.GetLevel())
}
