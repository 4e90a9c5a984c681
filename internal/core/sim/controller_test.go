package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script returns one scripted result per step; the last entry repeats.
type script struct {
	steps []func() (Commands, error)
	calls int
}

func (s *script) Step(Readings, float64) (Commands, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i]()
}

func ok(c Commands) func() (Commands, error) {
	return func() (Commands, error) { return c, nil }
}

func TestControllerFaultHoldsCommands(t *testing.T) {
	boom := errors.New("boom")
	tests := map[string]func() (Commands, error){
		"error":         func() (Commands, error) { return nil, boom },
		"panic":         func() (Commands, error) { panic("wheel exploded") },
		"unknown wheel": ok(Commands{"left": 0.2, "tail": 1}),
		"nan command":   ok(Commands{"left": math.NaN()}),
		"inf command":   ok(Commands{"right": math.Inf(1)}),
	}
	for name, bad := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := &script{steps: []func() (Commands, error){ok(Commands{"left": 0.4, "right": 0.4}), bad, ok(Commands{"left": -1, "right": -1})}}
			s := loaded(t, WithController(ctrl))

			assert.Nil(t, s.Step(0.01).ControllerFault)

			var r StepReport
			require.NotPanics(t, func() { r = s.Step(0.01) })
			require.NotNil(t, r.ControllerFault)
			assert.ErrorIs(t, r.ControllerFault, ErrControllerFault)
			assert.Equal(t, uint64(1), r.ControllerFault.Step)
			if name == "error" {
				assert.ErrorIs(t, r.ControllerFault, boom)
			}
			if name == "panic" {
				assert.Equal(t, "wheel exploded", r.ControllerFault.Panic)
			}

			st := s.State()
			assert.True(t, st.Faulted)
			assert.NotEmpty(t, st.ControllerFault)
			assert.Equal(t, Commands{"left": 0.4, "right": 0.4}, st.Commands)

			// Faulted controllers are not called again until cleared.
			s.Step(0.01)
			assert.Equal(t, 2, ctrl.calls)
			assert.Nil(t, s.Step(0.01).ControllerFault)

			s.ClearControllerFault()
			assert.Nil(t, s.ControllerFault())
			s.Step(0.01)
			assert.Equal(t, 3, ctrl.calls)
			assert.Equal(t, Commands{"left": -1.0, "right": -1.0}, s.State().Commands)
		})
	}
}

func TestPartialCommandsKeepOtherWheels(t *testing.T) {
	ctrl := &script{steps: []func() (Commands, error){ok(Commands{"left": 0.5, "right": 0.5}), ok(Commands{"right": 2}), ok(nil)}}
	s := loaded(t, WithController(ctrl))
	s.Step(0.01)
	s.Step(0.01)
	assert.Equal(t, Commands{"left": 0.5, "right": 1}, s.State().Commands, "out of range commands are clamped")
	s.Step(0.01)
	assert.Equal(t, Commands{"left": 0.5, "right": 1}, s.State().Commands)
}

func TestControllerReceivesCopies(t *testing.T) {
	var seen Readings
	ctrl := ControllerFunc(func(r Readings, _ float64) (Commands, error) {
		seen = r
		r["imu"] = r["imu"].Clone()
		delete(r, "range")
		return nil, nil
	})
	s := loaded(t, WithController(ctrl))
	s.Step(0.01)
	require.NotNil(t, seen)
	assert.Contains(t, s.State().Readings, "range")
}

func TestRebind(t *testing.T) {
	first := &steering{}
	s := New(WithController(first))
	require.NoError(t, s.Load(crateWorld(), diffBot(), LoadOptions{TopDown: true}))
	run(s, 5)
	require.Equal(t, 5, first.calls)

	kept := &steering{calls: 99}
	require.NoError(t, s.Rebind(kept, RebindOptions{KeepState: true}))
	assert.Equal(t, 5, kept.calls)
	assert.Same(t, kept, s.Controller())

	fresh := &steering{calls: 42}
	require.NoError(t, s.Rebind(fresh, RebindOptions{}))
	assert.Zero(t, fresh.calls)

	s.robots[0].fault = &ControllerFault{Step: 1, Err: errors.New("old")}
	require.NoError(t, s.Rebind(drive(0, 0), RebindOptions{KeepState: true}))
	assert.Nil(t, s.ControllerFault())

	require.NoError(t, s.Rebind(nil, RebindOptions{}))
	assert.Nil(t, s.Controller())
	s.Step(0.01)
}

func TestLoadResetsStatefulController(t *testing.T) {
	ctrl := &steering{calls: 7}
	s := New(WithController(ctrl))
	require.NoError(t, s.Load(flatWorld(), diffBot(), LoadOptions{}))
	assert.Zero(t, ctrl.calls)
}
