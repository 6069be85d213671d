package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

func newTestSim(t *testing.T, mode Mode) *Simulator {
	t.Helper()
	sim, err := NewSimulator(SimConfig{
		Params:     CF2X(),
		Mode:       mode,
		Freq:       100,
		InitialPos: r3.Vec{Z: 0.1},
	})
	require.NoError(t, err)
	return sim
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("pyb")
	assert.Error(t, err)
}

func TestNewSimulatorValidates(t *testing.T) {
	_, err := NewSimulator(SimConfig{Params: CF2X(), Freq: 0})
	assert.Error(t, err)

	_, err = NewSimulator(SimConfig{Freq: 100})
	assert.Error(t, err)
}

func TestSimulatorReset(t *testing.T) {
	sim := newTestSim(t, ModeDyn)
	st, err := sim.Reset()
	require.NoError(t, err)

	assert.Equal(t, 0.1, st.Pos.Z)
	assert.Equal(t, dynamo.IdentityQuat(), st.Quat)
	assert.Equal(t, dynamo.ActuatorCommand{}, st.RPM)
}

func TestSimulatorStepBeforeReset(t *testing.T) {
	sim := newTestSim(t, ModeDyn)
	_, err := sim.Step(dynamo.ActuatorCommand{})
	assert.True(t, errors.Is(err, dynamo.ErrState))
}

func TestSimulatorEulerKeepsPositionOnFirstStep(t *testing.T) {
	sim := newTestSim(t, ModeDyn)
	_, err := sim.Reset()
	require.NoError(t, err)

	st, err := sim.Step(dynamo.ActuatorCommand{})
	require.NoError(t, err)
	assert.Equal(t, 0.1, st.Pos.Z)
	assert.InDelta(t, -0.098, st.Vel.Z, 1e-12)
}

func TestSimulatorHoverHolds(t *testing.T) {
	for _, mode := range []Mode{ModeDyn, ModeRK4} {
		t.Run(string(mode), func(t *testing.T) {
			sim := newTestSim(t, mode)
			_, err := sim.Reset()
			require.NoError(t, err)

			h := sim.Dynamics().HoverRPM()
			var st dynamo.VehicleState
			for i := 0; i < 100; i++ {
				st, err = sim.Step(dynamo.ActuatorCommand{h, h, h, h})
				require.NoError(t, err)
			}
			assert.InDelta(t, 0.1, st.Pos.Z, 1e-6)
			assert.Equal(t, dynamo.ActuatorCommand{h, h, h, h}, st.RPM)
		})
	}
}

func TestSimulatorClampsCommand(t *testing.T) {
	sim := newTestSim(t, ModeRK4)
	_, err := sim.Reset()
	require.NoError(t, err)

	st, err := sim.Step(dynamo.ActuatorCommand{-5, 1e9, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.RPM[0])
	assert.Equal(t, sim.Dynamics().MaxRPM, st.RPM[1])
}

func TestSimulatorGroundContact(t *testing.T) {
	sim := newTestSim(t, ModeRK4)
	_, err := sim.Reset()
	require.NoError(t, err)

	var st dynamo.VehicleState
	for i := 0; i < 50; i++ {
		st, err = sim.Step(dynamo.ActuatorCommand{})
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, st.Pos.Z)
	assert.GreaterOrEqual(t, st.Vel.Z, 0.0)
}

func TestSimulatorNoiseIsSeeded(t *testing.T) {
	run := func(seed int64) []dynamo.VehicleState {
		sim, err := NewSimulator(SimConfig{
			Params: CF2X(), Freq: 100, Seed: seed,
			InitialPos: r3.Vec{Z: 1},
			Noise:      Noise{Pos: 0.01, Vel: 0.01, RPY: 0.001},
		})
		require.NoError(t, err)
		_, err = sim.Reset()
		require.NoError(t, err)

		h := sim.Dynamics().HoverRPM()
		out := make([]dynamo.VehicleState, 0, 20)
		for i := 0; i < 20; i++ {
			st, err := sim.Step(dynamo.ActuatorCommand{h, h, h, h})
			require.NoError(t, err)
			out = append(out, st)
		}
		return out
	}

	a, b, c := run(7), run(7), run(8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSimulatorClose(t *testing.T) {
	sim := newTestSim(t, ModeDyn)
	_, err := sim.Reset()
	require.NoError(t, err)
	require.NoError(t, sim.Close())

	_, err = sim.Step(dynamo.ActuatorCommand{})
	assert.ErrorIs(t, err, dynamo.ErrState)
}

func TestQuatRoundTrip(t *testing.T) {
	rpy := r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}
	got := dynamo.QuatFromRPY(rpy).RPY()
	assert.InDelta(t, rpy.X, got.X, 1e-12)
	assert.InDelta(t, rpy.Y, got.Y, 1e-12)
	assert.InDelta(t, rpy.Z, got.Z, 1e-12)
	assert.False(t, math.IsNaN(got.X))
}
