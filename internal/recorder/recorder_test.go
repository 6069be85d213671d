package recorder

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

func sampleState(z float64) dynamo.VehicleState {
	return dynamo.VehicleState{
		Pos:  r3.Vec{Z: z},
		Quat: dynamo.IdentityQuat(),
		RPM:  dynamo.ActuatorCommand{1, 2, 3, 4},
	}
}

func TestLogAndExport(t *testing.T) {
	r := NewComparison()
	ctrl := dynamo.NewControlVector(dynamo.ControlTarget{Pos: r3.Vec{Z: 1}})

	require.NoError(t, r.Log(dynamo.TrackReference, 0.01, sampleState(0.1), ctrl))
	require.NoError(t, r.Log(dynamo.TrackLive, 0, sampleState(0.2), ctrl))
	require.NoError(t, r.Log(dynamo.TrackLive, 0.01, sampleState(0.3), ctrl))

	assert.Equal(t, 1, r.Len(dynamo.TrackReference))
	assert.Equal(t, 2, r.Len(dynamo.TrackLive))

	snap := r.Export()
	assert.Equal(t, []dynamo.Track{dynamo.TrackReference, dynamo.TrackLive}, snap.Tracks())

	want := []Record{
		{Time: 0, State: sampleState(0.2), Control: ctrl},
		{Time: 0.01, State: sampleState(0.3), Control: ctrl},
	}
	if diff := cmp.Diff(want, snap[dynamo.TrackLive]); diff != "" {
		t.Errorf("live track mismatch (-want +got):\n%s", diff)
	}
}

func TestExportIsACopy(t *testing.T) {
	r := NewComparison()
	require.NoError(t, r.Log(dynamo.TrackLive, 0, sampleState(0.2), dynamo.ControlVector{}))

	snap := r.Export()
	snap[dynamo.TrackLive][0].State.Pos.Z = 99
	require.NoError(t, r.Log(dynamo.TrackLive, 0.01, sampleState(0.3), dynamo.ControlVector{}))

	again := r.Export()
	assert.Equal(t, 0.2, again[dynamo.TrackLive][0].State.Pos.Z)
	assert.Len(t, snap[dynamo.TrackLive], 1)
}

func TestLogVectorSchema(t *testing.T) {
	tests := []struct {
		name    string
		state   int
		control int
		wantErr bool
	}{
		{"exact widths", dynamo.StateWidth, dynamo.ControlWidth, false},
		{"short state", 19, dynamo.ControlWidth, true},
		{"long state", 21, dynamo.ControlWidth, true},
		{"short control", dynamo.StateWidth, 6, true},
		{"long control", dynamo.StateWidth, 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewComparison()
			err := r.LogVector(dynamo.TrackLive, 0, make([]float64, tt.state), make([]float64, tt.control))
			if tt.wantErr {
				assert.True(t, errors.Is(err, dynamo.ErrSchema), "got %v", err)
				assert.Zero(t, r.Len(dynamo.TrackLive))
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, r.Len(dynamo.TrackLive))
			}
		})
	}
}

func TestLogVectorLayout(t *testing.T) {
	r := NewComparison()
	state := make([]float64, dynamo.StateWidth)
	for i := range state {
		state[i] = float64(i)
	}
	control := make([]float64, dynamo.ControlWidth)
	control[2] = 1

	require.NoError(t, r.LogVector(dynamo.TrackReference, 0.5, state, control))
	rec := r.Export()[dynamo.TrackReference][0]

	got := rec.State.Vector()
	assert.Equal(t, state, got[:])
	assert.Equal(t, 1.0, rec.Control[2])
}

func TestUnknownTrack(t *testing.T) {
	r := NewComparison()
	err := r.Log(dynamo.Track(2), 0, sampleState(0), dynamo.ControlVector{})
	assert.True(t, errors.Is(err, dynamo.ErrSchema))
}

func TestFinalize(t *testing.T) {
	r := NewComparison()
	require.NoError(t, r.Log(dynamo.TrackLive, 0, sampleState(0.1), dynamo.ControlVector{}))

	r.Finalize()
	r.Finalize()
	assert.True(t, r.Closed())

	err := r.Log(dynamo.TrackLive, 0.01, sampleState(0.1), dynamo.ControlVector{})
	assert.True(t, errors.Is(err, dynamo.ErrClosed))

	err = r.LogVector(dynamo.TrackLive, 0.01, make([]float64, dynamo.StateWidth), make([]float64, dynamo.ControlWidth))
	assert.True(t, errors.Is(err, dynamo.ErrClosed))

	err = r.LogVector(dynamo.TrackLive, 0.01, make([]float64, 3), make([]float64, 3))
	assert.True(t, errors.Is(err, dynamo.ErrClosed))

	assert.Equal(t, 1, r.Len(dynamo.TrackLive))
	assert.Len(t, r.Export()[dynamo.TrackLive], 1)
}

func TestConcurrentLog(t *testing.T) {
	r := NewComparison()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = r.Log(dynamo.TrackLive, float64(i), sampleState(0), dynamo.ControlVector{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, r.Len(dynamo.TrackLive))
}
