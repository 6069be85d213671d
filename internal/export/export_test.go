package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
)

func climbSnapshot(n int) recorder.Snapshot {
	snap := recorder.Snapshot{}
	for i := 0; i < n; i++ {
		t := float64(i) / 100
		ref := dynamo.VehicleState{Pos: r3.Vec{Z: 0.1 + 0.9*t}}
		live := dynamo.VehicleState{Pos: r3.Vec{Z: 0.1 + 0.8*t}, Quat: dynamo.IdentityQuat(), RPM: dynamo.ActuatorCommand{14000, 14000, 14000, 14000}}
		snap[dynamo.TrackReference] = append(snap[dynamo.TrackReference], recorder.Record{Time: t + 0.01, State: ref})
		snap[dynamo.TrackLive] = append(snap[dynamo.TrackLive], recorder.Record{Time: t, State: live})
	}
	return snap
}

func TestPlotRun(t *testing.T) {
	for _, format := range []string{"png", "svg"} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "plots")
			paths, err := PlotRun(dir, climbSnapshot(50), format)
			require.NoError(t, err)
			require.Len(t, paths, len(Groups))

			for _, p := range paths {
				info, err := os.Stat(p)
				require.NoError(t, err)
				assert.Positive(t, info.Size())
				assert.Equal(t, "."+format, filepath.Ext(p))
			}
		})
	}
}

func TestPlotRunRejectsFormat(t *testing.T) {
	_, err := PlotRun(t.TempDir(), climbSnapshot(2), "gif")
	assert.Error(t, err)
}

func TestGroupsMatchStateLayout(t *testing.T) {
	for _, g := range Groups {
		assert.Len(t, g.Labels, len(g.Columns), g.Name)
		for _, c := range g.Columns {
			assert.Less(t, c, dynamo.StateWidth)
		}
	}
}

func TestFrameRecorder(t *testing.T) {
	fr, err := NewFrameRecorder(filepath.Join(t.TempDir(), "frames"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := dynamo.StepRecord{
			Step:      i,
			Time:      float64(i),
			Live:      dynamo.VehicleState{Pos: r3.Vec{X: 0.1 * float64(i), Z: 0.5}},
			Reference: dynamo.VehicleState{Pos: r3.Vec{Z: 0.5}},
		}
		fr.Observe(rec)
		require.NoError(t, fr.Render(rec))
	}

	require.Len(t, fr.Frames(), 3)
	assert.Equal(t, "frame_0002.png", filepath.Base(fr.Frames()[2]))
	_, err = os.Stat(fr.Frames()[0])
	assert.NoError(t, err)
}
