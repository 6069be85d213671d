package trace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

func rows(n, width int, fill float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, width)
		for j := range out[i] {
			out[i][j] = fill
		}
	}
	return out
}

func encodeRaw(t *testing.T, elems ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(elems))
	return buf.Bytes()
}

func uniformTimestamps(n int, last float64) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i+1) * last / float64(n)
	}
	return ts
}

func TestExample(t *testing.T) {
	tr := Example()

	assert.Equal(t, 500, tr.SampleCount())
	assert.Equal(t, 100, tr.Rate())
	assert.Equal(t, 5, tr.Duration())
	assert.Equal(t, 500, tr.Steps())
	assert.InDelta(t, 5.0, tr.FinalTimestamp(), 1e-12)
	assert.InDelta(t, 0.1, tr.SampleAt(0).Pos.Z, 1e-12)
	assert.Equal(t, r3.Vec{Z: 1}, tr.TargetAt(0).Pos)
	assert.Equal(t, r3.Vec{Z: 1}, tr.TargetAt(499).Pos)
	assert.Greater(t, tr.SampleAt(499).Pos.Z, 0.99)
}

func TestRateDurationSteps(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		last     float64
		rate     int
		duration int
		steps    int
	}{
		{"exact", 500, 5, 100, 5, 500},
		{"fractional duration", 499, 4.99, 100, 4, 400},
		{"rate rounds down", 10, 1.9, 5, 1, 5},
		{"clamped to count", 5, 2.0, 3, 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.count
			samples := make([]dynamo.TraceSample, n)
			targets := make([]dynamo.ControlTarget, n)
			tr, err := New(uniformTimestamps(n, tt.last), samples, targets)
			require.NoError(t, err)

			assert.Equal(t, tt.rate, tr.Rate())
			assert.Equal(t, tt.duration, tr.Duration())
			assert.Equal(t, tt.steps, tr.Steps())
		})
	}
}

func TestNewRejects(t *testing.T) {
	one := make([]dynamo.TraceSample, 3)
	tgt := make([]dynamo.ControlTarget, 3)

	tests := []struct {
		name    string
		ts      []float64
		samples []dynamo.TraceSample
		targets []dynamo.ControlTarget
	}{
		{"empty", nil, nil, nil},
		{"row count mismatch", []float64{1, 2, 3}, one[:2], tgt},
		{"not increasing", []float64{1, 1, 2}, one, tgt},
		{"decreasing", []float64{1, 3, 2}, one, tgt},
		{"shorter than a second", []float64{0.1, 0.2, 0.3}, one, tgt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ts, tt.samples, tt.targets)
			assert.True(t, errors.Is(err, dynamo.ErrFormat), "got %v", err)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	want, err := Synthesize(Profile{Kind: KindSweep, Rate: 50, Duration: 2, Target: r3.Vec{Z: 1}, Radius: 0.3, Period: 2, HoverRPM: 14000})
	require.NoError(t, err)

	for _, name := range []string{"flight.msgpack", "flight.msgpack.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, Save(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmp.AllowUnexported(Trace{})); diff != "" {
				t.Errorf("trace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	ts := []float64{0.5, 1.0}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"19 sample columns", func(t *testing.T) []byte {
			return encodeRaw(t, ts, rows(2, 19, 0.1), rows(2, 6, 0), nil, nil, nil)
		}},
		{"7 target columns", func(t *testing.T) []byte {
			return encodeRaw(t, ts, rows(2, 20, 0.1), rows(2, 7, 0), nil, nil, nil)
		}},
		{"five elements", func(t *testing.T) []byte {
			return encodeRaw(t, ts, rows(2, 20, 0.1), rows(2, 6, 0), nil, nil)
		}},
		{"not an array", func(t *testing.T) []byte {
			var buf bytes.Buffer
			require.NoError(t, msgpack.NewEncoder(&buf).Encode(map[string]int{"a": 1}))
			return buf.Bytes()
		}},
		{"truncated", func(t *testing.T) []byte {
			b := encodeRaw(t, ts, rows(2, 20, 0.1), rows(2, 6, 0), nil, nil, nil)
			return b[:len(b)/2]
		}},
		{"row count mismatch", func(t *testing.T) []byte {
			return encodeRaw(t, ts, rows(3, 20, 0.1), rows(2, 6, 0), nil, nil, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data(t)))
			assert.True(t, errors.Is(err, dynamo.ErrFormat), "got %v", err)
		})
	}
}

func TestDecodeIgnoresReserved(t *testing.T) {
	data := encodeRaw(t, []float64{0.5, 1.0}, rows(2, 20, 0.1), rows(2, 6, 1), "camera", 42, []int{1, 2})
	tr, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, tr.SampleCount())
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, tr.TargetAt(1).Pos)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.msgpack"))
	assert.True(t, errors.Is(err, dynamo.ErrIO), "got %v", err)

	bad := filepath.Join(t.TempDir(), "bad.msgpack")
	require.NoError(t, os.WriteFile(bad, encodeRaw(t, []float64{1}, rows(1, 19, 0), rows(1, 6, 0), nil, nil, nil), 0644))
	_, err = Load(bad)
	assert.True(t, errors.Is(err, dynamo.ErrFormat), "got %v", err)
	assert.False(t, errors.Is(err, dynamo.ErrIO), "got %v", err)

	_, err = Load(t.TempDir())
	assert.True(t, errors.Is(err, dynamo.ErrIO), "directory: got %v", err)
	assert.False(t, errors.Is(err, dynamo.ErrFormat), "directory: got %v", err)

	corrupt := filepath.Join(t.TempDir(), "corrupt.msgpack.zst")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not zstd"), 0644))
	_, err = Load(corrupt)
	assert.True(t, errors.Is(err, dynamo.ErrIO), "corrupt stream: got %v", err)

	truncated := filepath.Join(t.TempDir(), "truncated.msgpack")
	data := encodeRaw(t, []float64{1}, rows(1, 20, 0), rows(1, 6, 0), nil, nil, nil)
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0644))
	_, err = Load(truncated)
	assert.True(t, errors.Is(err, dynamo.ErrFormat), "truncated: got %v", err)
}

func TestRebase(t *testing.T) {
	orig := Example()
	shifted := orig.Rebase(0.6)

	assert.InDelta(t, 0.5, orig.AltitudeOffset(0.6), 1e-12)
	for _, i := range []int{0, 250, 499} {
		assert.InDelta(t, orig.SampleAt(i).Pos.Z+0.5, shifted.SampleAt(i).Pos.Z, 1e-12)
		assert.InDelta(t, orig.TargetAt(i).Pos.Z+0.5, shifted.TargetAt(i).Pos.Z, 1e-12)
		assert.Equal(t, orig.TimestampAt(i), shifted.TimestampAt(i))
	}

	assert.InDelta(t, 0.1, orig.SampleAt(0).Pos.Z, 1e-12)
	assert.Equal(t, r3.Vec{Z: 1}, orig.TargetAt(0).Pos)
}

func TestSynthesize(t *testing.T) {
	_, err := Synthesize(Profile{Kind: KindHover, Rate: 0, Duration: 5})
	assert.Error(t, err)

	_, err = Synthesize(Profile{Kind: "loop", Rate: 10, Duration: 2})
	assert.Error(t, err)

	sweep, err := Synthesize(Profile{Kind: KindSweep, Rate: 20, Duration: 4, Target: r3.Vec{Z: 1}, Radius: 0.5, Period: 4})
	require.NoError(t, err)
	assert.Equal(t, 80, sweep.SampleCount())
	assert.InDelta(t, 1.0, sweep.SampleAt(0).Pos.Z, 1e-12)
	assert.InDelta(t, 0, sweep.SampleAt(0).Pos.X, 1e-12)
	assert.Greater(t, sweep.TargetAt(0).Vel.Y, 0.0)
	assert.Equal(t, sweep.SampleAt(10).Pos, sweep.TargetAt(10).Pos)
}
