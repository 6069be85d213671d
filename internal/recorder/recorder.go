// Package recorder accumulates per-track state and control histories for a
// comparison run.
package recorder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Record is one logged row.
type Record struct {
	Time    float64
	State   dynamo.VehicleState
	Control dynamo.ControlVector
}

// Snapshot is an exported copy of every track.
type Snapshot map[dynamo.Track][]Record

// Tracks lists the snapshot's tracks in ascending order.
func (s Snapshot) Tracks() []dynamo.Track {
	out := make([]dynamo.Track, 0, len(s))
	for tr := range s {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Recorder is safe for concurrent use. Writes fail once it is finalized.
type Recorder struct {
	mu        sync.Mutex
	tracks    map[dynamo.Track][]Record
	numTracks int
	closed    bool
}

// New returns a recorder for tracks 0..numTracks-1.
func New(numTracks int) *Recorder {
	r := &Recorder{tracks: make(map[dynamo.Track][]Record, numTracks), numTracks: numTracks}
	for i := 0; i < numTracks; i++ {
		r.tracks[dynamo.Track(i)] = nil
	}
	return r
}

// NewComparison returns a recorder with the reference and live tracks.
func NewComparison() *Recorder { return New(2) }

func (r *Recorder) Log(track dynamo.Track, t float64, state dynamo.VehicleState, control dynamo.ControlVector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("log %s at t=%.4f: %w", track, t, dynamo.ErrClosed)
	}
	if int(track) < 0 || int(track) >= r.numTracks {
		return dynamo.Schemaf("unknown track %d", int(track))
	}
	r.tracks[track] = append(r.tracks[track], Record{Time: t, State: state, Control: control})
	return nil
}

// LogVector logs flat state and control vectors, rejecting any width other
// than the fixed record layout.
func (r *Recorder) LogVector(track dynamo.Track, t float64, state, control []float64) error {
	if r.Closed() {
		return fmt.Errorf("log %s at t=%.4f: %w", track, t, dynamo.ErrClosed)
	}
	if len(state) != dynamo.StateWidth {
		return dynamo.Schemaf("state has %d fields, want %d", len(state), dynamo.StateWidth)
	}
	if len(control) != dynamo.ControlWidth {
		return dynamo.Schemaf("control has %d fields, want %d", len(control), dynamo.ControlWidth)
	}

	var sv [dynamo.StateWidth]float64
	var cv dynamo.ControlVector
	copy(sv[:], state)
	copy(cv[:], control)
	return r.Log(track, t, dynamo.VehicleStateFromVector(sv), cv)
}

// Finalize closes the recorder. Calling it again has no effect.
func (r *Recorder) Finalize() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recorder) Len(track dynamo.Track) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks[track])
}

// Export returns a copy of every track that later writes cannot alter.
func (r *Recorder) Export() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(Snapshot, len(r.tracks))
	for tr, recs := range r.tracks {
		out[tr] = append([]Record(nil), recs...)
	}
	return out
}
