// Package trace loads recorded reference flights and exposes them as a
// read-only, step-indexed sequence of samples and setpoints.
package trace

import (
	"math"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Trace is an ordered sequence of timestamped reference samples and the
// control targets that were flown at each of them. A Trace is never mutated
// after construction; Rebase returns a copy.
type Trace struct {
	timestamps []float64
	samples    []dynamo.TraceSample
	targets    []dynamo.ControlTarget
}

// New validates and wraps the given rows. The slices are copied.
func New(timestamps []float64, samples []dynamo.TraceSample, targets []dynamo.ControlTarget) (*Trace, error) {
	n := len(timestamps)
	if n == 0 {
		return nil, dynamo.Formatf("trace is empty")
	}
	if len(samples) != n || len(targets) != n {
		return nil, dynamo.Formatf("row counts differ: %d timestamps, %d samples, %d targets", n, len(samples), len(targets))
	}

	prev := math.Inf(-1)
	for i, ts := range timestamps {
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			return nil, dynamo.Formatf("timestamp %d is not finite", i)
		}
		if ts <= prev {
			return nil, dynamo.Formatf("timestamp %d (%g) does not increase", i, ts)
		}
		prev = ts
	}

	t := &Trace{
		timestamps: append([]float64(nil), timestamps...),
		samples:    append([]dynamo.TraceSample(nil), samples...),
		targets:    append([]dynamo.ControlTarget(nil), targets...),
	}
	if t.Rate() <= 0 || t.Duration() <= 0 {
		return nil, dynamo.Formatf("trace of %d samples over %gs yields rate %d and duration %d", n, t.FinalTimestamp(), t.Rate(), t.Duration())
	}
	return t, nil
}

func (t *Trace) SampleCount() int { return len(t.timestamps) }

func (t *Trace) TimestampAt(i int) float64 { return t.timestamps[i] }

func (t *Trace) SampleAt(i int) dynamo.TraceSample { return t.samples[i] }

func (t *Trace) TargetAt(i int) dynamo.ControlTarget { return t.targets[i] }

func (t *Trace) FinalTimestamp() float64 { return t.timestamps[len(t.timestamps)-1] }

// Rate is the sample count divided by the final timestamp, rounded to the
// nearest integer frequency in Hz.
func (t *Trace) Rate() int {
	last := t.FinalTimestamp()
	if last <= 0 {
		return 0
	}
	return int(math.Round(float64(len(t.timestamps)) / last))
}

// Duration is the final timestamp truncated to whole seconds.
func (t *Trace) Duration() int {
	return int(math.Floor(t.FinalTimestamp()))
}

// Steps is the number of control steps a run over this trace executes. It
// never exceeds the sample count.
func (t *Trace) Steps() int {
	return min(t.Duration()*t.Rate(), len(t.timestamps))
}

// AltitudeOffset is the shift that moves the first sample to altitude z0.
func (t *Trace) AltitudeOffset(z0 float64) float64 {
	return z0 - t.samples[0].Pos.Z
}

// Rebase returns a copy of t with every sample and target altitude shifted
// so that the first sample sits at z0.
func (t *Trace) Rebase(z0 float64) *Trace {
	off := t.AltitudeOffset(z0)
	out := &Trace{
		timestamps: t.timestamps,
		samples:    make([]dynamo.TraceSample, len(t.samples)),
		targets:    make([]dynamo.ControlTarget, len(t.targets)),
	}
	for i, s := range t.samples {
		s.Pos.Z += off
		out.samples[i] = s
	}
	for i, c := range t.targets {
		c.Pos.Z += off
		out.targets[i] = c
	}
	return out
}
