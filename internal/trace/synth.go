package trace

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Kind selects the shape of a synthesized trace.
type Kind string

const (
	// KindHover climbs from Start to a fixed Target.
	KindHover Kind = "hover"
	// KindSweep circles Target in the horizontal plane.
	KindSweep Kind = "sweep"
)

// Profile describes a synthetic reference flight.
type Profile struct {
	Kind     Kind    `yaml:"kind"`
	Rate     int     `yaml:"rate"`
	Duration float64 `yaml:"duration"`
	Start    r3.Vec  `yaml:"start"`
	Target   r3.Vec  `yaml:"target"`
	// Radius and Period of the sweep circle.
	Radius float64 `yaml:"radius"`
	Period float64 `yaml:"period"`
	// TimeConstant of the exponential approach recorded for hover samples.
	TimeConstant float64 `yaml:"time_constant"`
	HoverRPM     float64 `yaml:"hover_rpm"`
}

// DefaultProfile is a five second climb to one meter at 100 Hz.
func DefaultProfile() Profile {
	return Profile{
		Kind:         KindHover,
		Rate:         100,
		Duration:     5,
		Start:        r3.Vec{Z: 0.1},
		Target:       r3.Vec{Z: 1},
		Radius:       0.5,
		Period:       5,
		TimeConstant: 0.5,
		HoverRPM:     14468.4,
	}
}

// Synthesize builds a trace of Rate*Duration samples. Timestamps are
// (i+1)*Duration/N so the final one equals Duration exactly; the flight
// itself starts at the first sample, which sits exactly at Start.
func Synthesize(p Profile) (*Trace, error) {
	if p.Rate <= 0 || p.Duration < 1 {
		return nil, fmt.Errorf("synthesize: need rate > 0 and duration >= 1s, got %d Hz over %gs", p.Rate, p.Duration)
	}
	n := int(math.Round(float64(p.Rate) * p.Duration))
	timestamps := make([]float64, n)
	samples := make([]dynamo.TraceSample, n)
	targets := make([]dynamo.ControlTarget, n)

	for i := 0; i < n; i++ {
		timestamps[i] = float64(i+1) * p.Duration / float64(n)
		elapsed := float64(i) * p.Duration / float64(n)

		var pos, vel r3.Vec
		switch p.Kind {
		case KindHover, "":
			pos, vel = p.approach(elapsed)
			targets[i] = dynamo.ControlTarget{Pos: p.Target}
		case KindSweep:
			pos, vel = p.circle(elapsed)
			targets[i] = dynamo.ControlTarget{Pos: pos, Vel: vel}
		default:
			return nil, fmt.Errorf("synthesize: unknown profile kind %q", p.Kind)
		}

		rpm := p.HoverRPM
		samples[i] = dynamo.TraceSample{
			Pos: pos,
			Vel: vel,
			RPM: dynamo.ActuatorCommand{rpm, rpm, rpm, rpm},
		}
	}
	return New(timestamps, samples, targets)
}

// approach is an exponential move from Start to Target.
func (p Profile) approach(t float64) (r3.Vec, r3.Vec) {
	tau := p.TimeConstant
	if tau <= 0 {
		return p.Target, r3.Vec{}
	}
	decay := math.Exp(-t / tau)
	pos := r3.Add(r3.Scale(decay, p.Start), r3.Scale(1-decay, p.Target))
	return pos, r3.Scale(-decay/tau, r3.Sub(p.Start, p.Target))
}

func (p Profile) circle(t float64) (r3.Vec, r3.Vec) {
	period := p.Period
	if period <= 0 {
		period = p.Duration
	}
	w := 2 * math.Pi / period
	s, c := math.Sincos(w * t)
	pos := r3.Add(p.Target, r3.Vec{X: p.Radius * (c - 1), Y: p.Radius * s})
	vel := r3.Vec{X: -p.Radius * w * s, Y: p.Radius * w * c}
	return pos, vel
}

// Example is the trace used when no trace file is given.
func Example() *Trace {
	t, err := Synthesize(DefaultProfile())
	if err != nil {
		panic(err)
	}
	return t
}
