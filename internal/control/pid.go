package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PID3 is a three-axis PID term whose integral is clamped per axis.
type PID3 struct {
	Kp    r3.Vec
	Ki    r3.Vec
	Kd    r3.Vec
	Limit r3.Vec

	integral r3.Vec
}

func NewPID3(kp, ki, kd, limit r3.Vec) *PID3 {
	return &PID3{Kp: kp, Ki: ki, Kd: kd, Limit: limit}
}

// Update accumulates err over dt and returns Kp·err + Ki·∫err + Kd·derr,
// all element-wise. The caller supplies the derivative term.
func (p *PID3) Update(err, derr r3.Vec, dt float64) r3.Vec {
	if dt > 0 {
		p.integral = clampVec(r3.Add(p.integral, r3.Scale(dt, err)), p.Limit)
	}
	out := mulElem(p.Kp, err)
	out = r3.Add(out, mulElem(p.Ki, p.integral))
	return r3.Add(out, mulElem(p.Kd, derr))
}

func (p *PID3) Integral() r3.Vec { return p.integral }

// Reset clears the integral
func (p *PID3) Reset() {
	p.integral = r3.Vec{}
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func clampVec(v, limit r3.Vec) r3.Vec {
	return r3.Vec{
		X: clamp(v.X, -limit.X, limit.X),
		Y: clamp(v.Y, -limit.Y, limit.Y),
		Z: clamp(v.Z, -limit.Z, limit.Z),
	}
}
