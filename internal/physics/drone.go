package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

const DefaultGravity = 9.8

// Frame is the rotor arrangement of a quadrotor.
type Frame int

const (
	FrameX Frame = iota
	FramePlus
)

// Params are the physical constants of one quadrotor airframe.
type Params struct {
	Mass        float64
	ArmLength   float64
	Ixx         float64
	Iyy         float64
	Izz         float64
	KF          float64 // thrust per rpm^2
	KM          float64 // drag torque per rpm^2
	Gravity     float64
	MaxRPM      float64
	PropRadius  float64
	GndEffCoeff float64
	DragXY      float64
	DragZ       float64
	Frame       Frame
}

// CF2X returns Crazyflie 2.x constants in X configuration.
func CF2X() Params {
	return Params{
		Mass:        0.027,
		ArmLength:   0.0397,
		Ixx:         1.4e-5,
		Iyy:         1.4e-5,
		Izz:         2.17e-5,
		KF:          3.16e-10,
		KM:          7.94e-12,
		Gravity:     DefaultGravity,
		MaxRPM:      21702,
		PropRadius:  2.31348e-2,
		GndEffCoeff: 11.36859,
		DragXY:      9.1785e-7,
		DragZ:       10.311e-7,
		Frame:       FrameX,
	}
}

// CF2P is CF2X in plus configuration.
func CF2P() Params {
	p := CF2X()
	p.Frame = FramePlus
	return p
}

// Effects toggles the optional aerodynamic terms.
type Effects struct {
	GroundEffect bool
	Drag         bool
}

// Quadrotor is a rigid-body quadrotor driven by rotor speeds.
//
// State layout: pos(3) quat x,y,z,w(4) world vel(3) body rates(3).
// Control layout: rotor speeds in RPM(4).
type Quadrotor struct {
	Params
	Effects
}

const quadStateDim = 13

func NewQuadrotor(p Params, fx Effects) *Quadrotor {
	return &Quadrotor{Params: p, Effects: fx}
}

func (q *Quadrotor) StateDim() int   { return quadStateDim }
func (q *Quadrotor) ControlDim() int { return dynamo.Rotors }

// HoverRPM is the rotor speed that balances gravity with all rotors equal.
func (q *Quadrotor) HoverRPM() float64 {
	return math.Sqrt(q.Mass * q.Gravity / (4 * q.KF))
}

func (q *Quadrotor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	orient := dynamo.Quat{X: x[3], Y: x[4], Z: x[5], W: x[6]}
	vel := r3.Vec{X: x[7], Y: x[8], Z: x[9]}
	omega := r3.Vec{X: x[10], Y: x[11], Z: x[12]}
	rot := orient.Rotation()

	var forces, yawTorques [dynamo.Rotors]float64
	for i := 0; i < dynamo.Rotors && i < len(u); i++ {
		rpm := math.Max(0, u[i])
		forces[i] = rpm * rpm * q.KF
		yawTorques[i] = rpm * rpm * q.KM
	}

	thrust := forces[0] + forces[1] + forces[2] + forces[3]
	if q.GroundEffect {
		thrust += q.groundEffect(x[2], orient, forces)
	}

	accel := r3.Scale(thrust/q.Mass, dynamo.Column(rot, 2))
	accel.Z -= q.Gravity
	if q.Drag {
		accel = r3.Add(accel, r3.Scale(1/q.Mass, q.drag(rot, vel, u)))
	}

	torque := q.rotorTorque(forces, yawTorques)
	inertia := r3.Vec{X: q.Ixx * omega.X, Y: q.Iyy * omega.Y, Z: q.Izz * omega.Z}
	torque = r3.Sub(torque, r3.Cross(omega, inertia))
	alpha := r3.Vec{X: torque.X / q.Ixx, Y: torque.Y / q.Iyy, Z: torque.Z / q.Izz}

	// q' = 1/2 q ⊗ (0, ω_body)
	qdot := quat.Scale(0.5, quat.Mul(orient.Number(), quat.Number{Imag: omega.X, Jmag: omega.Y, Kmag: omega.Z}))

	return dynamo.State{
		vel.X, vel.Y, vel.Z,
		qdot.Imag, qdot.Jmag, qdot.Kmag, qdot.Real,
		accel.X, accel.Y, accel.Z,
		alpha.X, alpha.Y, alpha.Z,
	}
}

// rotorTorque maps rotor forces to body torques. Signs mirror the controller
// mixers: rotor 0 and 2 spin one way, 1 and 3 the other.
func (q *Quadrotor) rotorTorque(f, yaw [dynamo.Rotors]float64) r3.Vec {
	var tx, ty float64
	switch q.Frame {
	case FramePlus:
		tx = (f[1] - f[3]) * q.ArmLength
		ty = (-f[0] + f[2]) * q.ArmLength
	default:
		arm := q.ArmLength / math.Sqrt2
		tx = (-f[0] - f[1] + f[2] + f[3]) * arm
		ty = (-f[0] + f[1] + f[2] - f[3]) * arm
	}
	tz := -yaw[0] + yaw[1] - yaw[2] + yaw[3]
	return r3.Vec{X: tx, Y: ty, Z: tz}
}

// groundEffect returns the extra body-z thrust near the ground. It vanishes
// when the vehicle is tilted past horizontal.
func (q *Quadrotor) groundEffect(z float64, orient dynamo.Quat, f [dynamo.Rotors]float64) float64 {
	rpy := orient.RPY()
	if math.Abs(rpy.X) >= math.Pi/2 || math.Abs(rpy.Y) >= math.Pi/2 {
		return 0
	}
	// below the clip height the boost saturates at 4/15 of the rotor thrust
	hClip := 0.25 * q.PropRadius * math.Sqrt(15*q.GndEffCoeff/4)
	h := math.Max(z, hClip)
	ratio := q.PropRadius / (4 * h)
	gain := q.GndEffCoeff * ratio * ratio
	return gain * (f[0] + f[1] + f[2] + f[3])
}

// drag returns the world-frame rotor drag force, proportional to the summed
// rotor speed and the body-frame velocity.
func (q *Quadrotor) drag(rot *mat.Dense, vel r3.Vec, u dynamo.Control) r3.Vec {
	spin := 0.0
	for i := 0; i < dynamo.Rotors && i < len(u); i++ {
		spin += 2 * math.Pi * math.Max(0, u[i]) / 60
	}

	var vb, fb mat.VecDense
	vb.MulVec(rot.T(), mat.NewVecDense(3, []float64{vel.X, vel.Y, vel.Z}))
	fb.MulVec(rot, mat.NewVecDense(3, []float64{
		-q.DragXY * spin * vb.AtVec(0),
		-q.DragXY * spin * vb.AtVec(1),
		-q.DragZ * spin * vb.AtVec(2),
	}))
	return r3.Vec{X: fb.AtVec(0), Y: fb.AtVec(1), Z: fb.AtVec(2)}
}

// Values lists the overridable constants by name.
func (p Params) Values() map[string]float64 {
	return map[string]float64{
		"mass":       p.Mass,
		"arm_length": p.ArmLength,
		"ixx":        p.Ixx,
		"iyy":        p.Iyy,
		"izz":        p.Izz,
		"kf":         p.KF,
		"km":         p.KM,
		"gravity":    p.Gravity,
		"max_rpm":    p.MaxRPM,
	}
}

// Set overrides one constant by the name Values uses. Non-positive values
// are rejected.
func (p *Params) Set(name string, value float64) error {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("drone param %s must be positive and finite, got %g", name, value)
	}
	switch name {
	case "mass":
		p.Mass = value
	case "arm_length":
		p.ArmLength = value
	case "ixx":
		p.Ixx = value
	case "iyy":
		p.Iyy = value
	case "izz":
		p.Izz = value
	case "kf":
		p.KF = value
	case "km":
		p.KM = value
	case "gravity":
		p.Gravity = value
	case "max_rpm":
		p.MaxRPM = value
	default:
		return fmt.Errorf("unknown drone param: %s", name)
	}
	return nil
}
