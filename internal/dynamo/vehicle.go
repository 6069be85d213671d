package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fixed record widths.
const (
	StateWidth   = 20
	SampleWidth  = 20
	TargetWidth  = 6
	ControlWidth = 12
	Rotors       = 4
)

// Quat is a unit quaternion stored scalar-last.
type Quat struct {
	X, Y, Z, W float64
}

func IdentityQuat() Quat { return Quat{W: 1} }

func (q Quat) Number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func QuatFromNumber(n quat.Number) Quat {
	return Quat{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Normalize returns q scaled to unit length. The zero quaternion maps to identity.
func (q Quat) Normalize() Quat {
	n := q.Number()
	abs := quat.Abs(n)
	if abs == 0 {
		return IdentityQuat()
	}
	return QuatFromNumber(quat.Scale(1/abs, n))
}

// QuatFromRPY builds the rotation Rz(yaw)·Ry(pitch)·Rx(roll).
func QuatFromRPY(rpy r3.Vec) Quat {
	cr, sr := math.Cos(rpy.X/2), math.Sin(rpy.X/2)
	cp, sp := math.Cos(rpy.Y/2), math.Sin(rpy.Y/2)
	cy, sy := math.Cos(rpy.Z/2), math.Sin(rpy.Z/2)
	return Quat{
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// RPY returns roll, pitch and yaw for the Rz·Ry·Rx convention.
func (q Quat) RPY() r3.Vec {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	sinp = math.Max(-1, math.Min(1, sinp))
	pitch := math.Asin(sinp)
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return r3.Vec{X: roll, Y: pitch, Z: yaw}
}

// Rotation returns the body-to-world rotation matrix.
func (q Quat) Rotation() *mat.Dense {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// Column returns column j of a 3x3 matrix as a vector.
func Column(m mat.Matrix, j int) r3.Vec {
	return r3.Vec{X: m.At(0, j), Y: m.At(1, j), Z: m.At(2, j)}
}

// ActuatorCommand holds one speed command per rotor, in RPM.
type ActuatorCommand [Rotors]float64

// VehicleState is the live vehicle record reported by the simulator.
type VehicleState struct {
	Pos    r3.Vec
	Quat   Quat
	RPY    r3.Vec
	Vel    r3.Vec
	AngVel r3.Vec
	RPM    ActuatorCommand
}

// Vector flattens the state in live layout:
// pos(3) quat(4) rpy(3) vel(3) angvel(3) rpm(4).
func (s VehicleState) Vector() [StateWidth]float64 {
	return [StateWidth]float64{
		s.Pos.X, s.Pos.Y, s.Pos.Z,
		s.Quat.X, s.Quat.Y, s.Quat.Z, s.Quat.W,
		s.RPY.X, s.RPY.Y, s.RPY.Z,
		s.Vel.X, s.Vel.Y, s.Vel.Z,
		s.AngVel.X, s.AngVel.Y, s.AngVel.Z,
		s.RPM[0], s.RPM[1], s.RPM[2], s.RPM[3],
	}
}

func VehicleStateFromVector(v [StateWidth]float64) VehicleState {
	return VehicleState{
		Pos:    r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		Quat:   Quat{X: v[3], Y: v[4], Z: v[5], W: v[6]},
		RPY:    r3.Vec{X: v[7], Y: v[8], Z: v[9]},
		Vel:    r3.Vec{X: v[10], Y: v[11], Z: v[12]},
		AngVel: r3.Vec{X: v[13], Y: v[14], Z: v[15]},
		RPM:    ActuatorCommand{v[16], v[17], v[18], v[19]},
	}
}

// TraceSample is one recorded reference row.
type TraceSample struct {
	Pos    r3.Vec
	Vel    r3.Vec
	RPY    r3.Vec
	AngVel r3.Vec
	RPM    ActuatorCommand
	Aux    [4]float64
}

// TraceSampleFromRow unpacks a stored row:
// pos(3) vel(3) rpy(3) angvel(3) rpm(4) aux(4).
func TraceSampleFromRow(row []float64) (TraceSample, error) {
	if len(row) != SampleWidth {
		return TraceSample{}, Formatf("sample row has %d fields, want %d", len(row), SampleWidth)
	}
	return TraceSample{
		Pos:    r3.Vec{X: row[0], Y: row[1], Z: row[2]},
		Vel:    r3.Vec{X: row[3], Y: row[4], Z: row[5]},
		RPY:    r3.Vec{X: row[6], Y: row[7], Z: row[8]},
		AngVel: r3.Vec{X: row[9], Y: row[10], Z: row[11]},
		RPM:    ActuatorCommand{row[12], row[13], row[14], row[15]},
		Aux:    [4]float64{row[16], row[17], row[18], row[19]},
	}, nil
}

// Row is the inverse of TraceSampleFromRow.
func (s TraceSample) Row() []float64 {
	return []float64{
		s.Pos.X, s.Pos.Y, s.Pos.Z,
		s.Vel.X, s.Vel.Y, s.Vel.Z,
		s.RPY.X, s.RPY.Y, s.RPY.Z,
		s.AngVel.X, s.AngVel.Y, s.AngVel.Z,
		s.RPM[0], s.RPM[1], s.RPM[2], s.RPM[3],
		s.Aux[0], s.Aux[1], s.Aux[2], s.Aux[3],
	}
}

// VehicleState maps the sample onto the live layout. Recorded traces carry
// no attitude quaternion, so that block is zero; aux fields are dropped.
func (s TraceSample) VehicleState() VehicleState {
	return VehicleState{
		Pos:    s.Pos,
		RPY:    s.RPY,
		Vel:    s.Vel,
		AngVel: s.AngVel,
		RPM:    s.RPM,
	}
}

// ControlTarget is the setpoint handed to the controller each step.
type ControlTarget struct {
	Pos r3.Vec
	Vel r3.Vec
}

func ControlTargetFromRow(row []float64) (ControlTarget, error) {
	if len(row) != TargetWidth {
		return ControlTarget{}, Formatf("control row has %d fields, want %d", len(row), TargetWidth)
	}
	return ControlTarget{
		Pos: r3.Vec{X: row[0], Y: row[1], Z: row[2]},
		Vel: r3.Vec{X: row[3], Y: row[4], Z: row[5]},
	}, nil
}

func (c ControlTarget) Row() []float64 {
	return []float64{c.Pos.X, c.Pos.Y, c.Pos.Z, c.Vel.X, c.Vel.Y, c.Vel.Z}
}

// ControlVector is the control history logged next to each state:
// target pos(3) target vel(3) reserved(6).
type ControlVector [ControlWidth]float64

func NewControlVector(c ControlTarget) ControlVector {
	return ControlVector{c.Pos.X, c.Pos.Y, c.Pos.Z, c.Vel.X, c.Vel.Y, c.Vel.Z}
}

// Track identifies one recorder sequence.
type Track int

const (
	TrackReference Track = 0
	TrackLive      Track = 1
)

func (t Track) String() string {
	switch t {
	case TrackReference:
		return "reference"
	case TrackLive:
		return "live"
	default:
		return fmt.Sprintf("track%d", int(t))
	}
}
