package control

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Gains of the position (force) and attitude (torque) loops.
type Gains struct {
	PFor r3.Vec `yaml:"p_for"`
	IFor r3.Vec `yaml:"i_for"`
	DFor r3.Vec `yaml:"d_for"`
	PTor r3.Vec `yaml:"p_tor"`
	ITor r3.Vec `yaml:"i_tor"`
	DTor r3.Vec `yaml:"d_tor"`

	PosIntegralLimit r3.Vec  `yaml:"pos_integral_limit"`
	RPYIntegralLimit r3.Vec  `yaml:"rpy_integral_limit"`
	TorqueLimit      float64 `yaml:"torque_limit"`
}

// DefaultGains are the Crazyflie Mellinger-style gains.
func DefaultGains() Gains {
	return Gains{
		PFor:             r3.Vec{X: .4, Y: .4, Z: 1.25},
		IFor:             r3.Vec{X: .05, Y: .05, Z: .05},
		DFor:             r3.Vec{X: .2, Y: .2, Z: .5},
		PTor:             r3.Vec{X: 70000, Y: 70000, Z: 60000},
		ITor:             r3.Vec{X: 0, Y: 0, Z: 500},
		DTor:             r3.Vec{X: 20000, Y: 20000, Z: 12000},
		PosIntegralLimit: r3.Vec{X: 2, Y: 2, Z: .15},
		RPYIntegralLimit: r3.Vec{X: 1, Y: 1, Z: 1500},
		TorqueLimit:      3200,
	}
}

// vec returns the gain vector named by loop, or nil.
func (g *Gains) vec(loop string) *r3.Vec {
	switch loop {
	case "p_for":
		return &g.PFor
	case "i_for":
		return &g.IFor
	case "d_for":
		return &g.DFor
	case "p_tor":
		return &g.PTor
	case "i_tor":
		return &g.ITor
	case "d_tor":
		return &g.DTor
	case "pos_integral_limit":
		return &g.PosIntegralLimit
	case "rpy_integral_limit":
		return &g.RPYIntegralLimit
	}
	return nil
}

// Set assigns one gain by name: "torque_limit", or a loop and axes joined by
// a dot, such as "p_for.z", "d_tor.xy" or "i_for.xyz".
func (g *Gains) Set(name string, v float64) error {
	if name == "torque_limit" {
		g.TorqueLimit = v
		return nil
	}
	loop, axes, ok := strings.Cut(name, ".")
	target := g.vec(loop)
	if !ok || target == nil || axes == "" {
		return fmt.Errorf("unknown gain: %s", name)
	}
	for _, a := range axes {
		if a != 'x' && a != 'y' && a != 'z' {
			return fmt.Errorf("unknown gain axis %q in %s", a, name)
		}
	}
	for _, a := range axes {
		switch a {
		case 'x':
			target.X = v
		case 'y':
			target.Y = v
		case 'z':
			target.Z = v
		}
	}
	return nil
}

// PWM describes the motor command range and its linear map to RPM.
type PWM struct {
	Scale float64 `yaml:"scale"`
	Const float64 `yaml:"const"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

func DefaultPWM() PWM {
	return PWM{Scale: 0.2685, Const: 4070.3, Min: 20000, Max: 65535}
}

func (p PWM) RPM(pwm float64) float64 { return p.Scale*pwm + p.Const }

// Mixer maps roll, pitch and yaw torques onto each rotor's PWM offset.
type Mixer [dynamo.Rotors][3]float64

var (
	MixerX = Mixer{
		{-.5, -.5, -1},
		{-.5, .5, 1},
		{.5, .5, -1},
		{.5, -.5, 1},
	}
	MixerPlus = Mixer{
		{0, -1, -1},
		{+1, 0, 1},
		{0, 1, -1},
		{-1, 0, 1},
	}
)

type Config struct {
	Gains  Gains
	PWM    PWM
	Mixer  Mixer
	KF     float64 // rotor thrust per rpm^2
	Weight float64 // mass times gravity, in N
}

// Cascaded is a position loop feeding an attitude loop. It keeps integral and
// last-attitude history between calls, so one instance serves one vehicle at
// one fixed period.
type Cascaded struct {
	cfg     Config
	pos     *PID3
	att     *PID3
	lastRPY r3.Vec
}

func NewCascaded(cfg Config) *Cascaded {
	g := cfg.Gains
	return &Cascaded{
		cfg: cfg,
		pos: NewPID3(g.PFor, g.IFor, g.DFor, g.PosIntegralLimit),
		att: NewPID3(g.PTor, g.ITor, g.DTor, g.RPYIntegralLimit),
	}
}

// Reset clears integral and derivative history.
func (c *Cascaded) Reset() {
	c.pos.Reset()
	c.att.Reset()
	c.lastRPY = r3.Vec{}
}

// ComputeCommand returns rotor speeds that steer state toward targetPos and
// targetVel, along with the position error norm and absolute yaw error it
// was computed from. dt must be the fixed control period.
func (c *Cascaded) ComputeCommand(dt float64, state dynamo.VehicleState, targetPos, targetVel r3.Vec) (dynamo.ActuatorCommand, float64, float64) {
	curRot := state.Quat.Rotation()
	thrust, targetRot, posErr := c.positionControl(dt, state, curRot, targetPos, targetVel)
	cmd, yawErr := c.attitudeControl(dt, state, curRot, thrust, targetRot)
	return cmd, r3.Norm(posErr), yawErr
}

// positionControl returns the collective PWM, the desired rotation and the
// position error.
func (c *Cascaded) positionControl(dt float64, state dynamo.VehicleState, curRot *mat.Dense, targetPos, targetVel r3.Vec) (float64, *mat.Dense, r3.Vec) {
	posErr := r3.Sub(targetPos, state.Pos)
	velErr := r3.Sub(targetVel, state.Vel)

	force := c.pos.Update(posErr, velErr, dt)
	force.Z += c.cfg.Weight

	scalar := math.Max(0, r3.Dot(force, dynamo.Column(curRot, 2)))
	thrust := (math.Sqrt(scalar/(4*c.cfg.KF)) - c.cfg.PWM.Const) / c.cfg.PWM.Scale

	zAx := r3.Vec{Z: 1}
	if r3.Norm(force) > 0 {
		zAx = r3.Unit(force)
	}
	// target yaw is zero: heading axis is world x
	yAx := r3.Unit(r3.Cross(zAx, r3.Vec{X: 1}))
	xAx := r3.Cross(yAx, zAx)

	targetRot := mat.NewDense(3, 3, []float64{
		xAx.X, yAx.X, zAx.X,
		xAx.Y, yAx.Y, zAx.Y,
		xAx.Z, yAx.Z, zAx.Z,
	})
	return thrust, targetRot, posErr
}

func (c *Cascaded) attitudeControl(dt float64, state dynamo.VehicleState, curRot *mat.Dense, thrust float64, targetRot *mat.Dense) (dynamo.ActuatorCommand, float64) {
	curRPY := state.Quat.RPY()

	var a, b, e mat.Dense
	a.Mul(targetRot.T(), curRot)
	b.Mul(curRot.T(), targetRot)
	e.Sub(&a, &b)
	rotErr := r3.Vec{X: e.At(2, 1), Y: e.At(0, 2), Z: e.At(1, 0)}

	var rateErr r3.Vec
	if dt > 0 {
		rateErr = r3.Scale(-1/dt, r3.Sub(curRPY, c.lastRPY))
	}
	c.lastRPY = curRPY

	torque := c.att.Update(r3.Scale(-1, rotErr), rateErr, dt)
	lim := c.cfg.Gains.TorqueLimit
	torque = clampVec(torque, r3.Vec{X: lim, Y: lim, Z: lim})

	var cmd dynamo.ActuatorCommand
	for i, row := range c.cfg.Mixer {
		pwm := thrust + row[0]*torque.X + row[1]*torque.Y + row[2]*torque.Z
		pwm = clamp(pwm, c.cfg.PWM.Min, c.cfg.PWM.Max)
		cmd[i] = c.cfg.PWM.RPM(pwm)
	}

	targetYaw := math.Atan2(targetRot.At(1, 0), targetRot.At(0, 0))
	return cmd, math.Abs(targetYaw - curRPY.Z)
}

// Diagnostics exposes the loop integrals for logging.
type Diagnostics struct {
	PosIntegral r3.Vec
	RPYIntegral r3.Vec
}

func (c *Cascaded) Diagnostics() Diagnostics {
	return Diagnostics{PosIntegral: c.pos.Integral(), RPYIntegral: c.att.Integral()}
}

func (d Diagnostics) LogValue() slog.Value {
	vec := func(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
	return slog.GroupValue(
		slog.Any("pos_integral", vec(d.PosIntegral)),
		slog.Any("rpy_integral", vec(d.RPYIntegral)))
}
