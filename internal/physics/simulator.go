package physics

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/integrators"
)

// Mode selects the integrator and aerodynamic effects of a Simulator.
type Mode string

const (
	ModeDyn        Mode = "dyn"
	ModeRK4        Mode = "rk4"
	ModeGround     Mode = "gnd"
	ModeDrag       Mode = "drag"
	ModeGroundDrag Mode = "gnd_drag"
)

var modes = []Mode{ModeDyn, ModeRK4, ModeGround, ModeDrag, ModeGroundDrag}

func Modes() []Mode { return append([]Mode(nil), modes...) }

func ParseMode(s string) (Mode, error) {
	for _, m := range modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown physics mode: %s (available: %v)", s, modes)
}

func (m Mode) Effects() Effects {
	switch m {
	case ModeGround:
		return Effects{GroundEffect: true}
	case ModeDrag:
		return Effects{Drag: true}
	case ModeGroundDrag:
		return Effects{GroundEffect: true, Drag: true}
	default:
		return Effects{}
	}
}

func (m Mode) Integrator() string {
	if m == ModeDyn {
		return "euler"
	}
	return "rk4"
}

// Noise holds standard deviations of the observation noise added to reported
// states. The integrated state itself stays noise free.
type Noise struct {
	Pos float64 `yaml:"pos"`
	Vel float64 `yaml:"vel"`
	RPY float64 `yaml:"rpy"`
}

func (n Noise) enabled() bool { return n.Pos > 0 || n.Vel > 0 || n.RPY > 0 }

type SimConfig struct {
	Params     Params
	Mode       Mode
	Freq       int
	Substeps   int
	InitialPos r3.Vec
	InitialRPY r3.Vec
	Seed       int64
	Noise      Noise
}

// Simulator advances one quadrotor at a fixed control frequency.
type Simulator struct {
	cfg   SimConfig
	dyn   *Quadrotor
	integ dynamo.Integrator
	dt    float64
	x     dynamo.State
	t     float64
	last  dynamo.ActuatorCommand
	rng   *rand.Rand

	closed bool
}

func NewSimulator(cfg SimConfig) (*Simulator, error) {
	if cfg.Freq <= 0 {
		return nil, fmt.Errorf("physics: frequency must be positive, got %d", cfg.Freq)
	}
	if cfg.Substeps <= 0 {
		cfg.Substeps = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDyn
	}
	if cfg.Params.Mass <= 0 {
		return nil, fmt.Errorf("physics: mass must be positive, got %f", cfg.Params.Mass)
	}
	integ, err := integrators.Lookup(cfg.Mode.Integrator())
	if err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:   cfg,
		dyn:   NewQuadrotor(cfg.Params, cfg.Mode.Effects()),
		integ: integ,
		dt:    1.0 / float64(cfg.Freq),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (s *Simulator) Dynamics() *Quadrotor { return s.dyn }

// InitialPosition is where Reset places the vehicle, before sensor noise.
func (s *Simulator) InitialPosition() r3.Vec { return s.cfg.InitialPos }
func (s *Simulator) Timestep() float64    { return s.dt }
func (s *Simulator) Time() float64        { return s.t }

// Reset places the vehicle at its initial pose, at rest, and returns the
// first observation.
func (s *Simulator) Reset() (dynamo.VehicleState, error) {
	if s.closed {
		return dynamo.VehicleState{}, fmt.Errorf("physics: reset after close: %w", dynamo.ErrState)
	}
	q := dynamo.QuatFromRPY(s.cfg.InitialRPY)
	p := s.cfg.InitialPos
	s.x = dynamo.State{p.X, p.Y, p.Z, q.X, q.Y, q.Z, q.W, 0, 0, 0, 0, 0, 0}
	s.t = 0
	s.last = dynamo.ActuatorCommand{}
	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
	return s.observe(), nil
}

// Step applies cmd for one control period.
func (s *Simulator) Step(cmd dynamo.ActuatorCommand) (dynamo.VehicleState, error) {
	if s.closed {
		return dynamo.VehicleState{}, fmt.Errorf("physics: step after close: %w", dynamo.ErrState)
	}
	if s.x == nil {
		return dynamo.VehicleState{}, fmt.Errorf("physics: step before reset: %w", dynamo.ErrState)
	}

	for i := range cmd {
		cmd[i] = math.Max(0, math.Min(cmd[i], s.dyn.MaxRPM))
	}
	u := dynamo.Control(cmd[:])

	h := s.dt / float64(s.cfg.Substeps)
	for i := 0; i < s.cfg.Substeps; i++ {
		s.x = s.integ.Step(s.dyn, s.x, u, s.t, h)
		s.t += h
		s.settle()
	}
	if !s.x.IsValid() {
		return dynamo.VehicleState{}, fmt.Errorf("physics: non-finite state at t=%.4f", s.t)
	}

	s.last = cmd
	return s.observe(), nil
}

// settle renormalizes the attitude and keeps the vehicle above the ground.
func (s *Simulator) settle() {
	q := dynamo.Quat{X: s.x[3], Y: s.x[4], Z: s.x[5], W: s.x[6]}.Normalize()
	s.x[3], s.x[4], s.x[5], s.x[6] = q.X, q.Y, q.Z, q.W
	if s.x[2] < 0 {
		s.x[2] = 0
		s.x[7], s.x[8] = 0, 0
		s.x[9] = math.Max(0, s.x[9])
		s.x[10], s.x[11], s.x[12] = 0, 0, 0
	}
}

func (s *Simulator) observe() dynamo.VehicleState {
	q := dynamo.Quat{X: s.x[3], Y: s.x[4], Z: s.x[5], W: s.x[6]}
	bodyRates := r3.Vec{X: s.x[10], Y: s.x[11], Z: s.x[12]}
	st := dynamo.VehicleState{
		Pos:    r3.Vec{X: s.x[0], Y: s.x[1], Z: s.x[2]},
		Quat:   q,
		RPY:    q.RPY(),
		Vel:    r3.Vec{X: s.x[7], Y: s.x[8], Z: s.x[9]},
		AngVel: rotate(q, bodyRates),
		RPM:    s.last,
	}
	if n := s.cfg.Noise; n.enabled() {
		st.Pos = r3.Add(st.Pos, s.gauss(n.Pos))
		st.Vel = r3.Add(st.Vel, s.gauss(n.Vel))
		st.RPY = r3.Add(st.RPY, s.gauss(n.RPY))
	}
	return st
}

func (s *Simulator) gauss(std float64) r3.Vec {
	return r3.Vec{X: s.rng.NormFloat64() * std, Y: s.rng.NormFloat64() * std, Z: s.rng.NormFloat64() * std}
}

func rotate(q dynamo.Quat, v r3.Vec) r3.Vec {
	rot := q.Rotation()
	return r3.Vec{
		X: rot.At(0, 0)*v.X + rot.At(0, 1)*v.Y + rot.At(0, 2)*v.Z,
		Y: rot.At(1, 0)*v.X + rot.At(1, 1)*v.Y + rot.At(1, 2)*v.Z,
		Z: rot.At(2, 0)*v.X + rot.At(2, 1)*v.Y + rot.At(2, 2)*v.Z,
	}
}

func (s *Simulator) Close() error {
	s.closed = true
	return nil
}
