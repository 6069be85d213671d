package compare

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/trace"
)

// fakeSim holds its initial pose and echoes each command back as RPM.
type fakeSim struct {
	z0       float64
	resetErr error
	stepErr  error

	cmds   []dynamo.ActuatorCommand
	states []dynamo.VehicleState
	closed bool
}

func (s *fakeSim) Reset() (dynamo.VehicleState, error) {
	if s.resetErr != nil {
		return dynamo.VehicleState{}, s.resetErr
	}
	return s.at(dynamo.ActuatorCommand{}), nil
}

func (s *fakeSim) Step(cmd dynamo.ActuatorCommand) (dynamo.VehicleState, error) {
	if s.stepErr != nil {
		return dynamo.VehicleState{}, s.stepErr
	}
	s.cmds = append(s.cmds, cmd)
	st := s.at(cmd)
	// drift so every step observes a distinct state
	st.Pos.X = float64(len(s.cmds))
	s.states = append(s.states, st)
	return st, nil
}

func (s *fakeSim) at(cmd dynamo.ActuatorCommand) dynamo.VehicleState {
	return dynamo.VehicleState{Pos: r3.Vec{Z: s.z0}, Quat: dynamo.IdentityQuat(), RPM: cmd}
}

func (s *fakeSim) Close() error {
	s.closed = true
	return nil
}

type fakeFactory struct {
	sim   *fakeSim
	err   error
	calls int
	rate  int
}

func (f *fakeFactory) build(rate int) (Simulator, error) {
	f.calls++
	f.rate = rate
	if f.err != nil {
		return nil, f.err
	}
	return f.sim, nil
}

// echoController derives its command from the observed state only.
type echoController struct {
	seen   []dynamo.VehicleState
	resets int
}

func (c *echoController) ComputeCommand(dt float64, st dynamo.VehicleState, pos, vel r3.Vec) (dynamo.ActuatorCommand, float64, float64) {
	c.seen = append(c.seen, st)
	v := 1000 * st.Pos.X
	return dynamo.ActuatorCommand{v, v + 1, v + 2, v + 3}, r3.Norm(r3.Sub(pos, st.Pos)), 0
}

func (c *echoController) Reset() { c.resets++ }

type countingRenderer struct {
	steps []int
	err   error
}

func (r *countingRenderer) Render(rec dynamo.StepRecord) error {
	r.steps = append(r.steps, rec.Step)
	return r.err
}

// uniformTrace has n samples over last seconds, all at altitude z with
// targets one meter above.
func uniformTrace(n int, last, z float64) *trace.Trace {
	ts := make([]float64, n)
	samples := make([]dynamo.TraceSample, n)
	targets := make([]dynamo.ControlTarget, n)
	for i := range ts {
		ts[i] = float64(i+1) * last / float64(n)
		samples[i] = dynamo.TraceSample{Pos: r3.Vec{Z: z}}
		targets[i] = dynamo.ControlTarget{Pos: r3.Vec{Z: z + 1}}
	}
	t, err := trace.New(ts, samples, targets)
	if err != nil {
		panic(err)
	}
	return t
}

func newFakeDriver(tr *trace.Trace, sim *fakeSim) (*Driver, *echoController, *fakeFactory) {
	ctrl := &echoController{}
	fac := &fakeFactory{sim: sim}
	d, err := New(Options{
		Trace:      FromTrace(tr),
		Simulator:  fac.build,
		Controller: ctrl,
	})
	if err != nil {
		panic(err)
	}
	return d, ctrl, fac
}

var errBoom = errors.New("boom")
