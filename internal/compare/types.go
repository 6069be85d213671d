package compare

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/recorder"
	"github.com/san-kum/dronetrace/internal/trace"
)

// Simulator is the physics backend driven by the loop.
type Simulator interface {
	Reset() (dynamo.VehicleState, error)
	Step(cmd dynamo.ActuatorCommand) (dynamo.VehicleState, error)
	Close() error
}

// Origin is implemented by simulators that know the noise-free position they
// reset to. The driver rebases the trace onto it instead of the first
// observation.
type Origin interface {
	InitialPosition() r3.Vec
}

// SimulatorFactory builds a simulator stepping at rate Hz.
type SimulatorFactory func(rate int) (Simulator, error)

// Controller turns a state and setpoint into rotor commands. It keeps
// integral history between calls until Reset.
type Controller interface {
	ComputeCommand(dt float64, state dynamo.VehicleState, targetPos, targetVel r3.Vec) (dynamo.ActuatorCommand, float64, float64)
	Reset()
}

// TraceLoader supplies the reference trace at Start.
type TraceLoader func() (*trace.Trace, error)

// FromFile loads the trace at path.
func FromFile(path string) TraceLoader {
	return func() (*trace.Trace, error) { return trace.Load(path) }
}

// FromTrace uses an already built trace.
func FromTrace(t *trace.Trace) TraceLoader {
	return func() (*trace.Trace, error) { return t, nil }
}

// Observer sees every step.
type Observer interface {
	Observe(rec dynamo.StepRecord)
}

// Renderer is called once per simulated second.
type Renderer interface {
	Render(rec dynamo.StepRecord) error
}

// Exporter receives the finished run.
type Exporter interface {
	Export(ctx context.Context, sum Summary, snap recorder.Snapshot) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, sum Summary, snap recorder.Snapshot) error

func (f ExporterFunc) Export(ctx context.Context, sum Summary, snap recorder.Snapshot) error {
	return f(ctx, sum, snap)
}

// Summary describes a finished run.
type Summary struct {
	Rate           int                `json:"rate"`
	Duration       int                `json:"duration"`
	Steps          int                `json:"steps"`
	TraceSamples   int                `json:"trace_samples"`
	AltitudeOffset float64            `json:"altitude_offset"`
	Final          dynamo.StepRecord  `json:"-"`
	Metrics        map[string]float64 `json:"metrics"`
	Overruns       int                `json:"overruns"`
	StartedAt      time.Time          `json:"started_at"`
	Elapsed        time.Duration      `json:"elapsed"`
}

// State is the driver lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
