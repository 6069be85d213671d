// Package compare runs a simulated quadrotor against a recorded reference
// trace and records both trajectories on a common step index.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/san-kum/dronetrace/internal/control"
	"github.com/san-kum/dronetrace/internal/dynamo"
	"github.com/san-kum/dronetrace/internal/metrics"
	"github.com/san-kum/dronetrace/internal/pacer"
	"github.com/san-kum/dronetrace/internal/recorder"
	"github.com/san-kum/dronetrace/internal/trace"
)

type Options struct {
	Trace      TraceLoader
	Simulator  SimulatorFactory
	Controller Controller

	// Clock drives pacing and run timing. Nil uses the system clock.
	Clock clock.Clock
	// Pacing holds each step to wall-clock time.
	Pacing bool

	Metrics   metrics.Set
	Observers []Observer
	Renderers []Renderer
	Exporters []Exporter

	Logger *slog.Logger
}

// Driver owns one comparison run. It is not safe for concurrent use.
type Driver struct {
	opts  Options
	log   *slog.Logger
	pacer *pacer.Pacer
	rec   *recorder.Recorder
	state State

	trace  *trace.Trace
	sim    Simulator
	rate   int
	steps  int
	dt     float64
	period time.Duration
	offset float64

	step      int
	cmd       dynamo.ActuatorCommand
	last      dynamo.StepRecord
	startedAt time.Time
	summary   Summary
}

func New(opts Options) (*Driver, error) {
	if opts.Trace == nil {
		return nil, errors.New("compare: trace loader is required")
	}
	if opts.Simulator == nil {
		return nil, errors.New("compare: simulator factory is required")
	}
	if opts.Controller == nil {
		return nil, errors.New("compare: controller is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		opts:  opts,
		log:   log,
		pacer: pacer.New(opts.Clock, opts.Pacing),
		rec:   recorder.NewComparison(),
	}, nil
}

func (d *Driver) State() State                 { return d.state }
func (d *Driver) Recorder() *recorder.Recorder { return d.rec }
func (d *Driver) Rate() int                    { return d.rate }
func (d *Driver) Steps() int                   { return d.steps }
func (d *Driver) StepIndex() int               { return d.step }
func (d *Driver) Trace() *trace.Trace          { return d.trace }
func (d *Driver) Summary() Summary             { return d.summary }

// Start loads the trace, builds and resets the simulator at the trace's
// rate, rebases the trace altitude onto the simulator's initial altitude
// (its [Origin] when available, else the reset observation) and resets the
// controller. On failure the driver stays uninitialized and any
// simulator it built is closed.
func (d *Driver) Start(ctx context.Context) error {
	if d.state != StateUninitialized {
		return fmt.Errorf("compare: start while %s: %w", d.state, dynamo.ErrState)
	}

	tr, err := d.opts.Trace()
	if err != nil {
		return fmt.Errorf("compare: load trace: %w", err)
	}
	rate, steps := tr.Rate(), tr.Steps()

	sim, err := d.opts.Simulator(rate)
	if err != nil {
		return fmt.Errorf("compare: init simulator at %d Hz: %w", rate, err)
	}
	initial, err := sim.Reset()
	if err != nil {
		return errors.Join(fmt.Errorf("compare: reset simulator: %w", err), sim.Close())
	}

	z0 := initial.Pos.Z
	if o, ok := sim.(Origin); ok {
		z0 = o.InitialPosition().Z
	}
	d.offset = tr.AltitudeOffset(z0)
	d.trace = tr.Rebase(z0)
	d.sim = sim
	d.rate = rate
	d.steps = steps
	d.dt = 1 / float64(rate)
	d.period = pacer.Period(rate)
	d.step = 0
	d.cmd = dynamo.ActuatorCommand{}
	d.opts.Controller.Reset()
	d.opts.Metrics.Reset()
	d.startedAt = d.pacer.Now()
	d.state = StateRunning

	d.log.Info("comparison started",
		"rate_hz", rate,
		"duration_s", tr.Duration(),
		"steps", steps,
		"samples", tr.SampleCount(),
		"altitude_offset", d.offset,
		"pacing", d.pacer.Enabled())
	return nil
}

// Step runs one control iteration: advance the simulator with the previous
// command, compute the next command from the new state, log both tracks,
// render once per simulated second and pace. It returns
// dynamo.ErrTraceExhausted after the last step.
func (d *Driver) Step(ctx context.Context) error {
	if d.state != StateRunning {
		return fmt.Errorf("compare: step while %s: %w", d.state, dynamo.ErrState)
	}
	if d.step >= d.steps {
		return dynamo.ErrTraceExhausted
	}
	i := d.step
	t := float64(i) / float64(d.rate)

	live, err := d.sim.Step(d.cmd)
	if err != nil {
		return &dynamo.StepError{Step: i, Time: t, Wrapped: err}
	}

	target := d.trace.TargetAt(i)
	cmd, posErr, yawErr := d.opts.Controller.ComputeCommand(d.dt, live, target.Pos, target.Vel)

	control := dynamo.NewControlVector(target)
	ref := d.trace.SampleAt(i).VehicleState()
	traceTime := d.trace.TimestampAt(i)
	if err := d.rec.Log(dynamo.TrackReference, traceTime, ref, control); err != nil {
		return &dynamo.StepError{Step: i, Time: t, Wrapped: err}
	}
	if err := d.rec.Log(dynamo.TrackLive, t, live, control); err != nil {
		return &dynamo.StepError{Step: i, Time: t, Wrapped: err}
	}

	rec := dynamo.StepRecord{
		Step:      i,
		Time:      t,
		TraceTime: traceTime,
		Reference: ref,
		Live:      live,
		Target:    target,
		Command:   cmd,
		PosErr:    posErr,
		YawErr:    yawErr,
	}
	d.opts.Metrics.Observe(rec)
	for _, o := range d.opts.Observers {
		o.Observe(rec)
	}

	if i%d.rate == 0 {
		for _, r := range d.opts.Renderers {
			if err := r.Render(rec); err != nil {
				return &dynamo.StepError{Step: i, Time: t, Wrapped: fmt.Errorf("render: %w", err)}
			}
		}
		d.log.Debug("step", "i", i, "t", t, "z", live.Pos.Z, "pos_err", posErr, "yaw_err", yawErr)
	}

	d.cmd = cmd
	d.last = rec
	d.step++

	if err := d.pacer.Sync(ctx, i, d.startedAt, d.period); err != nil {
		return &dynamo.StepError{Step: i, Time: t, Wrapped: err}
	}
	return nil
}

// Run steps until the trace is exhausted or ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := d.Step(ctx)
		if errors.Is(err, dynamo.ErrTraceExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Stop releases the simulator, finalizes the recorder and hands the export to
// every exporter. The driver is closed even when an exporter fails.
func (d *Driver) Stop(ctx context.Context) error {
	if d.state != StateRunning {
		return fmt.Errorf("compare: stop while %s: %w", d.state, dynamo.ErrState)
	}

	var errs []error
	if err := d.sim.Close(); err != nil {
		errs = append(errs, fmt.Errorf("compare: close simulator: %w", err))
	}
	d.rec.Finalize()
	d.state = StateClosed

	d.summary = Summary{
		Rate:           d.rate,
		Duration:       d.trace.Duration(),
		Steps:          d.step,
		TraceSamples:   d.trace.SampleCount(),
		AltitudeOffset: d.offset,
		Final:          d.last,
		Metrics:        d.opts.Metrics.Values(),
		Overruns:       d.pacer.Overruns(),
		StartedAt:      d.startedAt,
		Elapsed:        d.pacer.Now().Sub(d.startedAt),
	}

	snap := d.rec.Export()
	for _, e := range d.opts.Exporters {
		if err := e.Export(ctx, d.summary, snap); err != nil {
			errs = append(errs, fmt.Errorf("compare: export: %w", err))
		}
	}

	if c, ok := d.opts.Controller.(interface{ Diagnostics() control.Diagnostics }); ok {
		d.log.Debug("controller state", "integrals", c.Diagnostics())
	}
	d.log.Info("comparison finished",
		"steps", d.summary.Steps,
		"final_z", d.last.Live.Pos.Z,
		"pos_err", d.last.PosErr,
		"overruns", d.summary.Overruns)
	return errors.Join(errs...)
}
