// Package experiment assembles a comparison run from configuration: the
// drone model, physics mode, controller and reference trace.
package experiment

import (
	"context"
	"errors"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/config"
	"github.com/san-kum/dronetrace/internal/control"
	"github.com/san-kum/dronetrace/internal/physics"
	"github.com/san-kum/dronetrace/internal/recorder"
	"github.com/san-kum/dronetrace/internal/trace"
)

type Experiment struct {
	cfg   *config.Config
	reg   *Registry
	drone Drone
	mode  physics.Mode
}

// New resolves every name in cfg against reg.
func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := physics.ParseMode(cfg.Physics)
	if err != nil {
		return nil, err
	}
	drone, err := reg.GetDrone(cfg.Drone)
	if err != nil {
		return nil, err
	}
	for name, v := range cfg.DroneParams {
		if err := drone.Params.Set(name, v); err != nil {
			return nil, err
		}
	}
	if _, err := reg.GetController(cfg.Controller, drone, control.DefaultGains()); err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, reg: reg, drone: drone, mode: mode}, nil
}

func (e *Experiment) Drone() Drone           { return e.drone }
func (e *Experiment) Mode() physics.Mode     { return e.mode }
func (e *Experiment) Config() *config.Config { return e.cfg }

// TraceLoader reads the configured trace file, or synthesizes one from the
// configured profile when no file is set.
func (e *Experiment) TraceLoader() compare.TraceLoader {
	if e.cfg.TraceFile != "" {
		return compare.FromFile(e.cfg.TraceFile)
	}
	profile := e.cfg.Profile
	return func() (*trace.Trace, error) { return trace.Synthesize(profile) }
}

func (e *Experiment) SimulatorFactory() compare.SimulatorFactory {
	cfg := e.cfg
	return func(rate int) (compare.Simulator, error) {
		sim, err := physics.NewSimulator(physics.SimConfig{
			Params:     e.drone.Params,
			Mode:       e.mode,
			Freq:       rate,
			Substeps:   cfg.Substeps,
			InitialPos: vec(cfg.InitialXYZ),
			InitialRPY: vec(cfg.InitialRPY),
			Seed:       cfg.Seed,
			Noise:      cfg.Noise,
		})
		if err != nil {
			return nil, err
		}
		return sim, nil
	}
}

func (e *Experiment) Controller() (compare.Controller, error) {
	gains := control.DefaultGains()
	if e.cfg.Gains != nil {
		gains = *e.cfg.Gains
	}
	return e.reg.GetController(e.cfg.Controller, e.drone, gains)
}

// Options assembles driver options. Callers add renderers, observers and
// exporters.
func (e *Experiment) Options(log *slog.Logger) (compare.Options, error) {
	ctrl, err := e.Controller()
	if err != nil {
		return compare.Options{}, err
	}
	return compare.Options{
		Trace:      e.TraceLoader(),
		Simulator:  e.SimulatorFactory(),
		Controller: ctrl,
		Pacing:     e.cfg.Interactive(),
		Metrics:    e.reg.DefaultMetrics(e.drone),
		Logger:     log,
	}, nil
}

// Run drives one headless comparison with the default options.
func (e *Experiment) Run(ctx context.Context, log *slog.Logger) (compare.Summary, recorder.Snapshot, error) {
	opts, err := e.Options(log)
	if err != nil {
		return compare.Summary{}, nil, err
	}
	opts.Pacing = false
	return Drive(ctx, opts)
}

// Drive starts, runs and stops one driver. Stop always runs once Start has
// succeeded so the recorded part of an interrupted run is still exported.
func Drive(ctx context.Context, opts compare.Options) (compare.Summary, recorder.Snapshot, error) {
	d, err := compare.New(opts)
	if err != nil {
		return compare.Summary{}, nil, err
	}
	if err := d.Start(ctx); err != nil {
		return compare.Summary{}, nil, err
	}
	runErr := d.Run(ctx)
	stopErr := d.Stop(context.WithoutCancel(ctx))
	return d.Summary(), d.Recorder().Export(), errors.Join(runErr, stopErr)
}

func vec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }
