package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/config"
	"github.com/san-kum/dronetrace/internal/experiment"
	"github.com/san-kum/dronetrace/internal/export"
	"github.com/san-kum/dronetrace/internal/logging"
	"github.com/san-kum/dronetrace/internal/recorder"
	"github.com/san-kum/dronetrace/internal/storage"
	"github.com/san-kum/dronetrace/internal/viz"
)

const liveFPS = 30

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.OutputFolder, os.Stderr)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return err
	}
	opts, err := exp.Options(log.Logger)
	if err != nil {
		return err
	}

	// The trace is loaded up front so the live view knows the run length.
	tr, err := exp.TraceLoader()()
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	opts.Trace = compare.FromTrace(tr)

	st := storage.New(cfg.OutputFolder)
	var runID string
	opts.Exporters = append(opts.Exporters, st.Exporter(storage.RunMetadata{
		Drone:      cfg.Drone,
		Physics:    cfg.Physics,
		Controller: cfg.Controller,
		TraceFile:  cfg.TraceFile,
		Seed:       cfg.Seed,
	}, func(id string) { runID = id }))

	var plotPaths []string
	if cfg.Plot {
		opts.Exporters = append(opts.Exporters, compare.ExporterFunc(func(_ context.Context, _ compare.Summary, snap recorder.Snapshot) error {
			if runID == "" {
				return errors.New("plot: run was not saved")
			}
			paths, err := export.PlotRun(filepath.Join(st.RunDir(runID), "plots"), snap, "png")
			plotPaths = paths
			return err
		}))
	}

	var frames *export.FrameRecorder
	if cfg.RecordVideo {
		dir := filepath.Join(cfg.OutputFolder, "video-"+time.Now().Format("01.02.2006_15.04.05"))
		if frames, err = export.NewFrameRecorder(dir); err != nil {
			return err
		}
		opts.Observers = append(opts.Observers, frames)
		opts.Renderers = append(opts.Renderers, frames)
	}

	log.Info("run configured",
		"drone", cfg.Drone,
		"physics", cfg.Physics,
		"controller", cfg.Controller,
		"trace", traceName(cfg),
		"gui", cfg.Interactive(),
		"colab", cfg.Colab)

	var summary compare.Summary
	var snap recorder.Snapshot
	if cfg.Interactive() {
		summary, snap, err = runLive(ctx, cfg, opts, tr.Steps(), tr.Rate())
	} else {
		opts.Renderers = append(opts.Renderers, viz.NewPrintout(os.Stdout, tr.Steps()))
		summary, snap, err = experiment.Drive(ctx, opts)
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("run interrupted", "steps", summary.Steps)
		err = nil
	}
	if err != nil {
		return err
	}

	if !cfg.Interactive() {
		fmt.Println(viz.RenderSummary(summary))
		if cfg.Plot && !cfg.Colab {
			fmt.Println(viz.AltitudeChart(snap, 80, 10))
		}
	}
	if runID != "" {
		fmt.Printf("run id: %s\n", runID)
	}
	for _, p := range plotPaths {
		fmt.Printf("wrote %s\n", p)
	}
	if frames != nil {
		fmt.Printf("wrote %d frames\n", len(frames.Frames()))
	}
	return nil
}

// runLive runs the loop and the bubbletea view side by side. Quitting the
// view cancels the loop; the loop finishing closes the view.
func runLive(ctx context.Context, cfg *config.Config, opts compare.Options, steps, rate int) (compare.Summary, recorder.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := strings.Join([]string{cfg.Drone, cfg.Physics, cfg.Controller}, " / ")
	p := tea.NewProgram(viz.NewModel(title, steps, cancel), tea.WithOutput(os.Stdout))
	opts.Observers = append(opts.Observers, viz.NewProgramObserver(p, rate, liveFPS))

	var (
		summary compare.Summary
		snap    recorder.Snapshot
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		final, err := p.Run()
		if m, ok := final.(viz.Model); !ok || !viewDone(m) {
			// the view closed first; stop the loop so the partial run is saved
			cancel()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		var err error
		summary, snap, err = experiment.Drive(ctx, opts)
		p.Send(viz.DoneMsg{Summary: summary, Err: err})
		return err
	})
	return summary, snap, eg.Wait()
}

func viewDone(m viz.Model) bool {
	done, _ := m.Done()
	return done
}

func traceName(cfg *config.Config) string {
	if cfg.TraceFile == "" {
		return "built-in " + string(cfg.Profile.Kind)
	}
	return filepath.Base(cfg.TraceFile)
}
