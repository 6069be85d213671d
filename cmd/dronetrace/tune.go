package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/dronetrace/internal/config"
	"github.com/san-kum/dronetrace/internal/optim"
	"github.com/san-kum/dronetrace/internal/viz"
)

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	axes := make([]optim.Axis, 0, len(params))
	for _, p := range params {
		ax, err := optim.ParseAxis(p)
		if err != nil {
			return err
		}
		axes = append(axes, ax)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := optim.NewGridSearch(axes, metric, workers)
	fmt.Printf("evaluating %d gain sets on %s...\n", len(g.Points()), traceName(cfg))
	start := time.Now()
	trials, err := g.Search(ctx, cfg, optim.Headless)
	if err != nil {
		return err
	}
	fmt.Printf("done in %v\n\n", time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\tGAINS\n", metric)
	for i, t := range trials {
		if i >= top && top > 0 {
			break
		}
		value := fmt.Sprintf("%.6f", t.Value)
		if t.Err != nil {
			value = "failed: " + t.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, value, t.Params)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best := trials[0]
	fmt.Printf("\nbest: %s (%s %.6f)\n", viz.Highlight(best.Params.String()), metric, best.Value)
	if saveConfig == "" {
		return nil
	}
	tuned, err := optim.Apply(cfg, best.Params)
	if err != nil {
		return err
	}
	if err := config.Save(saveConfig, tuned); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", saveConfig)
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("running %d seeds from %d (noise pos %g, vel %g, rpy %g)...\n",
		runs, cfg.Seed, cfg.Noise.Pos, cfg.Noise.Vel, cfg.Noise.RPY)
	sums, err := optim.NewEnsemble(runs, cfg.Seed, workers).Run(ctx, cfg, optim.Headless)
	if err != nil {
		return err
	}

	stats := optim.Aggregate(sums)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTD\tMIN\tMAX")
	for _, name := range optim.MetricNames(stats) {
		st := stats[name]
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.6f\t%.6f\n", name, st.Mean, st.StdDev, st.Min, st.Max)
	}
	return w.Flush()
}
