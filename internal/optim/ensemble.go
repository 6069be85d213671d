package optim

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/config"
)

// Ensemble repeats one configuration with consecutive noise seeds.
type Ensemble struct {
	runs      int
	seedStart int64
	workers   int
}

func NewEnsemble(runs int, seedStart int64, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{runs: runs, seedStart: seedStart, workers: workers}
}

// Run returns one summary per seed, in seed order. The first failing run
// cancels the rest.
func (e *Ensemble) Run(ctx context.Context, base *config.Config, eval Evaluate) ([]compare.Summary, error) {
	if e.runs <= 0 {
		return nil, fmt.Errorf("ensemble: need at least one run, got %d", e.runs)
	}
	results := make([]compare.Summary, e.runs)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i := range results {
		eg.Go(func() error {
			cfg := base.Clone()
			cfg.Seed = e.seedStart + int64(i)
			sum, err := eval(ctx, cfg)
			if err != nil {
				return fmt.Errorf("ensemble run %d (seed %d): %w", i, cfg.Seed, err)
			}
			results[i] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stats summarizes one metric across runs.
type Stats struct {
	Mean, StdDev, Min, Max float64
	N                      int
}

// Aggregate computes Stats for every metric reported by any run.
func Aggregate(sums []compare.Summary) map[string]Stats {
	values := map[string][]float64{}
	for _, s := range sums {
		for name, v := range s.Metrics {
			values[name] = append(values[name], v)
		}
	}

	out := make(map[string]Stats, len(values))
	for name, xs := range values {
		st := Stats{N: len(xs), Min: floats.Min(xs), Max: floats.Max(xs)}
		st.Mean, st.StdDev = stat.MeanStdDev(xs, nil)
		if len(xs) == 1 {
			st.StdDev = 0
		}
		out[name] = st
	}
	return out
}

// MetricNames lists the aggregated metrics in order.
func MetricNames(stats map[string]Stats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
