// Package optim repeats comparison runs: a grid search over controller gains
// and a seeded ensemble over sensor noise.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/config"
	"github.com/san-kum/dronetrace/internal/control"
	"github.com/san-kum/dronetrace/internal/experiment"
)

// Evaluate runs one comparison for cfg.
type Evaluate func(ctx context.Context, cfg *config.Config) (compare.Summary, error)

// Headless evaluates cfg with a fresh registry, without pacing or logging.
func Headless(ctx context.Context, cfg *config.Config) (compare.Summary, error) {
	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return compare.Summary{}, err
	}
	sum, _, err := exp.Run(ctx, nil)
	return sum, err
}

// Axis is one gain and the values to try for it.
type Axis struct {
	Name   string
	Values []float64
}

// ParseAxis reads "name=v1,v2,...".
func ParseAxis(s string) (Axis, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Axis{}, fmt.Errorf("axis %q: want name=v1,v2,...", s)
	}
	var g control.Gains
	if err := g.Set(name, 0); err != nil {
		return Axis{}, err
	}
	ax := Axis{Name: name}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Axis{}, fmt.Errorf("axis %s: %w", name, err)
		}
		ax.Values = append(ax.Values, v)
	}
	return ax, nil
}

// Point assigns one value per axis.
type Point map[string]float64

func (p Point) String() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

// Trial is one evaluated point. Failed trials keep their error, score +Inf
// and sort after every successful one.
type Trial struct {
	Params Point
	Value  float64
	Err    error
}

type GridSearch struct {
	axes    []Axis
	metric  string
	workers int
}

// NewGridSearch minimizes metric over the product of axes, evaluating up to
// workers points at once. workers <= 0 uses one per CPU.
func NewGridSearch(axes []Axis, metric string, workers int) *GridSearch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &GridSearch{axes: axes, metric: metric, workers: workers}
}

// Points enumerates the grid, last axis fastest.
func (g *GridSearch) Points() []Point {
	points := []Point{{}}
	for _, ax := range g.axes {
		next := make([]Point, 0, len(points)*len(ax.Values))
		for _, p := range points {
			for _, v := range ax.Values {
				q := make(Point, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[ax.Name] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

// Search evaluates every point on a copy of base with the point's gains
// applied. Trials come back sorted best first. It fails only when ctx ends or
// no trial succeeds.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, eval Evaluate) ([]Trial, error) {
	points := g.Points()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range points {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trials[i] = g.trial(ctx, base, p, eval)
			if errors.Is(trials[i].Err, context.Canceled) || errors.Is(trials[i].Err, context.DeadlineExceeded) {
				return trials[i].Err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool {
		if (trials[i].Err == nil) != (trials[j].Err == nil) {
			return trials[i].Err == nil
		}
		return trials[i].Value < trials[j].Value
	})
	if len(trials) == 0 {
		return nil, errors.New("grid search: empty grid")
	}
	if trials[0].Err != nil {
		return trials, fmt.Errorf("grid search: all %d trials failed: %w", len(trials), trials[0].Err)
	}
	return trials, nil
}

func (g *GridSearch) trial(ctx context.Context, base *config.Config, p Point, eval Evaluate) Trial {
	t := Trial{Params: p, Value: math.Inf(1)}

	cfg, err := Apply(base, p)
	if err != nil {
		t.Err = err
		return t
	}
	sum, err := eval(ctx, cfg)
	if err != nil {
		t.Err = err
		return t
	}
	v, ok := sum.Metrics[g.metric]
	if !ok {
		t.Err = fmt.Errorf("metric %s not reported", g.metric)
		return t
	}
	if !math.IsNaN(v) {
		t.Value = v
	}
	return t
}

// Apply returns a copy of base with p's gains set.
func Apply(base *config.Config, p Point) (*config.Config, error) {
	cfg := base.Clone()
	gains := control.DefaultGains()
	if cfg.Gains != nil {
		gains = *cfg.Gains
	}
	for name, v := range p {
		if err := gains.Set(name, v); err != nil {
			return nil, err
		}
	}
	cfg.Gains = &gains
	return cfg, nil
}
