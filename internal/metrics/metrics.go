// Package metrics summarizes how closely a live run tracked its reference.
package metrics

import (
	"sort"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Metric folds step records into a single value.
type Metric interface {
	Name() string
	Observe(rec dynamo.StepRecord)
	Value() float64
	Reset()
}

// Set fans each step out to several metrics.
type Set []Metric

func (s Set) Observe(rec dynamo.StepRecord) {
	for _, m := range s {
		m.Observe(rec)
	}
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Values returns every metric keyed by name.
func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

// Names returns metric names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for _, m := range s {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

// Default is the set reported for every comparison run.
func Default(minRPM, maxRPM float64) Set {
	return Set{
		NewTrackingRMSE(),
		NewMaxTrackingError(),
		NewTargetError(),
		NewControlEffort(),
		NewSaturation(minRPM, maxRPM),
		NewStability(0.5),
	}
}
