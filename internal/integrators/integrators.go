// Package integrators advances a dynamo.System by one fixed step.
package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/dronetrace/internal/dynamo"
)

// Euler is the explicit first-order step used by the "dyn" physics mode.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// RK4 is the classic four-stage Runge-Kutta step. Stage buffers are reused
// across calls, so an RK4 value must not be shared between goroutines.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	offsets := [4]float64{0, 0.5, 0.5, 1}
	for stage := 0; stage < 4; stage++ {
		in := x
		if stage > 0 {
			h := dt * offsets[stage]
			for i := 0; i < n; i++ {
				r.scratch[i] = x[i] + h*r.k[stage-1][i]
			}
			in = r.scratch
		}
		copy(r.k[stage], dyn.Derive(in, u, t+dt*offsets[stage]))
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return result
}

var registry = map[string]func() dynamo.Integrator{
	"euler": func() dynamo.Integrator { return NewEuler() },
	"rk4":   func() dynamo.Integrator { return NewRK4() },
}

// Lookup returns a fresh integrator by name.
func Lookup(name string) (dynamo.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
