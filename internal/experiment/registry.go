package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dronetrace/internal/compare"
	"github.com/san-kum/dronetrace/internal/control"
	"github.com/san-kum/dronetrace/internal/metrics"
	"github.com/san-kum/dronetrace/internal/physics"
)

// Drone pairs an airframe with the mixer matching its rotor layout.
type Drone struct {
	Name   string
	Params physics.Params
	Mixer  control.Mixer
}

// HoverRPM is the equal rotor speed that balances gravity.
func (d Drone) HoverRPM() float64 {
	return physics.NewQuadrotor(d.Params, physics.Effects{}).HoverRPM()
}

type Registry struct {
	drones      map[string]func() Drone
	controllers map[string]func(Drone, control.Gains) compare.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		drones:      make(map[string]func() Drone),
		controllers: make(map[string]func(Drone, control.Gains) compare.Controller),
	}

	r.drones["cf2x"] = func() Drone { return Drone{Name: "cf2x", Params: physics.CF2X(), Mixer: control.MixerX} }
	r.drones["cf2p"] = func() Drone { return Drone{Name: "cf2p", Params: physics.CF2P(), Mixer: control.MixerPlus} }

	r.controllers["dslpid"] = func(d Drone, g control.Gains) compare.Controller {
		return control.NewCascaded(control.Config{
			Gains:  g,
			PWM:    control.DefaultPWM(),
			Mixer:  d.Mixer,
			KF:     d.Params.KF,
			Weight: d.Params.Mass * d.Params.Gravity,
		})
	}
	r.controllers["hover"] = func(d Drone, g control.Gains) compare.Controller {
		return control.NewHover(d.HoverRPM())
	}

	return r
}

func (r *Registry) GetDrone(name string) (Drone, error) {
	fn, ok := r.drones[name]
	if !ok {
		return Drone{}, fmt.Errorf("unknown drone: %s (available: %v)", name, r.ListDrones())
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, d Drone, g control.Gains) (compare.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s (available: %v)", name, r.ListControllers())
	}
	return fn(d, g), nil
}

func (r *Registry) ListDrones() []string { return sortedKeys(r.drones) }

func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

func (r *Registry) ListPhysics() []string {
	modes := physics.Modes()
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

// DefaultMetrics bounds saturation by the PWM range, capped at the airframe's
// top speed.
func (r *Registry) DefaultMetrics(d Drone) metrics.Set {
	pwm := control.DefaultPWM()
	return metrics.Default(pwm.RPM(pwm.Min), min(pwm.RPM(pwm.Max), d.Params.MaxRPM))
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
