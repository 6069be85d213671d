// Package physics provides the quadrotor model the comparison loop drives.
//
// [Quadrotor] implements [dynamo.System] with rotor speeds as inputs, and
// [Simulator] wraps it behind a fixed-rate Reset/Step/Close lifecycle:
//
//	sim, _ := physics.NewSimulator(physics.SimConfig{Params: physics.CF2X(), Freq: 240})
//	state, _ := sim.Reset()
//	state, _ = sim.Step(cmd)
//
// The [Mode] picks the integrator and the optional ground-effect and rotor
// drag terms.
package physics
