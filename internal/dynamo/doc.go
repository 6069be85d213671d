// Package dynamo provides the value types shared by the trace comparison loop.
//
// The package defines fixed-layout, named-field records and the numeric
// primitives used to integrate vehicle dynamics:
//
//   - [VehicleState]: live 20-field vehicle record
//   - [TraceSample]: recorded 20-field reference record
//   - [ControlTarget]: position and velocity setpoint
//   - [ActuatorCommand]: per-rotor speed command
//   - [ControlVector]: 12-field control history logged with each record
//   - [State], [System], [Integrator]: raw ODE integration primitives
//
// # Layouts
//
// Records convert to and from flat vectors only through [VehicleState.Vector],
// [VehicleStateFromVector] and [TraceSampleFromRow]. Nothing else in the
// module slices records positionally.
package dynamo
