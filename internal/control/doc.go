// Package control provides the flight controllers the comparison loop can
// drive a vehicle with.
//
//   - [Cascaded]: position loop feeding an attitude loop, mixed to rotor speeds
//   - [Hover]: open-loop constant rotor speed, used as a baseline
//
// # Usage
//
//	ctrl := control.NewCascaded(control.Config{
//	    Gains: control.DefaultGains(), PWM: control.DefaultPWM(),
//	    Mixer: control.MixerX, KF: 3.16e-10, Weight: 0.027 * 9.8,
//	})
//	cmd, posErr, yawErr := ctrl.ComputeCommand(dt, state, targetPos, targetVel)
//
// Both controllers carry their history in the struct and expose Reset.
package control
