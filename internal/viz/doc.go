// Package viz renders a running comparison in the terminal.
//
//   - [Printout]: a compare.Renderer writing one styled status block per
//     simulated second
//   - [Model]: a Bubble Tea view fed through [ProgramObserver], with a braille
//     [SideView] of both paths and an altitude chart
//   - [RenderSummary] and [AltitudeChart]: end-of-run output for the CLI
//
// # Key Bindings
//
//	Q, Esc, Ctrl+C - stop the run and quit
package viz
