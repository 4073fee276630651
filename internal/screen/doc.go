// Package screen is the kiosk's display state machine.
//
// Controller owns the current Mode and is the only place that changes it.
// Every change goes through transition, which runs the exit action of the
// old mode and the entry action of the new one. Entry actions establish the
// complete timer set of a mode (scan polling, ad refresh and rotation,
// screen timeouts), so a mode is always entered in the same shape no matter
// where it was reached from.
//
// Controller is not safe for concurrent use. All methods, including those
// triggered by timers and I/O completions, run on the loop goroutine.
package screen
