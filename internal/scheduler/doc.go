// Package scheduler owns every named timer of the kiosk.
//
// A Scheduler keeps at most one live timer per name. Starting a name that is
// already active replaces it; clearing an idle name is a no-op. Each entry
// carries a generation id so that a callback already queued by the clock when
// the entry was cleared or replaced is dropped instead of running.
//
// Callbacks are handed to a poster (normally loop.Loop.Post) so they run on
// the single execution context. Tests use ManualClock with a nil poster to
// fire callbacks synchronously inside ManualClock.Advance.
package scheduler
