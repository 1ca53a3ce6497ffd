// Package lifecycle provides the state machine behind the watchdog's
// single-instance guard.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, emitter)
//
//	if !manager.CanStart() {
//	    return lifecycle.ErrAlreadyRunning
//	}
//	if err := manager.TransitionTo(lifecycle.StateStarting, "Start() called"); err != nil {
//	    return err
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopped (launch failure)
//   - Running -> Stopping
//   - Stopping -> Stopped
//
// An instance that has left Running never returns to it; a later Start
// begins a new run from Stopped.
package lifecycle
