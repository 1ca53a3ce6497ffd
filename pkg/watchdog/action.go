package watchdog

import "os"

// Action is executed once when a watchdog run triggers.
// It runs on the watchdog's background loop and Stop waits for it to return,
// so an Action must not call Stop on its own run.
type Action interface {
	Trigger(TriggerEvent)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(TriggerEvent)

// Trigger calls f(ev).
func (f ActionFunc) Trigger(ev TriggerEvent) { f(ev) }

// ReportOnly returns an advisory Action. The run stays triggered and keeps
// watching until Stop.
func ReportOnly() Action {
	return ActionFunc(func(TriggerEvent) {})
}

// TerminateProcess returns an Action that halts the process with ExitCode.
// It does not return.
func TerminateProcess() Action {
	return ActionFunc(func(TriggerEvent) {
		exitProcess(ExitCode)
	})
}

// Callback returns an Action invoking fn.
func Callback(fn func(TriggerEvent)) Action {
	return ActionFunc(fn)
}

// exitProcess is swapped in tests that exercise TerminateProcess in-process.
var exitProcess = os.Exit
