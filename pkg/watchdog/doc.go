// Package watchdog implements a liveness watchdog timer.
//
// A watchdog run is started through a [Guard] with a [Config]. The run owns a
// background loop that compares the time since the most recent ping against
// the configured timeout. The caller pings the run from the code path being
// supervised; if no ping arrives for longer than the timeout, the run is
// triggered exactly once and its [Action] executes. The default action for
// Terminate runs halts the process with [ExitCode].
//
// A Guard admits at most one active run. Start returns a [Handle] that must be
// passed to Ping and Stop; a handle from an earlier run is rejected with
// [ErrNotRunning]. Stop wakes the loop immediately, waits for it to exit,
// and reports whether the run was ever triggered.
//
// The loop sleeps until the next possible deadline but never longer than
// [MaxWakeInterval], so Stop returns promptly regardless of the timeout and
// detection happens shortly after the deadline passes.
package watchdog
