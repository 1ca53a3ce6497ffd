package watchdog

import (
	"errors"

	"github.com/bft-labs/canary/pkg/lifecycle"
)

// Errors returned by the watchdog API; check them with errors.Is.
var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("canary: invalid watchdog configuration")

	// ErrAlreadyRunning is returned by Start while another run is active.
	ErrAlreadyRunning = lifecycle.ErrAlreadyRunning

	// ErrNotRunning is returned by Ping and Stop when no run is active,
	// or when the handle does not belong to the active run.
	ErrNotRunning = lifecycle.ErrNotRunning

	// ErrLaunch is returned when the background loop could not be launched.
	ErrLaunch = errors.New("canary: failed to launch watchdog loop")
)

// IsStateError reports whether err was caused by calling an operation
// that is invalid for the current lifecycle state.
func IsStateError(err error) bool {
	return errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrNotRunning)
}
