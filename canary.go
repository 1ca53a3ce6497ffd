// Package canary is a liveness watchdog for a single unit of work.
//
// The host starts one watchdog per process, pings it from the code path that
// must stay alive and stops it when the work completes:
//
//	h, err := canary.Start(canary.Options{Timeout: 5000, Terminate: true, Report: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for job := range jobs {
//	    process(job)
//	    _ = canary.Ping(h)
//	}
//	triggered, err := canary.Stop(h)
//
// If no ping arrives within Timeout milliseconds the watchdog triggers once.
// With Terminate set the process exits with status [ExitCode]; otherwise the
// trigger is advisory and reported by Stop.
//
// Embedding applications that need plugins, custom actions or an explicit
// logger use [github.com/bft-labs/canary/pkg/canary] and
// [github.com/bft-labs/canary/pkg/watchdog] directly.
package canary

import (
	"fmt"
	"math"
	"time"

	"github.com/bft-labs/canary/pkg/watchdog"
)

// ExitCode is the process exit status of a terminating watchdog.
const ExitCode = watchdog.ExitCode

// Handle identifies the active watchdog. It is returned by Start and
// must be passed to Ping and Stop.
type Handle = watchdog.Handle

// Errors returned by Start, Ping and Stop.
var (
	ErrInvalidConfig  = watchdog.ErrInvalidConfig
	ErrAlreadyRunning = watchdog.ErrAlreadyRunning
	ErrNotRunning     = watchdog.ErrNotRunning
	ErrLaunch         = watchdog.ErrLaunch
)

// maxTimeoutMs is the largest millisecond timeout representable as a time.Duration.
const maxTimeoutMs = int64(math.MaxInt64 / int64(time.Millisecond))

// Options configures the process-wide watchdog.
type Options struct {
	// Timeout in milliseconds. Must be positive and fit in a time.Duration.
	Timeout int64

	// Terminate exits the process with ExitCode when the watchdog triggers.
	Terminate bool

	// Report writes one diagnostic line to stderr when the watchdog triggers.
	Report bool
}

func (o Options) config() (watchdog.Config, error) {
	if o.Timeout <= 0 {
		return watchdog.Config{}, fmt.Errorf("%w: timeout must be positive; got %dms", ErrInvalidConfig, o.Timeout)
	}
	if o.Timeout > maxTimeoutMs {
		return watchdog.Config{}, fmt.Errorf("%w: timeout %dms exceeds %dms", ErrInvalidConfig, o.Timeout, maxTimeoutMs)
	}
	return watchdog.Config{
		Timeout:   time.Duration(o.Timeout) * time.Millisecond,
		Terminate: o.Terminate,
		Report:    o.Report,
	}, nil
}

// Start launches the process-wide watchdog.
// It fails with ErrAlreadyRunning while another watchdog is active.
func Start(opts Options) (Handle, error) {
	cfg, err := opts.config()
	if err != nil {
		return Handle{}, err
	}
	return watchdog.Default().Start(cfg)
}

// Ping records a sign of life. It is safe to call from any goroutine.
func Ping(h Handle) error {
	return watchdog.Default().Ping(h)
}

// Stop stops the watchdog, waits for its background loop to exit and
// reports whether it ever triggered.
func Stop(h Handle) (bool, error) {
	return watchdog.Default().Stop(h)
}

// IsStateError reports whether err comes from calling Start, Ping or Stop
// in the wrong lifecycle state.
func IsStateError(err error) bool {
	return watchdog.IsStateError(err)
}
