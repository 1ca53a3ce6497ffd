package watchdog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bft-labs/canary/pkg/log"
)

// ExitCode is the process exit status used when a terminating watchdog triggers.
// Supervisors can use it to tell a watchdog kill apart from other failures.
const ExitCode = 87

// MaxWakeInterval bounds how long the background loop sleeps between checks.
const MaxWakeInterval = time.Second

// minWakeInterval keeps the loop from spinning when a deadline is imminent.
const minWakeInterval = time.Millisecond

// Config describes a single watchdog run.
type Config struct {
	// Timeout is the longest tolerated gap between pings. Must be positive.
	Timeout time.Duration

	// Terminate selects the TerminateProcess action when Action is nil,
	// and the fatal wording of the diagnostic line.
	Terminate bool

	// Report writes a single human-readable diagnostic line to Output
	// when the run triggers.
	Report bool

	// RepeatReport re-emits the diagnostic line on every check that still
	// finds the run timed out after it triggered. The action itself never
	// runs twice. Only meaningful with Report set.
	RepeatReport bool

	// WakeInterval caps the loop's sleep between checks.
	// Zero or negative means MaxWakeInterval; larger values are clamped to it.
	WakeInterval time.Duration

	// Action runs once when the run triggers.
	// Defaults to TerminateProcess if Terminate is set, otherwise ReportOnly.
	Action Action

	// Output receives diagnostic lines. Defaults to os.Stderr.
	Output io.Writer

	// Logger receives lifecycle transitions and the structured trigger event.
	// Defaults to a no-op logger.
	Logger log.Logger

	// Events is notified of lifecycle changes, pings, triggers and stops.
	Events EventHandler

	// Launch starts the background loop. It must arrange for loop to run
	// concurrently and return promptly; a non-nil error aborts Start with ErrLaunch.
	// Defaults to running loop in a new goroutine.
	Launch func(loop func()) error
}

// Validate reports whether c describes a usable run.
// The returned error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var err error
	if c.Timeout <= 0 {
		err = errors.Join(err, fmt.Errorf("timeout must be positive; got %s", c.Timeout))
	}
	if c.RepeatReport && !c.Report {
		err = errors.Join(err, errors.New("repeat report requires report"))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// withDefaults validates c and fills in every optional field.
func (c Config) withDefaults() (Config, error) {
	if err := c.Validate(); err != nil {
		return c, err
	}

	if c.WakeInterval <= 0 || c.WakeInterval > MaxWakeInterval {
		c.WakeInterval = MaxWakeInterval
	}
	if c.Action == nil {
		if c.Terminate {
			c.Action = TerminateProcess()
		} else {
			c.Action = ReportOnly()
		}
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	c.Logger = log.OrNoop(c.Logger)
	if c.Events == nil {
		c.Events = BaseEventHandler{}
	}
	if c.Launch == nil {
		c.Launch = goLaunch
	}
	return c, nil
}

func goLaunch(loop func()) error {
	go loop()
	return nil
}
