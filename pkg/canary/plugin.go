package canary

import (
	"context"
	"time"

	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// Pinger records a sign of life on the active watchdog run.
type Pinger interface {
	Ping() error
}

// PluginConfig is handed to every plugin on Initialize.
type PluginConfig struct {
	// Pinger keeps the run alive.
	Pinger Pinger

	// Status returns a snapshot of the active run.
	Status func() (watchdog.Status, bool)

	// Timeout is the run's ping timeout.
	Timeout time.Duration

	Logger log.Logger
}

// Plugin extends a Canary with a heartbeat source or an observer.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called by Start after the watchdog is armed.
	// ctx is cancelled when the Canary stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called by Stop before the watchdog is stopped.
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops.
// Embed it and override the methods of interest.
type BasePlugin struct{}

func (BasePlugin) Name() string                                  { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
