package canary

import (
	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// Option configures optional behavior of a Canary.
type Option func(*options)

type options struct {
	logger        log.Logger
	eventHandlers []watchdog.EventHandler
	plugins       []Plugin
	guard         *watchdog.Guard
}

// WithLogger sets the logger used by the Canary, its watchdog run and its plugins.
// If not provided, the logger from the watchdog config is used, or a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler adds a handler for watchdog events.
// Handlers are called synchronously in registration order.
func WithEventHandler(handler watchdog.EventHandler) Option {
	return func(o *options) {
		if handler != nil {
			o.eventHandlers = append(o.eventHandlers, handler)
		}
	}
}

// WithPlugin registers a plugin to be initialized when the Canary starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithGuard runs the watchdog under g instead of the process-wide guard.
func WithGuard(g *watchdog.Guard) Option {
	return func(o *options) {
		o.guard = g
	}
}
