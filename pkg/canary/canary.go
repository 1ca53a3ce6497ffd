package canary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// Canary is a liveness supervisor that can be embedded in other applications.
// Use New() to create an instance, then Start() to arm the watchdog.
type Canary struct {
	config  watchdog.Config
	guard   *watchdog.Guard
	logger  log.Logger
	plugins []Plugin

	// handle of the active run; nil while stopped. Read without the mutex by Ping.
	handle atomic.Pointer[watchdog.Handle]

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Canary for cfg. The instance is created stopped;
// call Start() to arm the watchdog.
// Returns an error wrapping watchdog.ErrInvalidConfig if cfg is invalid.
func New(cfg watchdog.Config, opts ...Option) (*Canary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger != nil {
		cfg.Logger = o.logger
	}
	cfg.Logger = log.OrNoop(cfg.Logger)

	handlers := make([]watchdog.EventHandler, 0, len(o.eventHandlers)+1)
	if cfg.Events != nil {
		handlers = append(handlers, cfg.Events)
	}
	handlers = append(handlers, o.eventHandlers...)
	for _, p := range o.plugins {
		if h, ok := p.(watchdog.EventHandler); ok {
			handlers = append(handlers, h)
		}
	}
	cfg.Events = buildEvents(handlers)

	guard := o.guard
	if guard == nil {
		guard = watchdog.Default()
	}

	return &Canary{
		config:  cfg,
		guard:   guard,
		logger:  cfg.Logger,
		plugins: o.plugins,
	}, nil
}

// Start arms the watchdog and initializes plugins.
// Returns immediately; the watchdog runs in the background until Stop.
// If a plugin fails to initialize, plugins already initialized are shut down,
// the watchdog is stopped and the plugin's error is returned.
func (c *Canary) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle.Load() != nil {
		return watchdog.ErrAlreadyRunning
	}

	h, err := c.guard.Start(c.config)
	if err != nil {
		return err
	}
	c.handle.Store(&h)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	pluginCfg := PluginConfig{
		Pinger:  c,
		Status:  c.Status,
		Timeout: c.config.Timeout,
		Logger:  c.logger,
	}
	for i, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			cancel()
			c.shutdownPlugins(c.plugins[:i])
			c.handle.Store(nil)
			if _, stopErr := c.guard.Stop(h); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	return nil
}

// Ping records a sign of life on the active run.
// It never blocks and is safe to call from any goroutine.
// Returns watchdog.ErrNotRunning if the Canary is not started.
func (c *Canary) Ping() error {
	h := c.handle.Load()
	if h == nil {
		return watchdog.ErrNotRunning
	}
	return c.guard.Ping(*h)
}

// Stop shuts plugins down in reverse order, stops the watchdog and reports
// whether it triggered during the run.
// Returns watchdog.ErrNotRunning if the Canary is not started.
func (c *Canary) Stop() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.handle.Load()
	if h == nil {
		return false, watchdog.ErrNotRunning
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.shutdownPlugins(c.plugins)

	c.handle.Store(nil)
	return c.guard.Stop(*h)
}

// Status returns a snapshot of the active run. The boolean is false while stopped.
func (c *Canary) Status() (watchdog.Status, bool) {
	h := c.handle.Load()
	st, ok := c.guard.Status()
	if !ok || h == nil || st.Handle != *h {
		return watchdog.Status{State: watchdog.StateStopped}, false
	}
	return st, true
}

func (c *Canary) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}
