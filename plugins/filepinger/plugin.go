// Package filepinger turns a heartbeat file into watchdog pings.
// Every write, create or touch of the file pings the active run, so a
// process that cannot link against canary can keep it alive by touching
// a path on disk.
package filepinger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/log"
)

// Config holds configuration options for the file pinger plugin.
type Config struct {
	// Path is the heartbeat file. Its directory must exist.
	Path string

	// Create creates an empty heartbeat file on Initialize if it is missing.
	Create bool
}

// Plugin pings the watchdog whenever the heartbeat file changes.
type Plugin struct {
	path   string
	create bool

	mu     sync.Mutex
	pinger canary.Pinger
	logger log.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a file pinger plugin for cfg.
func New(cfg Config) *Plugin {
	return &Plugin{
		path:   filepath.Clean(cfg.Path),
		create: cfg.Create,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "filepinger"
}

// Initialize starts watching the heartbeat file's directory.
// The directory is watched rather than the file so editors and tools that
// replace the file by rename keep pinging.
func (p *Plugin) Initialize(ctx context.Context, cfg canary.PluginConfig) error {
	if p.path == "." || p.path == "" {
		return errors.New("filepinger: heartbeat path not configured")
	}

	if p.create {
		f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("filepinger: create heartbeat file: %w", err)
		}
		_ = f.Close()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filepinger: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("filepinger: watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.pinger = cfg.Pinger
	p.logger = log.OrNoop(cfg.Logger)
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("file pinger watching heartbeat file", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and waits for the loop to exit.
func (p *Plugin) Shutdown(context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Chmod) {
				continue
			}
			if err := p.pinger.Ping(); err != nil {
				p.logger.Debug("file pinger: ping rejected", log.Err(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("file pinger: watcher error", log.Err(err))
		}
	}
}

// WithFilePinger returns a canary Option that registers a file pinger.
//
// Usage:
//
//	c, err := canary.New(cfg,
//	    filepinger.WithFilePinger(filepinger.Config{Path: "/run/worker.alive", Create: true}),
//	)
func WithFilePinger(cfg Config) canary.Option {
	return canary.WithPlugin(New(cfg))
}

var _ canary.Plugin = (*Plugin)(nil)
