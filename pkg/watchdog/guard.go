package watchdog

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/canary/pkg/lifecycle"
	"github.com/bft-labs/canary/pkg/log"
)

// Handle identifies one watchdog run. The zero Handle never matches a run.
type Handle struct {
	id uuid.UUID
}

func newHandle() Handle {
	return Handle{id: uuid.New()}
}

// String returns the handle's identifier, or "none" for the zero Handle.
func (h Handle) String() string {
	if h.IsZero() {
		return "none"
	}
	return h.id.String()
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.id == uuid.Nil
}

// Status is a point-in-time view of the active run.
type Status struct {
	Handle    Handle
	State     State
	Timeout   time.Duration
	StartedAt time.Time
	LastPing  time.Time
	Triggered bool
}

// SinceLastPing returns how long ago the last ping was recorded, relative to now.
func (s Status) SinceLastPing(now time.Time) time.Duration {
	return now.Sub(s.LastPing)
}

// Guard admits at most one active watchdog run and mediates every
// operation on it.
//
// Start and Stop are serialized with each other. Ping never blocks:
// it reads the active run through an atomic pointer.
type Guard struct {
	mu        sync.Mutex
	lifecycle *lifecycle.Manager
	observer  *runObserver
	active    atomic.Pointer[timer]
}

// NewGuard returns an empty Guard.
//
// Most programs should use [Default], which preserves the one-watchdog-per-process
// convention. Separate guards are useful in tests and for isolated subsystems.
func NewGuard() *Guard {
	obs := &runObserver{}
	return &Guard{
		lifecycle: lifecycle.NewManager(nil, obs),
		observer:  obs,
	}
}

var defaultGuard = NewGuard()

// Default returns the process-wide Guard.
func Default() *Guard {
	return defaultGuard
}

// Start begins a new run described by cfg.
//
// It returns ErrAlreadyRunning if a run is active (the active run is not affected),
// an error wrapping ErrInvalidConfig if cfg fails validation,
// or an error wrapping ErrLaunch if the background loop could not be launched.
// In every error case the guard is left as it was.
func (g *Guard) Start(cfg Config) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lifecycle.CanStart() {
		return Handle{}, ErrAlreadyRunning
	}

	cfg, err := cfg.withDefaults()
	if err != nil {
		return Handle{}, err
	}

	h := newHandle()
	g.observer.set(h, cfg.Logger, cfg.Events)

	if err := g.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return Handle{}, err
	}

	t := newTimer(h, cfg)
	if err := t.start(); err != nil {
		cfg.Logger.Error("failed to launch watchdog loop", log.Err(err))
		_ = g.lifecycle.TransitionTo(StateStopped, "launch failed")
		return Handle{}, err
	}

	g.active.Store(t)
	_ = g.lifecycle.TransitionTo(StateRunning, "watchdog loop launched")

	cfg.Logger.Debug("watchdog started",
		log.String("handle", h.String()),
		log.Millis("timeout_ms", cfg.Timeout),
		log.Bool("terminate", cfg.Terminate),
		log.Bool("report", cfg.Report),
	)
	return h, nil
}

// Stop ends the run identified by h. It wakes the background loop, waits
// for it to exit and reports whether the run ever triggered.
// Afterwards a new Start is accepted.
//
// Stop returns ErrNotRunning if no run is active or h belongs to another run.
func (g *Guard) Stop(h Handle) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := g.lookup(h)
	if err != nil {
		return false, err
	}

	if err := g.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		return false, err
	}

	// Clear the slot first so concurrent pings stop reaching this run.
	g.active.Store(nil)
	triggered := t.stop()

	_ = g.lifecycle.TransitionTo(StateStopped, "watchdog loop exited")

	t.cfg.Events.OnStop(StopEvent{
		Handle:    h,
		Triggered: triggered,
		Lifetime:  time.Since(t.epoch),
	})
	t.cfg.Logger.Debug("watchdog stopped",
		log.String("handle", h.String()),
		log.Bool("triggered", triggered),
	)
	return triggered, nil
}

// Ping records a sign of life for the run identified by h.
// It returns ErrNotRunning if no run is active or h belongs to another run.
func (g *Guard) Ping(h Handle) error {
	t, err := g.lookup(h)
	if err != nil {
		return err
	}
	t.ping()
	return nil
}

// Status returns a snapshot of the active run.
// The boolean is false when no run is active.
func (g *Guard) Status() (Status, bool) {
	t := g.active.Load()
	if t == nil {
		return Status{State: g.lifecycle.State()}, false
	}
	return Status{
		Handle:    t.handle,
		State:     g.lifecycle.State(),
		Timeout:   t.cfg.Timeout,
		StartedAt: t.epoch,
		LastPing:  t.lastPingTime(),
		Triggered: t.triggered.Load(),
	}, true
}

func (g *Guard) lookup(h Handle) (*timer, error) {
	t := g.active.Load()
	if t == nil {
		return nil, ErrNotRunning
	}
	if t.handle != h {
		return nil, fmt.Errorf("%w: handle %s does not match the active run", ErrNotRunning, h)
	}
	return t, nil
}

// runObserver forwards lifecycle transitions to the logger and event handler
// of the run currently passing through the guard. It is only mutated while
// the guard's mutex is held.
type runObserver struct {
	handle Handle
	logger log.Logger
	events EventHandler
}

func (o *runObserver) set(h Handle, logger log.Logger, events EventHandler) {
	o.handle = h
	o.logger = logger
	o.events = events
}

func (o *runObserver) OnStateChange(previous, current lifecycle.State, reason string) {
	if o.logger != nil {
		o.logger.Info("state transition",
			log.String("handle", o.handle.String()),
			log.String("from", previous.String()),
			log.String("to", current.String()),
			log.String("reason", reason),
		)
	}
	if o.events != nil {
		o.events.OnStateChange(StateChangeEvent{
			Handle:   o.handle,
			Previous: previous,
			Current:  current,
			Reason:   reason,
		})
	}
}
