package lifecycle

import (
	"errors"
	"sync"

	"github.com/bft-labs/canary/pkg/log"
)

// Lifecycle errors. Both are state errors: the requested operation is
// invalid for the current state of the watchdog.
var (
	ErrNotRunning     = errors.New("canary: watchdog is not running")
	ErrAlreadyRunning = errors.New("canary: watchdog already running")
)

// Manager manages the lifecycle state machine for a watchdog guard.
type Manager struct {
	mu           sync.RWMutex
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a new lifecycle manager in StateStopped.
// Both logger and emitter may be nil.
func NewManager(logger log.Logger, emitter EventEmitter) *Manager {
	return &Manager{
		state:        StateStopped,
		logger:       log.OrNoop(logger),
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransitionTo attempts to transition to a new state.
// Returns ErrNotRunning or ErrAlreadyRunning if the transition is not valid,
// leaving the state unchanged.
func (m *Manager) TransitionTo(newState State, reason string) error {
	m.mu.Lock()
	oldState := m.state

	if err := validTransition(oldState, newState); err != nil {
		m.mu.Unlock()
		return err
	}

	m.state = newState
	m.mu.Unlock()

	// Emit event outside of lock
	if m.eventEmitter != nil {
		m.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	m.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

func validTransition(from, to State) error {
	switch from {
	case StateStopped:
		if to != StateStarting {
			return ErrNotRunning
		}
	case StateStarting:
		if to != StateRunning && to != StateStopped {
			return ErrAlreadyRunning
		}
	case StateRunning:
		if to != StateStopping {
			return ErrAlreadyRunning
		}
	case StateStopping:
		if to != StateStopped {
			// Shutdown already began; the run is no longer usable.
			return ErrNotRunning
		}
	}
	return nil
}

// CanStart returns true if a new run may begin.
func (m *Manager) CanStart() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateStopped
}

// CanStop returns true if the current run may be stopped.
func (m *Manager) CanStop() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateRunning
}
