package watchdog

import (
	"time"

	"github.com/bft-labs/canary/pkg/lifecycle"
)

// State is the lifecycle state of a Guard.
type State = lifecycle.State

// Lifecycle states, re-exported for callers that only import watchdog.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
)

// EventHandler receives notifications about a watchdog run.
// Methods are called synchronously: OnPing from the pinging goroutine,
// OnTrigger from the background loop, the others from Start and Stop.
// Implementations must be safe for concurrent use and return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnPing(PingEvent)
	OnTrigger(TriggerEvent)
	OnStop(StopEvent)
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Handle   Handle
	Previous State
	Current  State
	Reason   string
}

// PingEvent describes a ping that advanced the last-ping timestamp.
type PingEvent struct {
	Handle Handle

	// Gap is the time since the previous ping, or since Start for the first one.
	Gap time.Duration
}

// TriggerEvent describes the moment a run timed out.
type TriggerEvent struct {
	Handle    Handle
	Timeout   time.Duration
	Elapsed   time.Duration
	Terminate bool
	At        time.Time
}

// StopEvent describes a completed Stop.
type StopEvent struct {
	Handle    Handle
	Triggered bool

	// Lifetime is the time from Start until the loop exited.
	Lifetime time.Duration
}

// BaseEventHandler implements EventHandler with no-ops.
// Embed it to implement only the methods of interest.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnPing(PingEvent)               {}
func (BaseEventHandler) OnTrigger(TriggerEvent)         {}
func (BaseEventHandler) OnStop(StopEvent)               {}
