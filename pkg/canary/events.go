package canary

import "github.com/bft-labs/canary/pkg/watchdog"

// fanout forwards every event to each handler in order.
type fanout []watchdog.EventHandler

func (f fanout) OnStateChange(ev watchdog.StateChangeEvent) {
	for _, h := range f {
		h.OnStateChange(ev)
	}
}

func (f fanout) OnPing(ev watchdog.PingEvent) {
	for _, h := range f {
		h.OnPing(ev)
	}
}

func (f fanout) OnTrigger(ev watchdog.TriggerEvent) {
	for _, h := range f {
		h.OnTrigger(ev)
	}
}

func (f fanout) OnStop(ev watchdog.StopEvent) {
	for _, h := range f {
		h.OnStop(ev)
	}
}

func buildEvents(handlers []watchdog.EventHandler) watchdog.EventHandler {
	switch len(handlers) {
	case 0:
		return nil
	case 1:
		return handlers[0]
	default:
		return fanout(handlers)
	}
}
