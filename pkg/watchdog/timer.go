package watchdog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/canary/pkg/log"
)

// timer is a single watchdog run: the state shared between the caller's
// goroutines and the background loop.
type timer struct {
	handle Handle
	cfg    Config

	// epoch anchors lastPing on the monotonic clock.
	epoch time.Time

	// Nanoseconds since epoch of the most recent ping.
	// Only ever moves forward.
	lastPing atomic.Int64

	running   atomic.Bool
	triggered atomic.Bool

	stopCh chan struct{} // Closed once by stop.
	done   chan struct{} // Closed by the loop on exit.
}

// newTimer returns a timer for an already-defaulted cfg.
func newTimer(h Handle, cfg Config) *timer {
	return &timer{
		handle: h,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *timer) now() time.Duration {
	return time.Since(t.epoch)
}

// start resets the run state and launches the background loop.
func (t *timer) start() error {
	t.epoch = time.Now()
	t.lastPing.Store(0)
	t.triggered.Store(false)
	t.running.Store(true)

	if err := t.cfg.Launch(t.loop); err != nil {
		t.running.Store(false)
		return fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return nil
}

// ping records the current time as the last sign of life.
// Concurrent pings resolve to the latest clock reading.
func (t *timer) ping() {
	now := int64(t.now())
	for {
		prev := t.lastPing.Load()
		if now <= prev {
			return
		}
		if t.lastPing.CompareAndSwap(prev, now) {
			t.cfg.Events.OnPing(PingEvent{Handle: t.handle, Gap: time.Duration(now - prev)})
			return
		}
	}
}

// stop signals the loop, waits for it to exit and reports whether the run
// ever triggered. Calling stop more than once is safe.
func (t *timer) stop() bool {
	if t.running.CompareAndSwap(true, false) {
		close(t.stopCh)
	}
	<-t.done
	return t.triggered.Load()
}

func (t *timer) loop() {
	defer close(t.done)

	wait := time.NewTimer(t.check())
	defer wait.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-wait.C:
		}

		if !t.running.Load() {
			return
		}
		wait.Reset(t.check())
	}
}

// check evaluates the deadline once, firing the trigger if it passed,
// and returns how long the loop may sleep before the next check.
func (t *timer) check() time.Duration {
	elapsed := t.now() - time.Duration(t.lastPing.Load())
	if elapsed > t.cfg.Timeout {
		if t.triggered.CompareAndSwap(false, true) {
			t.fire(elapsed)
		} else if t.cfg.RepeatReport {
			t.writeDiagnostic()
		}
		return t.cfg.WakeInterval
	}

	// Wake just past the deadline, so detection is not delayed
	// by a full wake interval on short timeouts. Compare before adding
	// the margin: timeouts near the Duration limit would overflow.
	remaining := t.cfg.Timeout - elapsed
	if remaining >= t.cfg.WakeInterval {
		return t.cfg.WakeInterval
	}
	return min(remaining+minWakeInterval, t.cfg.WakeInterval)
}

func (t *timer) fire(elapsed time.Duration) {
	ev := TriggerEvent{
		Handle:    t.handle,
		Timeout:   t.cfg.Timeout,
		Elapsed:   elapsed,
		Terminate: t.cfg.Terminate,
		At:        time.Now(),
	}

	t.cfg.Logger.Error("watchdog timeout detected",
		log.String("handle", t.handle.String()),
		log.Millis("timeout_ms", ev.Timeout),
		log.Millis("elapsed_ms", ev.Elapsed),
		log.Bool("terminate", ev.Terminate),
	)
	if t.cfg.Report {
		t.writeDiagnostic()
	}
	t.cfg.Events.OnTrigger(ev)

	t.cfg.Action.Trigger(ev)
}

func (t *timer) writeDiagnostic() {
	ms := t.cfg.Timeout.Milliseconds()
	if t.cfg.Terminate {
		fmt.Fprintf(t.cfg.Output, "FATAL: canary - watchdog timeout detected (no ping after %dms), exiting application.\n", ms)
		return
	}
	fmt.Fprintf(t.cfg.Output, "canary - watchdog timeout detected (no ping after %dms)\n", ms)
}

// lastPingTime converts lastPing back to a wall-clock timestamp for reporting.
func (t *timer) lastPingTime() time.Time {
	return t.epoch.Add(time.Duration(t.lastPing.Load()))
}
