package wdtest

import (
	"testing"
	"time"
)

// ReceiveSoon receives from ch, failing tb if nothing arrives within a short default timeout.
func ReceiveSoon[T any](tb testing.TB, ch <-chan T) T {
	tb.Helper()
	return ReceiveOrTimeout(tb, ch, ScaleMs(500))
}

// ReceiveOrTimeout receives from ch, failing tb if nothing arrives within timeout.
func ReceiveOrTimeout[T any](tb testing.TB, ch <-chan T, timeout ScaledDuration) T {
	tb.Helper()

	if ch == nil {
		tb.Fatalf("immediate failure to avoid blocking receive from nil channel %T", ch)
	}

	timer := time.NewTimer(time.Duration(timeout))
	defer timer.Stop()

	select {
	case <-timer.C:
		tb.Fatalf(
			"timed out after %s receiving from channel %T; if this is flaky on one machine, raise CANARY_TEST_TIME_FACTOR above %d",
			time.Duration(timeout), ch, TimeFactor,
		)
		panic("unreachable")
	case x := <-ch:
		return x
	}
}

// NotSendingSoon asserts that nothing is received from ch for a short duration.
func NotSendingSoon[T any](tb testing.TB, ch <-chan T) {
	tb.Helper()

	timer := time.NewTimer(time.Duration(ScaleMs(75)))
	defer timer.Stop()

	select {
	case <-timer.C:
		// Okay.
	case x := <-ch:
		tb.Fatalf("received value %v on channel %T, when it was expected not to send any values", x, ch)
	}
}
