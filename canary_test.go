package canary_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/canary"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// These tests share the process-wide watchdog and must not run in parallel.

func TestStartStop_triggersWithoutPings(t *testing.T) {
	h, err := canary.Start(canary.Options{Timeout: 100})
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	triggered, err := canary.Stop(h)
	require.NoError(t, err)
	require.True(t, triggered)
}

func TestStartStop_pingsKeepItQuiet(t *testing.T) {
	h, err := canary.Start(canary.Options{Timeout: 500})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, canary.Ping(h))
	}

	triggered, err := canary.Stop(h)
	require.NoError(t, err)
	require.False(t, triggered)
}

func TestStart_rejectsSecondWatchdog(t *testing.T) {
	h, err := canary.Start(canary.Options{Timeout: math.MaxInt32})
	require.NoError(t, err)
	defer canary.Stop(h)

	_, err = canary.Start(canary.Options{Timeout: 1000})
	require.ErrorIs(t, err, canary.ErrAlreadyRunning)
	require.True(t, canary.IsStateError(err))
}

func TestStart_invalidTimeout(t *testing.T) {
	// Large values would wrap around when converted to a time.Duration.
	for _, ms := range []int64{0, -1, math.MinInt64, 18446744073710, math.MaxInt64} {
		_, err := canary.Start(canary.Options{Timeout: ms})
		require.ErrorIs(t, err, canary.ErrInvalidConfig, "timeout %dms", ms)
		require.False(t, canary.IsStateError(err))

		_, ok := watchdog.Default().Status()
		require.False(t, ok, "no run may be left active for timeout %dms", ms)
	}
}

func TestStart_largestTimeout(t *testing.T) {
	h, err := canary.Start(canary.Options{Timeout: math.MaxInt64 / int64(time.Millisecond)})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	triggered, err := canary.Stop(h)
	require.NoError(t, err)
	require.False(t, triggered)
}

func TestPingStop_withoutStart(t *testing.T) {
	require.ErrorIs(t, canary.Ping(canary.Handle{}), canary.ErrNotRunning)

	_, err := canary.Stop(canary.Handle{})
	require.ErrorIs(t, err, canary.ErrNotRunning)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 87, canary.ExitCode)
}
