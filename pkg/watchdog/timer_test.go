package watchdog

import (
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/canary/internal/wdtest"
)

func TestConfig_withDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Config{Timeout: time.Minute}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, MaxWakeInterval, cfg.WakeInterval)
	require.NotNil(t, cfg.Action)
	require.NotNil(t, cfg.Output)
	require.NotNil(t, cfg.Logger)
	require.NotNil(t, cfg.Events)
	require.NotNil(t, cfg.Launch)

	cfg, err = Config{Timeout: time.Minute, WakeInterval: time.Hour}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, MaxWakeInterval, cfg.WakeInterval, "wake interval is clamped")

	cfg, err = Config{Timeout: time.Minute, WakeInterval: 10 * time.Millisecond}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, cfg.WakeInterval)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"positive timeout", Config{Timeout: time.Millisecond}, false},
		{"zero timeout", Config{}, true},
		{"negative timeout", Config{Timeout: -time.Second}, true},
		{"repeat without report", Config{Timeout: time.Second, RepeatReport: true}, true},
		{"repeat with report", Config{Timeout: time.Second, Report: true, RepeatReport: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func startTimer(t *testing.T, cfg Config) *timer {
	t.Helper()

	cfg, err := cfg.withDefaults()
	require.NoError(t, err)

	tm := newTimer(newHandle(), cfg)
	require.NoError(t, tm.start())
	return tm
}

func TestTimer_stopWakesLoopImmediately(t *testing.T) {
	t.Parallel()

	tm := startTimer(t, Config{Timeout: time.Hour})

	// Let the loop settle into its full wake interval.
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.False(t, tm.stop())
	require.Less(t, time.Since(start), MaxWakeInterval/2)
	require.False(t, tm.running.Load())

	// A second stop is harmless.
	require.False(t, tm.stop())
}

func TestTimer_pingIsMonotonic(t *testing.T) {
	t.Parallel()

	tm := startTimer(t, Config{Timeout: time.Hour})
	defer tm.stop()

	var wg sync.WaitGroup
	var regressions atomic.Int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				before := tm.lastPing.Load()
				tm.ping()
				if tm.lastPing.Load() < before {
					regressions.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	require.Zero(t, regressions.Load())
	require.Positive(t, tm.lastPing.Load())
}

func TestTimer_triggerLatchesOnce(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	out := new(wdtest.SyncBuffer)
	tm := startTimer(t, Config{
		Timeout:      time.Duration(wdtest.ScaleMs(20)),
		WakeInterval: 5 * time.Millisecond,
		Report:       true,
		Output:       out,
		Action:       Callback(func(TriggerEvent) { fired.Add(1) }),
	})

	// Many wake intervals pass while timed out.
	wdtest.Sleep(wdtest.ScaleMs(150))

	require.True(t, tm.stop())
	require.Equal(t, int32(1), fired.Load())
	require.Equal(t, 1, strings.Count(out.String(), "watchdog timeout detected"))
}

func TestTimer_repeatReportReemitsDiagnostic(t *testing.T) {
	t.Parallel()

	var fired atomic.Int32
	out := new(wdtest.SyncBuffer)
	tm := startTimer(t, Config{
		Timeout:      time.Duration(wdtest.ScaleMs(20)),
		WakeInterval: 5 * time.Millisecond,
		Report:       true,
		RepeatReport: true,
		Output:       out,
		Action:       Callback(func(TriggerEvent) { fired.Add(1) }),
	})

	wdtest.Sleep(wdtest.ScaleMs(150))

	require.True(t, tm.stop())
	require.Equal(t, int32(1), fired.Load(), "the action still fires once")
	require.Greater(t, strings.Count(out.String(), "watchdog timeout detected"), 1)
}

func TestTimer_diagnosticWording(t *testing.T) {
	t.Parallel()

	var plain strings.Builder
	tm := &timer{cfg: Config{Timeout: 1500 * time.Millisecond, Output: &plain}}
	tm.writeDiagnostic()
	require.Equal(t, "canary - watchdog timeout detected (no ping after 1500ms)\n", plain.String())

	var fatal strings.Builder
	tm = &timer{cfg: Config{Timeout: 50 * time.Millisecond, Terminate: true, Output: &fatal}}
	tm.writeDiagnostic()
	require.Equal(t,
		"FATAL: canary - watchdog timeout detected (no ping after 50ms), exiting application.\n",
		fatal.String(),
	)
}

func TestTimer_checkWaitBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
		want    func(time.Duration) bool
	}{
		{"long timeout sleeps a full interval", time.Hour, func(d time.Duration) bool { return d == MaxWakeInterval }},
		{"largest timeout does not overflow", math.MaxInt64, func(d time.Duration) bool { return d == MaxWakeInterval }},
		{"timeout just under the limit", math.MaxInt64 - time.Microsecond, func(d time.Duration) bool { return d == MaxWakeInterval }},
		{"short timeout wakes past the deadline", 10 * time.Millisecond, func(d time.Duration) bool {
			return d > 0 && d <= 10*time.Millisecond+minWakeInterval
		}},
		{"deadline near the wake interval stays capped", MaxWakeInterval, func(d time.Duration) bool {
			return d > 0 && d <= MaxWakeInterval
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Config{Timeout: tt.timeout}.withDefaults()
			require.NoError(t, err)

			tm := newTimer(newHandle(), cfg)
			tm.epoch = time.Now()

			d := tm.check()
			require.True(t, tt.want(d), "check() = %s", d)
			require.False(t, tm.triggered.Load())
		})
	}
}

func TestTimer_launchFailure(t *testing.T) {
	t.Parallel()

	cfg, err := Config{
		Timeout: time.Second,
		Launch:  func(func()) error { return errors.New("no threads left") },
	}.withDefaults()
	require.NoError(t, err)

	tm := newTimer(newHandle(), cfg)
	err = tm.start()
	require.ErrorIs(t, err, ErrLaunch)
	require.ErrorContains(t, err, "no threads left")
	require.False(t, tm.running.Load())
}

// Not parallel: swaps the package-level exit function.
func TestTerminateProcess_usesExitCode(t *testing.T) {
	codes := make(chan int, 1)
	orig := exitProcess
	exitProcess = func(code int) {
		codes <- code
		// The real exit never returns.
		select {}
	}
	defer func() { exitProcess = orig }()

	out := new(wdtest.SyncBuffer)
	cfg, err := Config{
		Timeout:   time.Duration(wdtest.ScaleMs(20)),
		Terminate: true,
		Report:    true,
		Output:    out,
	}.withDefaults()
	require.NoError(t, err)

	tm := newTimer(newHandle(), cfg)
	require.NoError(t, tm.start())

	require.Equal(t, ExitCode, wdtest.ReceiveSoon(t, codes))
	require.True(t, tm.triggered.Load())
	require.Contains(t, out.String(), "FATAL: canary - watchdog timeout detected")

	// The loop is parked inside the fake exit forever, so the timer is
	// intentionally not stopped; it is unreachable once the test returns.
}
