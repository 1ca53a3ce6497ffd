// Package wdtest contains helpers shared by canary's timing-sensitive tests.
package wdtest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TimeFactor multiplies every scaled test duration.
// Set CANARY_TEST_TIME_FACTOR=3 on a contended CI machine to triple
// timeouts without editing tests.
var TimeFactor ScaledDuration = 1

func init() {
	f := os.Getenv("CANARY_TEST_TIME_FACTOR")
	if f == "" {
		return
	}

	n, err := strconv.Atoi(f)
	if err != nil {
		panic(fmt.Errorf(
			"failed to parse CANARY_TEST_TIME_FACTOR (%q) into an integer: %w",
			f, err,
		))
	}
	if n <= 0 {
		panic(fmt.Errorf("CANARY_TEST_TIME_FACTOR must be positive; got %d", n))
	}

	TimeFactor = ScaledDuration(n)
}

// ScaledDuration is a duration already multiplied by TimeFactor.
type ScaledDuration time.Duration

// ScaleMs returns ms milliseconds multiplied by TimeFactor.
func ScaleMs(ms int64) ScaledDuration {
	return TimeFactor * ScaledDuration(ms) * ScaledDuration(time.Millisecond)
}

// D converts d to a time.Duration.
func (d ScaledDuration) D() time.Duration {
	return time.Duration(d)
}

// Sleep calls time.Sleep with the scaled duration.
func Sleep(d ScaledDuration) {
	time.Sleep(time.Duration(d))
}
