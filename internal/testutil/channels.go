// Package testutil provides helpers shared by voicecap tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// DefaultTestTimeout bounds waits on pipeline goroutines and servers.
	DefaultTestTimeout = 2 * time.Second

	// PollInterval is the tick for require.Eventually on counters.
	PollInterval = time.Millisecond
)

// WaitForChannel returns the next value received from ch, or the zero value
// once ch is closed. It fails the test after timeout.
func WaitForChannel[T any](t testing.TB, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}
