// Package testutil provides testing utilities for slabpool
package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/slabpool/pkg/freelist"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// AcquireAll acquires slots until the pool reports exhaustion and returns
// every issued handle, which for a fresh pool is exactly Cap() of them.
// Any error other than exhaustion fails the test.
func AcquireAll[T any](t *testing.T, p *freelist.Pool[T]) []freelist.Handle {
	t.Helper()

	handles := make([]freelist.Handle, 0, p.Cap())
	for {
		h, err := p.Acquire()
		if err != nil {
			if freelist.IsExhausted(err) {
				return handles
			}
			t.Fatalf("acquire failed with a non-exhaustion error: %v", err)
		}
		handles = append(handles, h)
	}
}

// ReleaseAll releases every handle and fails the test on the first error.
func ReleaseAll[T any](t *testing.T, p *freelist.Pool[T], handles []freelist.Handle) {
	t.Helper()

	for _, h := range handles {
		if err := p.Release(h); err != nil {
			t.Fatalf("release of %v failed: %v", h, err)
		}
	}
}
