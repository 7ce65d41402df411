package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

// TestDefaults verifies the fallbacks applied to a zero-value Settings
func TestDefaults(t *testing.T) {
	cb := NewCircuitBreaker(Settings{})

	if cb.Name() != "CircuitBreaker" {
		t.Errorf("Expected default name 'CircuitBreaker', got %q", cb.Name())
	}

	// Default trip condition is more than 5 consecutive failures
	testErr := errors.New("test error")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, testErr
		})
	}
	if cb.State() != StateClosed {
		t.Fatalf("Expected CLOSED after 5 failures, got %v", cb.State())
	}

	_, _ = cb.Execute(func() (any, error) {
		return nil, testErr
	})
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after 6 consecutive failures, got %v", cb.State())
	}
}

// TestFailureRatioTrip verifies the ratio-based trip condition used by DefaultSettings
func TestFailureRatioTrip(t *testing.T) {
	settings := DefaultSettings("test-ratio")
	settings.OnStateChange = nil
	cb := NewCircuitBreaker(settings)

	// 1 success and 2 failures: 3 requests with a 0.66 failure ratio trips it
	_, _ = cb.Execute(func() (any, error) {
		return nil, nil
	})
	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, testErr
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN at 2/3 failure ratio, got %v", cb.State())
	}
}

// TestOpenTransitionsToHalfOpenAfterTimeout verifies the timed open -> half-open transition
func TestOpenTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:    "test-timeout",
		Timeout: 50 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_, _ = cb.Execute(func() (any, error) {
		return nil, errors.New("test error")
	})
	if cb.State() != StateOpen {
		t.Fatalf("Expected OPEN, got %v", cb.State())
	}

	time.Sleep(100 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("Expected HALF_OPEN after timeout, got %v", cb.State())
	}
}

// TestHalfOpenFailureReopens verifies that a failed probe sends the breaker back to open
func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:        "test-reopen",
		MaxRequests: 3,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	testErr := errors.New("test error")
	_, _ = cb.Execute(func() (any, error) {
		return nil, testErr
	})
	cb.ForceHalfOpen()
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected HALF_OPEN, got %v", cb.State())
	}

	_, _ = cb.Execute(func() (any, error) {
		return nil, testErr
	})

	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after failed probe, got %v", cb.State())
	}
}

// TestHalfOpenRequestLimit verifies that half-open admits at most MaxRequests in flight
func TestHalfOpenRequestLimit(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:        "test-halfopen-limit",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_, _ = cb.Execute(func() (any, error) {
		return nil, errors.New("test error")
	})
	cb.ForceHalfOpen()

	// While the first probe is still running, a second request must be rejected
	_, err := cb.Execute(func() (any, error) {
		_, inner := cb.Execute(func() (any, error) {
			return nil, nil
		})
		if !errors.Is(inner, ErrTooManyRequests) {
			t.Errorf("Expected ErrTooManyRequests for concurrent probe, got %v", inner)
		}
		return nil, nil
	})
	if err != nil {
		t.Errorf("Probe request failed: %v", err)
	}

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED after successful probe, got %v", cb.State())
	}
}

// TestIsSuccessfulHook verifies that errors the hook accepts do not count as failures
func TestIsSuccessfulHook(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := NewCircuitBreaker(Settings{
		Name: "test-is-successful",
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
	})

	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (any, error) {
			return nil, errNotFound
		})
		if !errors.Is(err, errNotFound) {
			t.Errorf("Expected errNotFound to pass through, got %v", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED, not-found errors must not trip the breaker, got %v", cb.State())
	}

	counts := cb.Counts()
	if counts.TotalSuccesses != 5 {
		t.Errorf("Expected 5 successes, got %d", counts.TotalSuccesses)
	}
	if counts.TotalFailures != 0 {
		t.Errorf("Expected 0 failures, got %d", counts.TotalFailures)
	}
}

// TestClosedIntervalResetsCounts verifies that the closed-state counting window rolls over
func TestClosedIntervalResetsCounts(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name:     "test-interval",
		Interval: 50 * time.Millisecond,
		Timeout:  5 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, testErr
		})
	}

	time.Sleep(100 * time.Millisecond)

	// The window expired, so this failure starts a fresh count
	_, _ = cb.Execute(func() (any, error) {
		return nil, testErr
	})

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED, failures in separate windows must not accumulate, got %v", cb.State())
	}
	if counts := cb.Counts(); counts.ConsecutiveFailures != 1 {
		t.Errorf("Expected 1 failure in the new window, got %d", counts.ConsecutiveFailures)
	}
}

// TestCountsTracking verifies consecutive counters reset when the outcome flips
func TestCountsTracking(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name: "test-counts",
		ReadyToTrip: func(counts Counts) bool {
			return false
		},
	})

	testErr := errors.New("test error")
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, nil })

	counts := cb.Counts()
	if counts.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", counts.Requests)
	}
	if counts.TotalFailures != 2 || counts.TotalSuccesses != 1 {
		t.Errorf("Expected 2 failures and 1 success, got %d and %d", counts.TotalFailures, counts.TotalSuccesses)
	}
	if counts.ConsecutiveFailures != 0 {
		t.Errorf("Expected consecutive failures reset by success, got %d", counts.ConsecutiveFailures)
	}
	if counts.ConsecutiveSuccesses != 1 {
		t.Errorf("Expected 1 consecutive success, got %d", counts.ConsecutiveSuccesses)
	}
}

// TestPanicCountsAsFailure verifies that a panicking request is recorded before re-panicking
func TestPanicCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(Settings{
		Name: "test-panic",
		ReadyToTrip: func(counts Counts) bool {
			return false
		},
	})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		_, _ = cb.Execute(func() (any, error) {
			panic("boom")
		})
	}()

	if counts := cb.Counts(); counts.TotalFailures != 1 {
		t.Errorf("Expected panic recorded as failure, got %d failures", counts.TotalFailures)
	}
}
