package health

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestRunChecksUpdatesState verifies a successful check is recorded as healthy
func TestRunChecksUpdatesState(t *testing.T) {
	hm := NewHealthMonitor()

	var calls atomic.Int32
	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	hm.RunChecks(context.Background())

	if calls.Load() != 1 {
		t.Errorf("Expected 1 check call, got %d", calls.Load())
	}
	if status, ok := hm.GetCheckStatus("backend"); !ok || status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s (registered: %v)", status, ok)
	}
	if hm.GetOverallStatus() != StatusHealthy {
		t.Errorf("Expected overall healthy, got %s", hm.GetOverallStatus())
	}
}

// TestFailingCheckBecomesUnhealthy verifies that a first-check failure is unhealthy
func TestFailingCheckBecomesUnhealthy(t *testing.T) {
	hm := NewHealthMonitor()

	checkErr := errors.New("backend down")
	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			return checkErr
		},
	})

	hm.RunChecks(context.Background())

	// A 100% failure rate maps straight to unhealthy
	if !hm.IsUnhealthy("backend") {
		status, _ := hm.GetCheckStatus("backend")
		t.Errorf("Expected unhealthy, got %s", status)
	}
}

// TestOccasionalFailureIsDegraded verifies that a low failure rate only degrades
func TestOccasionalFailureIsDegraded(t *testing.T) {
	hm := NewHealthMonitor()

	var calls int32
	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			n := atomic.AddInt32(&calls, 1)
			if n == 3 {
				return errors.New("blip")
			}
			return nil
		},
	})

	ctx := context.Background()
	hm.RunChecks(ctx)
	hm.RunChecks(ctx)
	hm.RunChecks(ctx)

	// 1 failure out of 3 checks is below the 0.5 unhealthy threshold
	if !hm.IsDegraded("backend") {
		status, _ := hm.GetCheckStatus("backend")
		t.Errorf("Expected degraded, got %s", status)
	}
}

// TestRecoveryRestoresHealthy verifies a successful check clears a failure
func TestRecoveryRestoresHealthy(t *testing.T) {
	hm := NewHealthMonitor()

	var fail atomic.Bool
	fail.Store(true)
	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			if fail.Load() {
				return errors.New("backend down")
			}
			return nil
		},
	})

	ctx := context.Background()
	hm.RunChecks(ctx)
	if !hm.IsUnhealthy("backend") {
		t.Fatal("Expected unhealthy after failure")
	}

	fail.Store(false)
	hm.RunChecks(ctx)
	if !hm.IsHealthy("backend") {
		status, _ := hm.GetCheckStatus("backend")
		t.Errorf("Expected healthy after recovery, got %s", status)
	}
}

// TestOverallStatus verifies how component states aggregate
func TestOverallStatus(t *testing.T) {
	t.Run("CriticalFailureIsUnhealthy", func(t *testing.T) {
		hm := NewHealthMonitor()
		hm.RegisterCheck(&HealthCheck{
			Name:     "store",
			Critical: true,
			Check: func(ctx context.Context) error {
				return errors.New("down")
			},
		})
		hm.RegisterCheck(&HealthCheck{
			Name: "cache",
			Check: func(ctx context.Context) error {
				return nil
			},
		})

		hm.RunChecks(context.Background())

		if hm.GetOverallStatus() != StatusUnhealthy {
			t.Errorf("Expected overall unhealthy, got %s", hm.GetOverallStatus())
		}
	})

	t.Run("NonCriticalFailureOnlyDegrades", func(t *testing.T) {
		hm := NewHealthMonitor()
		var calls int32
		hm.RegisterCheck(&HealthCheck{
			Name: "cache",
			Check: func(ctx context.Context) error {
				if atomic.AddInt32(&calls, 1) == 3 {
					return errors.New("blip")
				}
				return nil
			},
		})

		ctx := context.Background()
		hm.RunChecks(ctx)
		hm.RunChecks(ctx)
		hm.RunChecks(ctx)

		if hm.GetOverallStatus() != StatusDegraded {
			t.Errorf("Expected overall degraded, got %s", hm.GetOverallStatus())
		}
	})
}

// TestStatusCallback verifies callbacks fire on status changes
func TestStatusCallback(t *testing.T) {
	hm := NewHealthMonitor()

	notifications := make(chan string, 10)
	hm.AddStatusCallback(func(name string, status ComponentStatus) {
		notifications <- name + ":" + string(status)
	})

	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			return errors.New("down")
		},
	})

	hm.RunChecks(context.Background())

	select {
	case got := <-notifications:
		if got != "backend:unhealthy" {
			t.Errorf("Expected 'backend:unhealthy' notification, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for status callback")
	}
}

// TestPanicInCheckIsRecovered verifies a panicking check marks the component unhealthy
func TestPanicInCheckIsRecovered(t *testing.T) {
	hm := NewHealthMonitor()

	hm.RegisterCheck(&HealthCheck{
		Name: "backend",
		Check: func(ctx context.Context) error {
			panic("check exploded")
		},
	})

	hm.RunChecks(context.Background())

	if !hm.IsUnhealthy("backend") {
		status, _ := hm.GetCheckStatus("backend")
		t.Errorf("Expected unhealthy after panic, got %s", status)
	}
	snap := hm.Snapshot()["backend"]
	if !strings.Contains(snap.LastError, "panic") {
		t.Errorf("Expected panic recorded in last error, got %q", snap.LastError)
	}
}

// TestCheckTimeout verifies a stuck check fails via its timeout
func TestCheckTimeout(t *testing.T) {
	hm := NewHealthMonitor()

	hm.RegisterCheck(&HealthCheck{
		Name:    "backend",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	done := make(chan struct{})
	go func() {
		hm.RunChecks(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunChecks did not return, timeout not applied")
	}

	if !hm.IsUnhealthy("backend") {
		status, _ := hm.GetCheckStatus("backend")
		t.Errorf("Expected unhealthy after timeout, got %s", status)
	}
}

// TestMonitorLoop verifies the background loop runs checks and stops cleanly
func TestMonitorLoop(t *testing.T) {
	hm := NewHealthMonitor()

	var calls atomic.Int32
	hm.RegisterCheck(&HealthCheck{
		Name:     "backend",
		Interval: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	hm.Start(context.Background())
	defer hm.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 2 periodic checks, got %d", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSnapshot verifies the snapshot carries counts and errors
func TestSnapshot(t *testing.T) {
	hm := NewHealthMonitor()

	var fail atomic.Bool
	hm.RegisterCheck(&HealthCheck{
		Name:     "backend",
		Critical: true,
		Check: func(ctx context.Context) error {
			if fail.Load() {
				return errors.New("backend down")
			}
			return nil
		},
	})

	ctx := context.Background()
	hm.RunChecks(ctx)
	fail.Store(true)
	hm.RunChecks(ctx)

	snap, ok := hm.Snapshot()["backend"]
	if !ok {
		t.Fatal("Expected backend in snapshot")
	}
	if snap.CheckCount != 2 || snap.FailCount != 1 {
		t.Errorf("Expected 2 checks and 1 failure, got %d and %d", snap.CheckCount, snap.FailCount)
	}
	if !snap.Critical {
		t.Error("Expected critical flag in snapshot")
	}
	if snap.LastError != "backend down" {
		t.Errorf("Expected last error recorded, got %q", snap.LastError)
	}
	if snap.LastCheck.IsZero() {
		t.Error("Expected last check timestamp")
	}
}
