// Package resilient decorates a storage.Store with retry backoff and
// per-operation-class circuit breakers. Reads, writes and deletes each get
// their own breaker so a failing write path cannot block reads that still
// work. Wrapping is opt-in; the plain store never retries.
package resilient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/circuitbreaker"
	"github.com/blobcab/blobcab/pkg/metrics"
	"github.com/blobcab/blobcab/pkg/retry"
	"github.com/blobcab/blobcab/storage"
)

// ResilientStore wraps another Store and retries transient failures with
// exponential backoff. Each operation runs through the circuit breaker of its
// class; a rejected request is still retried, since the backoff gives the
// breaker time to reach its half-open window.
type ResilientStore struct {
	store         storage.Store
	readBreaker   *circuitbreaker.CircuitBreaker
	writeBreaker  *circuitbreaker.CircuitBreaker
	deleteBreaker *circuitbreaker.CircuitBreaker
	readConfig    retry.BackoffConfig
	writeConfig   retry.BackoffConfig
	deleteConfig  retry.BackoffConfig
}

var _ storage.Store = (*ResilientStore)(nil)

// NewResilientStore wraps store using the retry and circuit breaker settings
// from cfg. It fails only on unparseable duration values.
func NewResilientStore(store storage.Store, cfg *config.ResilienceConfig) (*ResilientStore, error) {
	initialInterval, err := cfg.Retry.GetInitialInterval()
	if err != nil {
		return nil, fmt.Errorf("resilience retry initial_interval: %w", err)
	}
	maxInterval, err := cfg.Retry.GetMaxInterval()
	if err != nil {
		return nil, fmt.Errorf("resilience retry max_interval: %w", err)
	}
	breakerInterval, err := cfg.CircuitBreaker.GetInterval()
	if err != nil {
		return nil, fmt.Errorf("resilience circuit_breaker interval: %w", err)
	}
	breakerTimeout, err := cfg.CircuitBreaker.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("resilience circuit_breaker timeout: %w", err)
	}

	base := retry.BackoffConfig{
		InitialInterval: initialInterval,
		MaxInterval:     maxInterval,
		Multiplier:      cfg.Retry.GetMultiplier(),
		Jitter:          cfg.Retry.GetJitter(),
		MaxRetries:      cfg.Retry.GetMaxRetries(),
	}

	rs := &ResilientStore{
		store:         store,
		readBreaker:   circuitbreaker.NewCircuitBreaker(breakerSettings("storage_read", &cfg.CircuitBreaker, breakerInterval, breakerTimeout)),
		writeBreaker:  circuitbreaker.NewCircuitBreaker(breakerSettings("storage_write", &cfg.CircuitBreaker, breakerInterval, breakerTimeout)),
		deleteBreaker: circuitbreaker.NewCircuitBreaker(breakerSettings("storage_delete", &cfg.CircuitBreaker, breakerInterval, breakerTimeout)),
	}

	rs.readConfig = base
	rs.readConfig.OperationName = "storage_read"
	rs.writeConfig = base
	rs.writeConfig.OperationName = "storage_write"
	rs.deleteConfig = base
	rs.deleteConfig.OperationName = "storage_delete"

	return rs, nil
}

func breakerSettings(name string, cfg *config.CircuitBreakerConfig, interval, timeout time.Duration) circuitbreaker.Settings {
	minRequests := cfg.GetMinRequests()
	failureRatio := cfg.GetFailureRatio()

	return circuitbreaker.Settings{
		Name:        name,
		MaxRequests: cfg.GetMaxRequests(),
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from circuitbreaker.State, to circuitbreaker.State) {
			logger.Warnf("RESILIENT: circuit breaker '%s' changed from %s to %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			if to == circuitbreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
		// Absence is a valid answer from a healthy backend.
		IsSuccessful: func(err error) bool {
			return err == nil || storage.IsNotFound(err)
		},
	}
}

func breakerStateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateHalfOpen:
		return 1
	case circuitbreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Unwrap returns the store being decorated. Health checks probe it directly
// so a probe is never rejected by an open breaker.
func (rs *ResilientStore) Unwrap() storage.Store {
	return rs.store
}

// Breakers returns the circuit breakers by class name.
func (rs *ResilientStore) Breakers() map[string]*circuitbreaker.CircuitBreaker {
	return map[string]*circuitbreaker.CircuitBreaker{
		"storage_read":   rs.readBreaker,
		"storage_write":  rs.writeBreaker,
		"storage_delete": rs.deleteBreaker,
	}
}

// BreakerStates returns the current state of each circuit breaker.
func (rs *ResilientStore) BreakerStates() map[string]circuitbreaker.State {
	return map[string]circuitbreaker.State{
		"storage_read":   rs.readBreaker.State(),
		"storage_write":  rs.writeBreaker.State(),
		"storage_delete": rs.deleteBreaker.State(),
	}
}

// ForceHalfOpen moves every open breaker to half-open. Called by health
// monitoring after a direct backend probe succeeds.
func (rs *ResilientStore) ForceHalfOpen() {
	rs.readBreaker.ForceHalfOpen()
	rs.writeBreaker.ForceHalfOpen()
	rs.deleteBreaker.ForceHalfOpen()
}

func (rs *ResilientStore) execute(ctx context.Context, breaker *circuitbreaker.CircuitBreaker, cfg retry.BackoffConfig, op func() error) error {
	return retry.WithRetry(ctx, func() error {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return retry.Stop(err)
	}, cfg)
}

var transientErrors = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"i/o timeout",
	"network unreachable",
	"no such host",
	"temporary failure",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"gateway timeout",
	"timeout",
	"slowdown",
	"throttling",
	"rate limit",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}

	// A rejected request is retryable: the backoff waits out the breaker's
	// open window.
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return true
	}

	if storage.IsNotFound(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, transient := range transientErrors {
		if strings.Contains(errStr, transient) {
			return true
		}
	}

	return false
}

func (rs *ResilientStore) EnsureContainer(ctx context.Context, container string) (bool, error) {
	var created bool
	err := rs.execute(ctx, rs.writeBreaker, rs.writeConfig, func() error {
		var opErr error
		created, opErr = rs.store.EnsureContainer(ctx, container)
		return opErr
	})
	return created, err
}

func (rs *ResilientStore) ContainerExists(ctx context.Context, container string) (bool, error) {
	var exists bool
	err := rs.execute(ctx, rs.readBreaker, rs.readConfig, func() error {
		var opErr error
		exists, opErr = rs.store.ContainerExists(ctx, container)
		return opErr
	})
	return exists, err
}

func (rs *ResilientStore) DeleteContainer(ctx context.Context, container string) error {
	return rs.execute(ctx, rs.deleteBreaker, rs.deleteConfig, func() error {
		return rs.store.DeleteContainer(ctx, container)
	})
}

// Put reads the body fully up front so every retry attempt can replay it
// from the start.
func (rs *ResilientStore) Put(ctx context.Context, container, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	return rs.execute(ctx, rs.writeBreaker, rs.writeConfig, func() error {
		return rs.store.Put(ctx, container, key, bytes.NewReader(data), size, opts)
	})
}

func (rs *ResilientStore) Get(ctx context.Context, container, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := rs.execute(ctx, rs.readBreaker, rs.readConfig, func() error {
		var opErr error
		rc, opErr = rs.store.Get(ctx, container, key)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (rs *ResilientStore) Stat(ctx context.Context, container, key string) (*storage.ObjectInfo, error) {
	var info *storage.ObjectInfo
	err := rs.execute(ctx, rs.readBreaker, rs.readConfig, func() error {
		var opErr error
		info, opErr = rs.store.Stat(ctx, container, key)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (rs *ResilientStore) Delete(ctx context.Context, container, key string) error {
	return rs.execute(ctx, rs.deleteBreaker, rs.deleteConfig, func() error {
		return rs.store.Delete(ctx, container, key)
	})
}

func (rs *ResilientStore) Copy(ctx context.Context, container, srcKey, dstKey string, opts storage.CopyOptions) error {
	return rs.execute(ctx, rs.writeBreaker, rs.writeConfig, func() error {
		return rs.store.Copy(ctx, container, srcKey, dstKey, opts)
	})
}

func (rs *ResilientStore) List(ctx context.Context, container, prefix string, recursive bool) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	err := rs.execute(ctx, rs.readBreaker, rs.readConfig, func() error {
		var opErr error
		objects, opErr = rs.store.List(ctx, container, prefix, recursive)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
