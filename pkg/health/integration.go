package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/pkg/circuitbreaker"
)

// HealthIntegration wires the standard blobcab health checks into a monitor
// and exposes the aggregate as a status report and an HTTP handler.
type HealthIntegration struct {
	monitor  *HealthMonitor
	hostname string
	interval time.Duration
	timeout  time.Duration
}

// StoreProber is the slice of the storage contract health probes use.
type StoreProber interface {
	ContainerExists(ctx context.Context, container string) (bool, error)
}

// CacheStatsProvider reports local cache index totals.
type CacheStatsProvider interface {
	GetStats() (objectCount int64, totalSize int64, err error)
}

func NewHealthIntegration(cfg *config.HealthConfig) (*HealthIntegration, error) {
	interval, err := cfg.GetCheckInterval()
	if err != nil {
		return nil, fmt.Errorf("health check_interval: %w", err)
	}
	timeout, err := cfg.GetCheckTimeout()
	if err != nil {
		return nil, fmt.Errorf("health check_timeout: %w", err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	return &HealthIntegration{
		monitor:  NewHealthMonitor(),
		hostname: hostname,
		interval: interval,
		timeout:  timeout,
	}, nil
}

func (hi *HealthIntegration) Start(ctx context.Context) {
	hi.monitor.Start(ctx)
}

func (hi *HealthIntegration) Stop() {
	hi.monitor.Stop()
}

func (hi *HealthIntegration) GetMonitor() *HealthMonitor {
	return hi.monitor
}

// RunChecks performs all registered checks once, synchronously.
func (hi *HealthIntegration) RunChecks(ctx context.Context) {
	hi.monitor.RunChecks(ctx)
}

// RegisterStoreCheck probes the blob store by asking for the configured
// container. The probe should run against the raw store, not the resilient
// wrapper, so an open breaker cannot reject it. onHealthy, if set, runs after
// every answered probe; wiring it to the resilient store's ForceHalfOpen lets
// traffic test a tripped breaker as soon as the backend is reachable again.
func (hi *HealthIntegration) RegisterStoreCheck(store StoreProber, container string, onHealthy func()) {
	check := &HealthCheck{
		Name:     "blob_store",
		Interval: hi.interval,
		Timeout:  hi.timeout,
		Critical: true,
		Check: func(ctx context.Context) error {
			exists, err := store.ContainerExists(ctx, container)
			if err != nil {
				return fmt.Errorf("blob store unreachable: %w", err)
			}
			// A definite answer, even "no such container", proves the
			// backend is reachable.
			if onHealthy != nil {
				onHealthy()
			}
			if !exists {
				return fmt.Errorf("container %q does not exist", container)
			}
			return nil
		},
	}
	hi.monitor.RegisterCheck(check)
}

// RegisterCacheCheck verifies the local cache index answers queries. Not
// critical: the file manager works without its cache.
func (hi *HealthIntegration) RegisterCacheCheck(cache CacheStatsProvider) {
	check := &HealthCheck{
		Name:     "local_cache",
		Interval: hi.interval,
		Timeout:  hi.timeout,
		Critical: false,
		Check: func(ctx context.Context) error {
			if _, _, err := cache.GetStats(); err != nil {
				return fmt.Errorf("cache index query failed: %w", err)
			}
			return nil
		},
	}
	hi.monitor.RegisterCheck(check)
}

// RegisterBreakerCheck tracks a circuit breaker as a health component.
func (hi *HealthIntegration) RegisterBreakerCheck(name string, breaker *circuitbreaker.CircuitBreaker) {
	check := &HealthCheck{
		Name:     fmt.Sprintf("circuit_breaker_%s", name),
		Interval: hi.interval,
		Timeout:  hi.timeout,
		Critical: false,
		Check: func(ctx context.Context) error {
			state := breaker.State()
			counts := breaker.Counts()

			if state == circuitbreaker.StateOpen {
				return fmt.Errorf("circuit breaker is open (requests: %d, failures: %d)",
					counts.Requests, counts.TotalFailures)
			}

			if counts.Requests > 0 {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate > 0.5 {
					return fmt.Errorf("high failure rate %.2f%% (requests: %d, failures: %d)",
						failureRate*100, counts.Requests, counts.TotalFailures)
				}
			}

			return nil
		},
	}
	hi.monitor.RegisterCheck(check)
}

// StatusReport is the JSON document served by the status endpoint.
type StatusReport struct {
	Status      ComponentStatus          `json:"status"`
	Hostname    string                   `json:"hostname"`
	Components  map[string]CheckSnapshot `json:"components"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Report returns the current aggregate health.
func (hi *HealthIntegration) Report() StatusReport {
	return StatusReport{
		Status:      hi.monitor.GetOverallStatus(),
		Hostname:    hi.hostname,
		Components:  hi.monitor.Snapshot(),
		GeneratedAt: time.Now().UTC(),
	}
}

// Handler serves the status report as JSON. The response code is 200 while
// the system is healthy or degraded and 503 once a critical component fails.
func (hi *HealthIntegration) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hi.Report()

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy || report.Status == StatusUnreachable {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(report)
	})
}

// IsHealthy reports whether the overall system is healthy.
func (hi *HealthIntegration) IsHealthy() bool {
	return hi.monitor.GetOverallStatus() == StatusHealthy
}

// GetOverallStatus returns the overall system health status.
func (hi *HealthIntegration) GetOverallStatus() ComponentStatus {
	return hi.monitor.GetOverallStatus()
}
