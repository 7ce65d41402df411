package main

// health.go - Command handlers for health monitoring

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blobcab/blobcab/cache"
	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/health"
	"github.com/blobcab/blobcab/pkg/metrics"
)

func handleHealthCommand(ctx context.Context, args []string) {
	if len(args) == 0 {
		printHealthUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	switch subcommand {
	case "status":
		handleHealthStatus(ctx, args[1:])
	case "watch":
		handleHealthWatch(ctx, args[1:])
	case "help", "--help", "-h":
		printHealthUsage()
	default:
		fmt.Printf("Unknown health subcommand: %s\n\n", subcommand)
		printHealthUsage()
		os.Exit(1)
	}
}

func printHealthUsage() {
	fmt.Printf(`Backend Health Monitoring

Usage:
  blobcab health <subcommand> [options]

Subcommands:
  status   Run all health checks once and print the result
  watch    Monitor continuously and serve status and metrics over HTTP

Examples:
  blobcab health status
  blobcab health status --json
  blobcab health watch --addr localhost:9090

Use 'blobcab health <subcommand> --help' for detailed help.
`)
}

// buildHealthIntegration wires the standard checks: the blob store probe
// (against the raw store, so an open breaker cannot reject it), one check per
// circuit breaker when resilience is enabled, and the local cache index when
// the cache is enabled. The returned cache instance is nil when the cache is
// off; cleanup must be called before exit.
func buildHealthIntegration(cfg config.Config) (*health.HealthIntegration, *cache.Cache, func()) {
	integration, err := health.NewHealthIntegration(&cfg.Health)
	if err != nil {
		logger.Fatalf("Failed to initialize health monitoring: %v", err)
	}

	st, rs := newStore(cfg)
	probe := st
	var onHealthy func()
	if rs != nil {
		probe = rs.Unwrap()
		onHealthy = rs.ForceHalfOpen
	}
	integration.RegisterStoreCheck(probe, cfg.FileManager.Container, onHealthy)

	if rs != nil {
		for name, breaker := range rs.Breakers() {
			integration.RegisterBreakerCheck(name, breaker)
		}
	}

	cleanup := func() {}
	var cacheInstance *cache.Cache
	if cfg.LocalCache.Enabled {
		cacheInstance = openCache(&cfg.LocalCache)
		integration.RegisterCacheCheck(cacheInstance)
		cleanup = func() {
			if err := cacheInstance.Close(); err != nil {
				logger.Warnf("Failed to close cache: %v", err)
			}
		}
	}
	return integration, cacheInstance, cleanup
}

func handleHealthStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("health status", flag.ExitOnError)

	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Run all health checks once and print the result

Usage:
  blobcab health status [options]

Options:
  --json                 Output in JSON format
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Checks:
  - blob_store: probes the backend for the configured container (critical)
  - circuit_breaker_*: breaker states, when resilience is enabled
  - local_cache: cache index queries, when the cache is enabled

The exit code is 0 while the system is healthy or degraded and 1 once a
critical component fails.

Examples:
  blobcab health status
  blobcab health status --container tenant-a
  blobcab health status --json
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	cfg := resolveConfig(fs, sf)

	integration, _, cleanup := buildHealthIntegration(cfg)
	defer cleanup()

	integration.RunChecks(ctx)
	report := integration.Report()

	if *jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			logger.Fatalf("Failed to encode health report: %v", err)
		}
	} else {
		printStatusReport(report)
	}

	if report.Status == health.StatusUnhealthy || report.Status == health.StatusUnreachable {
		os.Exit(1)
	}
}

func printStatusReport(report health.StatusReport) {
	const reset = "\033[0m"

	fmt.Printf("System Health\n")
	fmt.Printf("=============\n\n")
	fmt.Printf("Overall Status: %s%s%s\n", getStatusColor(string(report.Status)), strings.ToUpper(string(report.Status)), reset)
	fmt.Printf("Hostname:       %s\n", report.Hostname)
	fmt.Printf("Generated At:   %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	if len(report.Components) == 0 {
		fmt.Printf("No components registered.\n")
		return
	}

	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Components:\n")
	for _, name := range names {
		snap := report.Components[name]

		marker := ""
		if snap.Critical {
			marker = " (critical)"
		}
		fmt.Printf("  %-24s %s%-12s%s%s\n", name, getStatusColor(string(snap.Status)), strings.ToUpper(string(snap.Status)), reset, marker)
		if snap.LastError != "" {
			fmt.Printf("    Last Error: %s\n", snap.LastError)
		}
	}
}

func handleHealthWatch(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("health watch", flag.ExitOnError)

	addr := fs.String("addr", "", "Listen address for the status and metrics endpoint (overrides config)")
	sf := registerStorageFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Monitor continuously and serve status and metrics over HTTP

Usage:
  blobcab health watch [options]

Options:
  --addr string          Listen address for the status and metrics endpoint (overrides config)
  --container string     Container to operate on (overrides config)
  --endpoint string      S3 endpoint (overrides config)
  --access-key string    S3 access key (overrides config)
  --secret-key string    S3 secret key (overrides config)
  --insecure             Disable TLS for the S3 endpoint (overrides config)

Health checks run on the configured interval. The aggregate status is served
as JSON on /healthz (503 once a critical component fails) and Prometheus
metrics on /metrics. When the local cache is enabled its purge loop runs in
this process too. Stop with Ctrl-C.

Examples:
  blobcab health watch
  blobcab health watch --addr 0.0.0.0:9090
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	cfg := resolveConfig(fs, sf)
	if isFlagSet(fs, "addr") {
		cfg.Health.Addr = *addr
	}

	integration, cacheInstance, cleanup := buildHealthIntegration(cfg)
	defer cleanup()

	// Seed the report so /healthz answers before the first interval elapses.
	integration.RunChecks(ctx)

	integration.Start(ctx)
	defer integration.Stop()

	if cacheInstance != nil {
		cacheInstance.StartPurgeLoop(ctx)
		collector := metrics.NewCollector(cacheInstance, 0)
		go collector.Start(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", integration.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.Health.GetAddr(),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down health endpoint")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Error shutting down health endpoint: %v", err)
		}
	}()

	fmt.Printf("Serving health status on http://%s/healthz and metrics on http://%s/metrics\n",
		server.Addr, server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Health endpoint failed: %v", err)
	}
}
