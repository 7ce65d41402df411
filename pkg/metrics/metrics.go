package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Storage operation metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobcab_storage_operation_duration_seconds",
			Help:    "Duration of object storage operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"operation"},
	)

	StorageOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_storage_errors_total",
			Help: "Storage operation errors by type",
		},
		[]string{"operation", "error_type"},
	)
	// error_type: "timeout", "not_found", "access_denied", "network_error", "throttled"

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_storage_bytes_total",
			Help: "Total bytes transferred to and from object storage",
		},
		[]string{"direction"}, // upload, download
	)

	StorageRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_storage_retries_total",
			Help: "Storage operation retry attempts",
		},
		[]string{"operation"},
	)
)

// Container metrics
var (
	ContainersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blobcab_containers_created_total",
			Help: "Total number of containers created",
		},
	)

	ContainersDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blobcab_containers_deleted_total",
			Help: "Total number of containers deleted",
		},
	)
)

// File manager metrics
var (
	FileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_file_operations_total",
			Help: "Total number of file manager operations",
		},
		[]string{"operation", "status"},
	)

	FileOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobcab_file_operation_duration_seconds",
			Help:    "Duration of file manager operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"operation"},
	)

	FolderBatchObjects = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobcab_folder_batch_objects",
			Help:    "Number of objects touched by folder-level operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"}, // delete_folder, move_folder, rename_folder
	)
)

// Cache metrics (local object cache)
var (
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blobcab_cache_size_bytes",
			Help: "Current cache size in bytes",
		},
	)

	CacheObjectsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blobcab_cache_objects_total",
			Help: "Current number of objects in cache",
		},
	)
)

// Circuit breaker metrics
var (
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blobcab_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker open transitions",
		},
		[]string{"name"},
	)
)

// Health status metrics
var (
	ComponentHealthStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blobcab_component_health_status",
			Help: "Health status of components (0=unreachable, 1=unhealthy, 2=degraded, 3=healthy)",
		},
		[]string{"component"},
	)

	ComponentHealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobcab_component_health_checks_total",
			Help: "Total number of health checks performed",
		},
		[]string{"component", "status"},
	)

	ComponentHealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobcab_component_health_check_duration_seconds",
			Help:    "Duration of health checks in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"component"},
	)
)
