package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/blobcab/blobcab/helpers"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Output string `toml:"output"` // Log output: "stderr", "stdout", or file path
	Format string `toml:"format"` // Log format: "json" or "console"
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", "error"
}

// S3Config holds S3 connection configuration.
type S3Config struct {
	Endpoint   string `toml:"endpoint"`
	DisableTLS bool   `toml:"disable_tls"`
	AccessKey  string `toml:"access_key"`
	SecretKey  string `toml:"secret_key"`
	Debug      bool   `toml:"debug"` // Enable detailed S3 request/response tracing
}

// GetDebug returns the debug flag
func (s *S3Config) GetDebug() bool {
	return s.Debug
}

// FileManagerConfig holds file manager configuration.
type FileManagerConfig struct {
	Container          string `toml:"container"`            // Container (bucket) the manager operates on
	ContentHashing     *bool  `toml:"content_hashing"`      // Record a BLAKE3 content hash on upload (default: true)
	DefaultContentType string `toml:"default_content_type"` // Content type used when none is provided
}

// ContentHashingEnabled reports whether uploads should record a content hash
func (f *FileManagerConfig) ContentHashingEnabled() bool {
	if f.ContentHashing == nil {
		return true
	}
	return *f.ContentHashing
}

// GetDefaultContentType returns the fallback content type for uploads
func (f *FileManagerConfig) GetDefaultContentType() string {
	if f.DefaultContentType == "" {
		return "application/octet-stream"
	}
	return f.DefaultContentType
}

// LocalCacheConfig holds local disk cache configuration.
type LocalCacheConfig struct {
	Enabled          bool   `toml:"enabled"`
	Path             string `toml:"path"`
	Capacity         string `toml:"capacity"`
	MaxObjectSize    string `toml:"max_object_size"`
	PurgeInterval    string `toml:"purge_interval"`
	OrphanCleanupAge string `toml:"orphan_cleanup_age"`
}

// GetCapacity parses the cache capacity size
func (c *LocalCacheConfig) GetCapacity() (int64, error) {
	if c.Capacity == "" {
		c.Capacity = "1gb"
	}
	return helpers.ParseSize(c.Capacity)
}

// GetMaxObjectSize parses the max object size
func (c *LocalCacheConfig) GetMaxObjectSize() (int64, error) {
	if c.MaxObjectSize == "" {
		c.MaxObjectSize = "5mb"
	}
	return helpers.ParseSize(c.MaxObjectSize)
}

// GetPurgeInterval parses the purge interval duration
func (c *LocalCacheConfig) GetPurgeInterval() (time.Duration, error) {
	if c.PurgeInterval == "" {
		c.PurgeInterval = "12h"
	}
	return helpers.ParseDuration(c.PurgeInterval)
}

// GetOrphanCleanupAge parses the orphan cleanup age duration
func (c *LocalCacheConfig) GetOrphanCleanupAge() (time.Duration, error) {
	if c.OrphanCleanupAge == "" {
		c.OrphanCleanupAge = "30d"
	}
	return helpers.ParseDuration(c.OrphanCleanupAge)
}

// RetryConfig holds retry backoff configuration for the resilient store.
type RetryConfig struct {
	MaxRetries      int     `toml:"max_retries"`      // Maximum retry attempts (default: 3)
	InitialInterval string  `toml:"initial_interval"` // Delay before the first retry (default: "1s")
	MaxInterval     string  `toml:"max_interval"`     // Upper bound on the retry delay (default: "30s")
	Multiplier      float64 `toml:"multiplier"`       // Backoff multiplier between attempts (default: 2.0)
	Jitter          *bool   `toml:"jitter"`           // Randomize delays to avoid thundering herds (default: true)
}

// GetMaxRetries returns the maximum number of retry attempts
func (r *RetryConfig) GetMaxRetries() int {
	if r.MaxRetries <= 0 {
		return 3
	}
	return r.MaxRetries
}

// GetInitialInterval parses the initial retry interval
func (r *RetryConfig) GetInitialInterval() (time.Duration, error) {
	if r.InitialInterval == "" {
		return 1 * time.Second, nil
	}
	return helpers.ParseDuration(r.InitialInterval)
}

// GetMaxInterval parses the maximum retry interval
func (r *RetryConfig) GetMaxInterval() (time.Duration, error) {
	if r.MaxInterval == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(r.MaxInterval)
}

// GetMultiplier returns the backoff multiplier
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier <= 1 {
		return 2.0
	}
	return r.Multiplier
}

// GetJitter reports whether retry delays should be randomized
func (r *RetryConfig) GetJitter() bool {
	if r.Jitter == nil {
		return true
	}
	return *r.Jitter
}

// CircuitBreakerConfig holds circuit breaker configuration for the resilient store.
type CircuitBreakerConfig struct {
	MaxRequests  int     `toml:"max_requests"`  // Maximum concurrent requests in half-open state (default: 3)
	Interval     string  `toml:"interval"`      // Time before resetting failure counts in closed state (default: "0s" - never reset)
	Timeout      string  `toml:"timeout"`       // Time before transitioning from open to half-open (default: "30s")
	FailureRatio float64 `toml:"failure_ratio"` // Failure ratio threshold to open circuit (0.0-1.0, default: 0.6)
	MinRequests  int     `toml:"min_requests"`  // Minimum requests before evaluating failure ratio (default: 5)
}

// GetMaxRequests returns the maximum concurrent requests in half-open state
func (c *CircuitBreakerConfig) GetMaxRequests() uint32 {
	if c.MaxRequests <= 0 {
		return 3
	}
	return uint32(c.MaxRequests)
}

// GetInterval returns the interval before resetting failure counts in closed state
func (c *CircuitBreakerConfig) GetInterval() (time.Duration, error) {
	if c.Interval == "" {
		return 0, nil // Never reset automatically
	}
	return helpers.ParseDuration(c.Interval)
}

// GetTimeout returns the timeout before transitioning from open to half-open
func (c *CircuitBreakerConfig) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(c.Timeout)
}

// GetFailureRatio returns the failure ratio threshold to open circuit
func (c *CircuitBreakerConfig) GetFailureRatio() float64 {
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		return 0.6
	}
	return c.FailureRatio
}

// GetMinRequests returns the minimum requests before evaluating failure ratio
func (c *CircuitBreakerConfig) GetMinRequests() uint32 {
	if c.MinRequests <= 0 {
		return 5
	}
	return uint32(c.MinRequests)
}

// ResilienceConfig holds configuration for the optional resilient store wrapper.
// The plain store never retries; wrapping is opt-in.
type ResilienceConfig struct {
	Enabled        bool                 `toml:"enabled"`
	Retry          RetryConfig          `toml:"retry"`
	CircuitBreaker CircuitBreakerConfig `toml:"circuit_breaker"`
}

// HealthConfig holds health monitoring configuration.
type HealthConfig struct {
	Addr          string `toml:"addr"`           // Listen address for the status/metrics endpoint (default: "localhost:9090")
	CheckInterval string `toml:"check_interval"` // How often health checks run (default: "30s")
	CheckTimeout  string `toml:"check_timeout"`  // Per-check timeout (default: "5s")
}

// GetAddr returns the status endpoint listen address
func (h *HealthConfig) GetAddr() string {
	if h.Addr == "" {
		return "localhost:9090"
	}
	return h.Addr
}

// GetCheckInterval parses the health check interval
func (h *HealthConfig) GetCheckInterval() (time.Duration, error) {
	if h.CheckInterval == "" {
		return 30 * time.Second, nil
	}
	return helpers.ParseDuration(h.CheckInterval)
}

// GetCheckTimeout parses the per-check timeout
func (h *HealthConfig) GetCheckTimeout() (time.Duration, error) {
	if h.CheckTimeout == "" {
		return 5 * time.Second, nil
	}
	return helpers.ParseDuration(h.CheckTimeout)
}

// Config holds all configuration for the application.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	S3          S3Config          `toml:"s3"`
	FileManager FileManagerConfig `toml:"filemanager"`
	LocalCache  LocalCacheConfig  `toml:"local_cache"`
	Resilience  ResilienceConfig  `toml:"resilience"`
	Health      HealthConfig      `toml:"health"`
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		S3: S3Config{
			Endpoint:  "",
			AccessKey: "",
			SecretKey: "",
		},
		FileManager: FileManagerConfig{
			Container:          "",
			DefaultContentType: "application/octet-stream",
		},
		LocalCache: LocalCacheConfig{
			Enabled:          false,
			Path:             "/tmp/blobcab/cache",
			Capacity:         "1gb",
			MaxObjectSize:    "5mb",
			PurgeInterval:    "12h",
			OrphanCleanupAge: "30d",
		},
		Resilience: ResilienceConfig{
			Enabled: false,
			Retry: RetryConfig{
				MaxRetries:      3,
				InitialInterval: "1s",
				MaxInterval:     "30s",
				Multiplier:      2.0,
			},
		},
		Health: HealthConfig{
			Addr:          "localhost:9090",
			CheckInterval: "30s",
			CheckTimeout:  "5s",
		},
	}
}

// LoadConfigFromFile loads configuration from a TOML file and trims whitespace
// from all string fields. Unknown keys produce a warning and are ignored; all
// other decode errors fail with a hint where one is available.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		return enhanceConfigError(err)
	}

	// Warn about unknown keys (might be typos or deprecated settings)
	if len(metadata.Undecoded()) > 0 {
		log.Printf("WARNING: Configuration file '%s' contains unknown keys that will be ignored:", configPath)
		for _, key := range metadata.Undecoded() {
			log.Printf("WARNING:   - %s", key)
		}
		log.Printf("WARNING: These keys may be typos or deprecated settings. Please review your configuration.")
	}

	trimStringFields(reflect.ValueOf(cfg).Elem())
	return nil
}

// enhanceConfigError provides more helpful error messages for common TOML parsing issues
func enhanceConfigError(err error) error {
	errMsg := err.Error()

	if strings.Contains(errMsg, "has already been defined") {
		return fmt.Errorf("%w\n\nHINT: You have a duplicate configuration key in your TOML file.\n"+
			"Please check your configuration file and remove or comment out the duplicate entry.", err)
	}

	if strings.Contains(errMsg, "expected value but found \"f\"") ||
		strings.Contains(errMsg, "expected value but found \"t\"") {
		return fmt.Errorf("%w\n\nHINT: Invalid boolean value in your TOML configuration file.\n"+
			"In TOML, boolean values must be exactly 'true' or 'false' (lowercase, unquoted)", err)
	}

	if strings.Contains(errMsg, "expected") || strings.Contains(errMsg, "invalid") {
		return fmt.Errorf("%w\n\nHINT: There is a syntax error in your TOML configuration file.\n"+
			"Please check:\n"+
			"  - All strings are properly quoted\n"+
			"  - All brackets and braces are balanced\n"+
			"  - Section headers use [section] format", err)
	}

	return err
}

// trimStringFields recursively trims whitespace from all string fields in a struct
func trimStringFields(v reflect.Value) {
	if !v.IsValid() || !v.CanSet() {
		return
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(v.String()))

	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.String {
				elem.SetString(strings.TrimSpace(elem.String()))
			} else {
				trimStringFields(elem)
			}
		}

	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if field.CanSet() {
				trimStringFields(field)
			}
		}

	case reflect.Ptr:
		if !v.IsNil() {
			trimStringFields(v.Elem())
		}
	}
}
