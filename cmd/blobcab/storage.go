package main

// storage.go - Shared store and file manager construction for command handlers

import (
	"flag"

	"github.com/blobcab/blobcab/cache"
	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/filemanager"
	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/resilient"
	"github.com/blobcab/blobcab/storage"
	"github.com/blobcab/blobcab/storage/s3"
)

// storageFlags holds the connection override flags shared by every
// storage-backed command.
type storageFlags struct {
	endpoint  *string
	accessKey *string
	secretKey *string
	container *string
	insecure  *bool
}

// registerStorageFlags adds the shared connection flags to a command's flag
// set. Values are only applied when the flag was explicitly set, so the
// configuration file remains the default.
func registerStorageFlags(fs *flag.FlagSet) *storageFlags {
	return &storageFlags{
		endpoint:  fs.String("endpoint", "", "S3 endpoint (overrides config)"),
		accessKey: fs.String("access-key", "", "S3 access key (overrides config)"),
		secretKey: fs.String("secret-key", "", "S3 secret key (overrides config)"),
		container: fs.String("container", "", "Container to operate on (overrides config)"),
		insecure:  fs.Bool("insecure", false, "Disable TLS for the S3 endpoint (overrides config)"),
	}
}

// resolveConfig applies explicit command-line overrides on top of the loaded
// configuration and validates that a target endpoint and container are known.
func resolveConfig(fs *flag.FlagSet, flags *storageFlags) config.Config {
	cfg := globalConfig

	if isFlagSet(fs, "endpoint") {
		cfg.S3.Endpoint = *flags.endpoint
	}
	if isFlagSet(fs, "access-key") {
		cfg.S3.AccessKey = *flags.accessKey
	}
	if isFlagSet(fs, "secret-key") {
		cfg.S3.SecretKey = *flags.secretKey
	}
	if isFlagSet(fs, "container") {
		cfg.FileManager.Container = *flags.container
	}
	if isFlagSet(fs, "insecure") {
		cfg.S3.DisableTLS = *flags.insecure
	}

	if cfg.S3.Endpoint == "" {
		logger.Fatalf("S3 endpoint not configured (set [s3] endpoint in the config file or pass --endpoint)")
	}
	if cfg.FileManager.Container == "" {
		logger.Fatalf("Container not configured (set [filemanager] container in the config file or pass --container)")
	}
	return cfg
}

// newStore connects to the configured S3 endpoint. When resilience is enabled
// the store is wrapped with retry and circuit breaking; the second return
// value exposes the wrapper for health integration and is nil otherwise.
func newStore(cfg config.Config) (storage.Store, *resilient.ResilientStore) {
	st, err := s3.New(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, !cfg.S3.DisableTLS, cfg.S3.Debug)
	if err != nil {
		logger.Fatalf("Failed to connect to S3 endpoint %s: %v", cfg.S3.Endpoint, err)
	}

	if !cfg.Resilience.Enabled {
		return st, nil
	}
	rs, err := resilient.NewResilientStore(st, &cfg.Resilience)
	if err != nil {
		logger.Fatalf("Failed to configure resilient store: %v", err)
	}
	return rs, rs
}

// newFileManager builds the file manager for cfg, attaching the local content
// cache when it is enabled. The returned cleanup must be called before exit.
func newFileManager(cfg config.Config) (*filemanager.FileManager, func()) {
	st, _ := newStore(cfg)

	fm, err := filemanager.New(st, cfg.FileManager.Container)
	if err != nil {
		logger.Fatalf("Failed to initialize file manager: %v", err)
	}
	fm.SetDefaultContentType(cfg.FileManager.GetDefaultContentType())
	if !cfg.FileManager.ContentHashingEnabled() {
		fm.DisableContentHashing()
	}

	cleanup := func() {}
	if cfg.LocalCache.Enabled {
		cacheInstance := openCache(&cfg.LocalCache)
		fm.UseCache(cacheInstance)
		cleanup = func() {
			if err := cacheInstance.Close(); err != nil {
				logger.Warnf("Failed to close cache: %v", err)
			}
		}
	}
	return fm, cleanup
}

// openCache opens the local content cache from configuration.
func openCache(cfg *config.LocalCacheConfig) *cache.Cache {
	capacity, err := cfg.GetCapacity()
	if err != nil {
		logger.Fatalf("Invalid cache capacity '%s': %v", cfg.Capacity, err)
	}
	maxObjectSize, err := cfg.GetMaxObjectSize()
	if err != nil {
		logger.Fatalf("Invalid cache max_object_size '%s': %v", cfg.MaxObjectSize, err)
	}
	purgeInterval, err := cfg.GetPurgeInterval()
	if err != nil {
		logger.Fatalf("Invalid cache purge_interval '%s': %v", cfg.PurgeInterval, err)
	}
	maxAge, err := cfg.GetOrphanCleanupAge()
	if err != nil {
		logger.Fatalf("Invalid cache orphan_cleanup_age '%s': %v", cfg.OrphanCleanupAge, err)
	}

	cacheInstance, err := cache.New(cfg.Path, capacity, maxObjectSize, purgeInterval, maxAge)
	if err != nil {
		logger.Fatalf("Failed to open cache at %s: %v", cfg.Path, err)
	}
	return cacheInstance
}
