package main

// cache.go - Command handlers for the local content cache

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blobcab/blobcab/config"
	"github.com/blobcab/blobcab/logger"
)

func handleCacheCommand(ctx context.Context, args []string) {
	if len(args) == 0 {
		printCacheUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	switch subcommand {
	case "stats":
		handleCacheStats(ctx, args[1:])
	case "sync":
		handleCacheSync(ctx, args[1:])
	case "purge":
		handleCachePurge(ctx, args[1:])
	case "help", "--help", "-h":
		printCacheUsage()
	default:
		fmt.Printf("Unknown cache subcommand: %s\n\n", subcommand)
		printCacheUsage()
		os.Exit(1)
	}
}

func printCacheUsage() {
	fmt.Printf(`Local Content Cache Management

Usage:
  blobcab cache <subcommand> [options]

Subcommands:
  stats    Show cache size and object count
  sync     Rebuild the cache index from the content on disk
  purge    Clear all cached content

Examples:
  blobcab cache stats
  blobcab cache stats --json
  blobcab cache sync
  blobcab cache purge --confirm

Use 'blobcab cache <subcommand> --help' for detailed help.
`)
}

func handleCacheStats(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("cache stats", flag.ExitOnError)

	jsonOutput := fs.Bool("json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Printf(`Show cache size and object count

Usage:
  blobcab cache stats [options]

Options:
  --json                 Output in JSON format

This command shows:
  - Cache directory path
  - Number of cached objects and total size
  - Configured capacity, per-object size limit and age limit
  - Utilization as a percentage of capacity

Examples:
  blobcab cache stats
  blobcab cache stats --json
  blobcab --config /etc/blobcab.toml cache stats
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	if err := showCacheStats(&globalConfig.LocalCache, *jsonOutput); err != nil {
		logger.Fatalf("Failed to show cache stats: %v", err)
	}
}

func showCacheStats(cfg *config.LocalCacheConfig, jsonOutput bool) error {
	capacityBytes, err := cfg.GetCapacity()
	if err != nil {
		return fmt.Errorf("invalid cache capacity: %w", err)
	}
	maxObjectSizeBytes, err := cfg.GetMaxObjectSize()
	if err != nil {
		return fmt.Errorf("invalid cache max_object_size: %w", err)
	}
	maxAge, err := cfg.GetOrphanCleanupAge()
	if err != nil {
		return fmt.Errorf("invalid cache orphan_cleanup_age: %w", err)
	}

	cacheInstance := openCache(cfg)
	defer cacheInstance.Close()

	objectCount, totalSize, err := cacheInstance.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	utilization := 0.0
	if capacityBytes > 0 {
		utilization = float64(totalSize) / float64(capacityBytes) * 100
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"path":            cfg.Path,
			"object_count":    objectCount,
			"total_size":      totalSize,
			"capacity":        capacityBytes,
			"max_object_size": maxObjectSizeBytes,
			"max_age_seconds": maxAge.Seconds(),
			"utilization_pct": utilization,
			"timestamp":       time.Now().UTC(),
		})
	}

	fmt.Printf("Cache Statistics\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Cache path:         %s\n", cfg.Path)
	fmt.Printf("Object count:       %d\n", objectCount)
	fmt.Printf("Total size:         %d bytes (%s)\n", totalSize, formatBytes(totalSize))
	fmt.Printf("Capacity:           %d bytes (%s)\n", capacityBytes, formatBytes(capacityBytes))
	fmt.Printf("Max object size:    %d bytes (%s)\n", maxObjectSizeBytes, formatBytes(maxObjectSizeBytes))
	fmt.Printf("Max object age:     %s\n", formatDuration(maxAge))
	fmt.Printf("Utilization:        %.1f%%\n", utilization)

	return nil
}

func handleCacheSync(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("cache sync", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Printf(`Rebuild the cache index from the content on disk

Usage:
  blobcab cache sync

This command walks the cache data directory, re-indexes every content file
found there and drops index entries whose content has disappeared. Use it
after a crash or after tampering with the cache directory by hand.

Examples:
  blobcab cache sync
  blobcab --config /etc/blobcab.toml cache sync
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	cacheInstance := openCache(&globalConfig.LocalCache)
	defer cacheInstance.Close()

	if err := cacheInstance.SyncFromDisk(); err != nil {
		logger.Fatalf("Failed to sync cache from disk: %v", err)
	}

	objectCount, totalSize, err := cacheInstance.GetStats()
	if err != nil {
		logger.Fatalf("Failed to get cache statistics after sync: %v", err)
	}

	fmt.Printf("Cache index rebuilt: %d objects, %s\n", objectCount, formatBytes(totalSize))
}

func handleCachePurge(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("cache purge", flag.ExitOnError)

	confirm := fs.Bool("confirm", false, "Confirm cache purge without interactive prompt")

	fs.Usage = func() {
		fmt.Printf(`Clear all cached content

Usage:
  blobcab cache purge [options]

Options:
  --confirm              Confirm cache purge without interactive prompt

This command removes all cached content from the local cache directory and
clears the cache index database. Cached content is refetched from the
backend on demand; nothing in the backend store is touched.

Examples:
  blobcab cache purge
  blobcab cache purge --confirm
`)
	}

	if err := fs.Parse(args); err != nil {
		logger.Fatalf("Error parsing flags: %v", err)
	}

	if err := purgeCacheWithConfirmation(ctx, &globalConfig.LocalCache, *confirm); err != nil {
		logger.Fatalf("Failed to purge cache: %v", err)
	}
}

func purgeCacheWithConfirmation(ctx context.Context, cfg *config.LocalCacheConfig, autoConfirm bool) error {
	if !autoConfirm {
		fmt.Printf("This will remove ALL cached content from %s\n", cfg.Path)
		fmt.Printf("This action cannot be undone. Are you sure? (y/N): ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(response) != "y" && strings.ToLower(response) != "yes" {
			fmt.Println("Cache purge cancelled.")
			return nil
		}
	}

	cacheInstance := openCache(cfg)
	defer cacheInstance.Close()

	objectCount, totalSize, err := cacheInstance.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get cache statistics before purge: %w", err)
	}

	fmt.Printf("Purging %d objects (%s) from cache...\n", objectCount, formatBytes(totalSize))

	if err := cacheInstance.PurgeAll(ctx); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	fmt.Printf("Cache purged successfully.\n")
	return nil
}
