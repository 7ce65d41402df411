package metrics

import (
	"context"
	"time"

	"github.com/blobcab/blobcab/logger"
)

// CacheStatsProvider is an interface for cache statistics
type CacheStatsProvider interface {
	GetStats() (objectCount int64, totalSize int64, err error)
}

// Collector periodically refreshes gauge metrics that are derived from
// component state rather than incremented at call sites.
type Collector struct {
	cacheProvider CacheStatsProvider
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(cacheProvider CacheStatsProvider, interval time.Duration) *Collector {
	if interval == 0 {
		interval = 60 * time.Second
	}

	return &Collector{
		cacheProvider: cacheProvider,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger.Info("MetricsCollector started", "interval", c.interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("MetricsCollector stopping due to context cancellation")
			return
		case <-c.stopCh:
			logger.Info("MetricsCollector stopping due to stop signal")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Stop signals the collector to stop
func (c *Collector) Stop() {
	close(c.stopCh)
}

// collect refreshes all derived metrics
func (c *Collector) collect() {
	if c.cacheProvider == nil {
		return
	}

	objectCount, totalSize, err := c.cacheProvider.GetStats()
	if err != nil {
		logger.Error("MetricsCollector: error collecting cache metrics", "error", err)
		return
	}

	CacheObjectsTotal.Set(float64(objectCount))
	CacheSizeBytes.Set(float64(totalSize))
	logger.Debug("MetricsCollector: updated cache metrics", "objects", objectCount,
		"size_bytes", totalSize)
}
