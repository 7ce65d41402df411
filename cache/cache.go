// Package cache provides a local disk cache for object content, addressed by
// BLAKE3 content hash.
//
// Content lives under <basePath>/data in a fan-out directory layout derived
// from the hash, with a SQLite index tracking size and entry time. When the
// total size exceeds the configured capacity the oldest entries are evicted
// first; independently, entries older than the configured maximum age are
// expired on every purge cycle.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/metrics"
)

const DataDir = "data"
const IndexDB = "cache_index.db"
const PurgeBatchSize = 1000

// ErrObjectTooLarge is returned by Put when content exceeds the configured
// per-object size limit.
var ErrObjectTooLarge = errors.New("object exceeds cache size limit")

// Cache is a disk-backed content cache with a SQLite index. All methods are
// safe for concurrent use.
type Cache struct {
	basePath      string
	capacity      int64
	maxObjectSize int64
	purgeInterval time.Duration
	maxAge        time.Duration
	db            *sql.DB
	mu            sync.Mutex

	cacheHits   int64
	cacheMisses int64
	startTime   time.Time
}

// New opens (or creates) a cache rooted at basePath. capacity bounds the total
// content size on disk, maxObjectSize the size of a single cacheable object,
// and maxAge how long an entry may live before the purge cycle expires it.
func New(basePath string, capacity, maxObjectSize int64, purgeInterval, maxAge time.Duration) (*Cache, error) {
	basePath = filepath.Clean(strings.TrimSpace(basePath))
	if basePath == "" || basePath == "." {
		return nil, fmt.Errorf("cache base path cannot be empty")
	}

	dataDir := filepath.Join(basePath, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache data path %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(basePath, IndexDB)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index DB: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		// WAL is an optimization, not a requirement.
		logger.Warn("CACHE: failed to set PRAGMA journal_mode = WAL", "error", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache_index (
		content_hash TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_created_at ON cache_index(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache DB ping failed: %w", err)
	}
	return &Cache{
		basePath:      basePath,
		capacity:      capacity,
		maxObjectSize: maxObjectSize,
		purgeInterval: purgeInterval,
		maxAge:        maxAge,
		db:            db,
		startTime:     time.Now(),
	}, nil
}

// Close closes the cache index database.
func (c *Cache) Close() error {
	if c.db != nil {
		logger.Debug("CACHE: closing cache index database")
		return c.db.Close()
	}
	return nil
}

// MaxObjectSize returns the largest content size the cache accepts.
func (c *Cache) MaxObjectSize() int64 {
	return c.maxObjectSize
}

// Get returns a reader over the cached content for contentHash, or (nil, nil)
// when the content is not cached. The caller owns the returned reader.
func (c *Cache) Get(contentHash string) (io.ReadCloser, error) {
	path := c.pathFor(contentHash)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			atomic.AddInt64(&c.cacheMisses, 1)
			metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
			return nil, nil
		}
		metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("failed to open cached content %s: %w", contentHash, err)
	}
	atomic.AddInt64(&c.cacheHits, 1)
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return f, nil
}

// Put stores content under its hash. Content larger than the object size
// limit is rejected. Concurrent puts of the same hash are harmless.
func (c *Cache) Put(contentHash string, data []byte) error {
	if int64(len(data)) > c.maxObjectSize {
		metrics.CacheOperationsTotal.WithLabelValues("put", "rejected").Inc()
		return fmt.Errorf("content size %d exceeds limit %d: %w", len(data), c.maxObjectSize, ErrObjectTooLarge)
	}

	path := c.pathFor(contentHash)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write to a temporary file first so readers never observe partial
	// content, then move it into place atomically.
	tempFile, err := os.CreateTemp(dir, "put-*.tmp")
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to write temporary cache file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), path); err != nil {
		// A concurrent Put of the same hash may have won the rename.
		if !os.IsExist(err) {
			metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
			return fmt.Errorf("failed to move content into cache location %s: %w", path, err)
		}
		logger.Debug("CACHE: content appeared during rename, assuming concurrent cache fill", "hash", contentHash)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.trackEntry(contentHash, int64(len(data))); err != nil {
		// The content is on disk but untracked; SyncFromDisk or the next
		// purge cycle reconciles it.
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to track cached content %s: %w", contentHash, err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("put", "success").Inc()
	logger.Debug("CACHE: cached content", "hash", contentHash, "size", len(data))
	return nil
}

// Exists reports whether content for contentHash is indexed. The index is
// consulted rather than the filesystem to avoid stat races.
func (c *Cache) Exists(contentHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_index WHERE content_hash = ?`, contentHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query cache index: %w", err)
	}

	exists := count > 0
	if exists {
		atomic.AddInt64(&c.cacheHits, 1)
	} else {
		atomic.AddInt64(&c.cacheMisses, 1)
	}
	return exists, nil
}

// Delete removes the content for contentHash from disk and index. Deleting
// absent content succeeds.
func (c *Cache) Delete(contentHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(contentHash)
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			metrics.CacheOperationsTotal.WithLabelValues("delete", "error").Inc()
			return fmt.Errorf("failed to remove cached content %s: %w", contentHash, err)
		}
	}
	// The index entry goes away even when the file was already gone.
	if _, err := c.db.Exec(`DELETE FROM cache_index WHERE content_hash = ?`, contentHash); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("failed to remove index entry for %s: %w", contentHash, err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("delete", "success").Inc()
	removeEmptyParents(path, filepath.Join(c.basePath, DataDir))
	return nil
}

func (c *Cache) trackEntry(contentHash string, size int64) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO cache_index (content_hash, size, created_at) VALUES (?, ?, ?)`,
		contentHash, size, time.Now().UTC())
	return err
}

type diskEntry struct {
	hash    string
	size    int64
	modTime time.Time
}

// SyncFromDisk rebuilds the index from the content actually on disk. It is
// meant for startup, to reconcile after crashes or manual tampering with the
// cache directory.
func (c *Cache) SyncFromDisk() error {
	logger.Debug("CACHE: starting disk sync")
	dataDir := filepath.Join(c.basePath, DataDir)

	// Phase 1: walk the disk and collect entries without holding the lock.
	var entries []diskEntry
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			logger.Warn("CACHE: failed to stat file during sync", "path", path, "error", statErr)
			return nil
		}
		hash, ok := c.hashFromPath(path)
		if !ok {
			logger.Warn("CACHE: skipping unrecognized file during sync", "path", path)
			return nil
		}
		entries = append(entries, diskEntry{hash: hash, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk cache directory: %w", err)
	}

	if len(entries) > 0 {
		logger.Info("CACHE: found content on disk, updating index", "files", len(entries))

		// Phase 2: update the index in one transaction under a short lock.
		c.mu.Lock()
		tx, err := c.db.Begin()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to begin transaction for disk sync: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO cache_index (content_hash, size, created_at) VALUES (?, ?, ?)`)
		if err != nil {
			tx.Rollback()
			c.mu.Unlock()
			return fmt.Errorf("failed to prepare statement for disk sync: %w", err)
		}
		for _, e := range entries {
			if _, err := stmt.Exec(e.hash, e.size, e.modTime.UTC()); err != nil {
				logger.Warn("CACHE: error tracking entry during sync", "hash", e.hash, "error", err)
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to commit disk sync transaction: %w", err)
		}
		c.mu.Unlock()
	}

	// Phase 3: drop index rows whose content vanished, and empty directories.
	if err := c.RemoveStaleEntries(context.Background()); err != nil {
		return fmt.Errorf("failed to remove stale index entries after sync: %w", err)
	}
	return c.cleanupEmptyDirectories()
}

// StartPurgeLoop runs purge cycles until ctx is canceled, starting with an
// immediate cycle.
func (c *Cache) StartPurgeLoop(ctx context.Context) {
	go func() {
		c.runPurgeCycle(ctx)

		ticker := time.NewTicker(c.purgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runPurgeCycle(ctx)
			}
		}
	}()
}

func (c *Cache) runPurgeCycle(ctx context.Context) {
	logger.Debug("CACHE: running purge cycle")
	if err := c.PurgeIfNeeded(ctx); err != nil {
		logger.Warn("CACHE: capacity purge failed", "error", err)
	}
	if err := c.RemoveStaleEntries(ctx); err != nil {
		logger.Warn("CACHE: stale entry cleanup failed", "error", err)
	}
	if err := c.PurgeExpired(ctx); err != nil {
		logger.Warn("CACHE: expiry purge failed", "error", err)
	}
}

// PurgeIfNeeded evicts the oldest entries until total size is back under
// capacity. Lock hold time is kept short: candidates are selected under the
// lock, files deleted without it, and the index updated in one batch.
func (c *Cache) PurgeIfNeeded(ctx context.Context) error {
	hashesToPurge, err := c.getPurgeCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get purge candidates: %w", err)
	}
	if len(hashesToPurge) == 0 {
		return nil
	}

	removed := c.deleteContent(hashesToPurge)
	if len(removed) == 0 {
		logger.Warn("CACHE: eviction selected entries but none could be removed from disk")
		return nil
	}

	if err := c.removeIndexEntries(ctx, removed); err != nil {
		return fmt.Errorf("failed to remove evicted entries from index: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("evict", "success").Add(float64(len(removed)))
	logger.Info("CACHE: evicted entries over capacity", "evicted", len(removed))

	dataDir := filepath.Join(c.basePath, DataDir)
	for _, hash := range removed {
		removeEmptyParents(c.pathFor(hash), dataDir)
	}
	return c.cleanupEmptyDirectories()
}

// getPurgeCandidates returns the oldest entries whose combined size brings the
// cache back under capacity.
func (c *Cache) getPurgeCandidates(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalSize int64
	row := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM cache_index`)
	if err := row.Scan(&totalSize); err != nil {
		return nil, fmt.Errorf("failed to get total cache size: %w", err)
	}
	if totalSize <= c.capacity {
		return nil, nil
	}

	logger.Info("CACHE: size exceeds capacity, selecting entries to evict", "size", totalSize, "capacity", c.capacity)
	amountToFree := totalSize - c.capacity

	rows, err := c.db.QueryContext(ctx, `SELECT content_hash, size FROM cache_index ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query purge candidates: %w", err)
	}
	defer rows.Close()

	var hashes []string
	var freedSoFar int64
	for rows.Next() {
		var hash string
		var size int64
		if err := rows.Scan(&hash, &size); err != nil {
			logger.Warn("CACHE: error scanning purge candidate", "error", err)
			continue
		}
		hashes = append(hashes, hash)
		freedSoFar += size
		if freedSoFar >= amountToFree {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purge candidates: %w", err)
	}
	return hashes, nil
}

// deleteContent removes content files from disk and returns the hashes that
// are now gone.
func (c *Cache) deleteContent(hashes []string) []string {
	var removed []string
	for _, hash := range hashes {
		path := c.pathFor(hash)
		if err := os.Remove(path); err == nil || os.IsNotExist(err) {
			removed = append(removed, hash)
		} else {
			logger.Warn("CACHE: failed to remove content during purge", "hash", hash, "error", err)
		}
	}
	return removed
}

// removeIndexEntries deletes a batch of hashes from the index in one
// transaction.
func (c *Cache) removeIndexEntries(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for index removal: %w", err)
	}
	defer tx.Rollback()

	// SQLite has no array parameters; the placeholder list is built from
	// internally generated hashes, never user input.
	query := `DELETE FROM cache_index WHERE content_hash IN (?` + strings.Repeat(",?", len(hashes)-1) + `)`
	args := make([]interface{}, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to batch delete from index: %w", err)
	}
	return tx.Commit()
}

// PurgeExpired removes entries older than the configured maximum age,
// regardless of capacity. A zero maximum age disables expiry.
func (c *Cache) PurgeExpired(ctx context.Context) error {
	if c.maxAge <= 0 {
		return nil
	}
	threshold := time.Now().UTC().Add(-c.maxAge)

	rows, err := c.db.QueryContext(ctx, `SELECT content_hash FROM cache_index WHERE created_at < ?`, threshold)
	if err != nil {
		return fmt.Errorf("failed to query expired entries: %w", err)
	}
	defer rows.Close()

	var batch []string
	expired := 0
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			logger.Warn("CACHE: error scanning expired entry", "error", err)
			continue
		}
		batch = append(batch, hash)
		if len(batch) >= PurgeBatchSize {
			expired += c.expireBatch(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating expired entries: %w", err)
	}
	if len(batch) > 0 {
		expired += c.expireBatch(ctx, batch)
	}

	if expired > 0 {
		metrics.CacheOperationsTotal.WithLabelValues("expire", "success").Add(float64(expired))
		logger.Info("CACHE: expired aged entries", "expired", expired, "max_age", c.maxAge)
	}
	return nil
}

func (c *Cache) expireBatch(ctx context.Context, hashes []string) int {
	removed := c.deleteContent(hashes)
	if len(removed) == 0 {
		return 0
	}
	if err := c.removeIndexEntries(ctx, removed); err != nil {
		logger.Warn("CACHE: failed to remove expired entries from index", "error", err)
		return 0
	}
	dataDir := filepath.Join(c.basePath, DataDir)
	for _, hash := range removed {
		removeEmptyParents(c.pathFor(hash), dataDir)
	}
	return len(removed)
}

// RemoveStaleEntries drops index rows whose content no longer exists on disk.
func (c *Cache) RemoveStaleEntries(ctx context.Context) error {
	// Phase 1: read all indexed hashes. WAL mode makes the lockless read safe.
	rows, err := c.db.QueryContext(ctx, `SELECT content_hash FROM cache_index`)
	if err != nil {
		return fmt.Errorf("failed to query cache index: %w", err)
	}
	defer rows.Close()

	var allHashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			logger.Warn("CACHE: error scanning hash during stale check", "error", err)
			continue
		}
		allHashes = append(allHashes, hash)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating indexed hashes: %w", err)
	}

	// Phase 2: stat each file without holding the lock.
	var stale []string
	for _, hash := range allHashes {
		if _, err := os.Stat(c.pathFor(hash)); os.IsNotExist(err) {
			stale = append(stale, hash)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	// Phase 3: batch delete under a short lock.
	if err := c.removeIndexEntries(ctx, stale); err != nil {
		return fmt.Errorf("failed to remove stale entries: %w", err)
	}
	logger.Info("CACHE: removed stale index entries", "removed", len(stale))
	return nil
}

// cleanupEmptyDirectories prunes empty fan-out directories left behind by
// evictions.
func (c *Cache) cleanupEmptyDirectories() error {
	dataDir := filepath.Join(c.basePath, DataDir)
	return filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries can vanish mid-walk when purges overlap; skip those.
			var pathError *fs.PathError
			if errors.As(err, &pathError) && errors.Is(pathError.Err, os.ErrNotExist) && pathError.Path == path {
				return nil
			}
			logger.Warn("CACHE: error walking cache directory", "path", path, "error", err)
			return err
		}
		if !d.IsDir() || path == dataDir {
			return nil
		}

		// Only succeeds when the directory is empty.
		removeErr := os.Remove(path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && !isDirNotEmptyError(removeErr) {
			logger.Warn("CACHE: unexpected error removing directory", "path", path, "error", removeErr)
		}
		return nil
	})
}

func removeEmptyParents(path string, stopAt string) {
	for {
		dir := filepath.Dir(path)
		if dir == stopAt || dir == "." || dir == "/" {
			break
		}
		// Fails when non-empty, which ends the climb.
		if err := os.Remove(dir); err != nil {
			break
		}
		path = dir
	}
}

// pathFor maps a content hash to its on-disk location, fanning out over two
// directory levels to keep directories small.
func (c *Cache) pathFor(contentHash string) string {
	if len(contentHash) < 4 {
		logger.Warn("CACHE: short content hash, storing without fan-out", "hash", contentHash)
		return filepath.Join(c.basePath, DataDir, contentHash)
	}
	return filepath.Join(c.basePath, DataDir, contentHash[:2], contentHash[2:4], contentHash[4:])
}

// hashFromPath reverses pathFor for files found on disk. Reassembling the
// fan-out segments restores the original hash.
func (c *Cache) hashFromPath(path string) (string, bool) {
	dataDir := filepath.Join(c.basePath, DataDir)
	rel, err := filepath.Rel(dataDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	hash := strings.ReplaceAll(rel, string(os.PathSeparator), "")
	if hash == "" || strings.HasSuffix(hash, ".tmp") {
		return "", false
	}
	return hash, true
}

func isDirNotEmptyError(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY)
}

// Metrics holds cache hit/miss counters for status reporting.
type Metrics struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	HitRate   float64   `json:"hit_rate"`
	TotalOps  int64     `json:"total_ops"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
}

// GetStats returns the number of cached objects and their total size.
func (c *Cache) GetStats() (objectCount int64, totalSize int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cache_index`)
	if err := row.Scan(&objectCount, &totalSize); err != nil {
		return 0, 0, fmt.Errorf("failed to query cache statistics: %w", err)
	}
	return objectCount, totalSize, nil
}

// GetMetrics returns hit/miss counters since startup or the last reset.
func (c *Cache) GetMetrics() *Metrics {
	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)
	totalOps := hits + misses

	var hitRate float64
	if totalOps > 0 {
		hitRate = float64(hits) / float64(totalOps) * 100
	}

	return &Metrics{
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		TotalOps:  totalOps,
		StartTime: c.startTime,
		Uptime:    time.Since(c.startTime).String(),
	}
}

// ResetMetrics zeroes the hit/miss counters.
func (c *Cache) ResetMetrics() {
	atomic.StoreInt64(&c.cacheHits, 0)
	atomic.StoreInt64(&c.cacheMisses, 0)
	c.startTime = time.Now()
}

// PurgeAll removes all cached content and clears the index.
func (c *Cache) PurgeAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger.Info("CACHE: purging all cached content")

	dataDir := filepath.Join(c.basePath, DataDir)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("failed to remove cache data directory %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate cache data directory %s: %w", dataDir, err)
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_index`); err != nil {
		return fmt.Errorf("failed to clear cache index: %w", err)
	}
	return nil
}
