package service

import (
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/race-predictor/internal/metrics"
	"github.com/yourusername/race-predictor/internal/models"
)

// SnapshotCache keeps recently loaded race snapshots in memory. Snapshots are
// immutable, so a cached value can be shared between concurrent runs.
// A nil *SnapshotCache is valid and caches nothing.
type SnapshotCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewSnapshotCache creates a cache with the given TTL, or returns nil when ttl <= 0
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		return nil
	}
	return &SnapshotCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

func snapshotKey(raceID int64) string {
	return strconv.FormatInt(raceID, 10)
}

// Get retrieves a cached snapshot
func (c *SnapshotCache) Get(raceID int64) (*models.RaceSnapshot, bool) {
	if c == nil {
		return nil, false
	}

	if v, found := c.cache.Get(snapshotKey(raceID)); found {
		if snapshot, ok := v.(*models.RaceSnapshot); ok {
			metrics.RecordSnapshotCacheLookup(true)
			return snapshot, true
		}
	}

	metrics.RecordSnapshotCacheLookup(false)
	return nil, false
}

// Set stores a snapshot under its race id
func (c *SnapshotCache) Set(snapshot *models.RaceSnapshot) {
	if c == nil || snapshot == nil {
		return
	}
	c.cache.Set(snapshotKey(snapshot.RaceID()), snapshot, c.ttl)
}

// Invalidate removes the snapshot of one race
func (c *SnapshotCache) Invalidate(raceID int64) {
	if c == nil {
		return
	}
	c.cache.Delete(snapshotKey(raceID))
}

// Flush removes every cached snapshot
func (c *SnapshotCache) Flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}

// Len returns the number of cached snapshots, including expired ones not yet evicted
func (c *SnapshotCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.ItemCount()
}
