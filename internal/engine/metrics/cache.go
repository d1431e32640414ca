package metrics

import (
	"sync"
	"time"
)

type cachedSnapshot struct {
	snapshot *Snapshot
	cachedAt time.Time
}

// SnapshotCache holds the last complete snapshot per range for ttl.
type SnapshotCache struct {
	store sync.Map // map[TimeRange]*cachedSnapshot
	ttl   time.Duration
	now   func() time.Time
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (c *SnapshotCache) Get(r TimeRange) (*Snapshot, bool) {
	val, ok := c.store.Load(r)
	if !ok {
		return nil, false
	}

	entry := val.(*cachedSnapshot)
	if c.now().Sub(entry.cachedAt) > c.ttl {
		c.store.Delete(r)
		return nil, false
	}

	return entry.snapshot, true
}

// Set stores s unless it is degraded.
func (c *SnapshotCache) Set(r TimeRange, s *Snapshot) {
	if s == nil || len(s.DegradedSources) > 0 {
		return
	}
	c.store.Store(r, &cachedSnapshot{snapshot: s, cachedAt: c.now()})
}
