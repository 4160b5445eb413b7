package tracker

import (
	"sync"
	"time"

	"github.com/foliosync/foliosync/internal/models"
)

// SnapshotCache holds the most recent successful snapshot for status reads.
// Failed cycles leave the cached snapshot in place, so the display keeps
// showing the last good data.
type SnapshotCache struct {
	mu         sync.RWMutex
	snapshot   *models.PortfolioSnapshot
	lastUpdate time.Time
}

// NewSnapshotCache creates an empty cache
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Set replaces the cached snapshot. Nil snapshots are ignored.
func (c *SnapshotCache) Set(snapshot *models.PortfolioSnapshot) {
	if snapshot == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	c.lastUpdate = snapshot.CapturedAt
}

// Get returns a copy of the cached snapshot, false when nothing is cached yet.
// The copy keeps readers from mutating shared state.
func (c *SnapshotCache) Get() (*models.PortfolioSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil, false
	}
	return c.snapshot.Copy(), true
}

// LastUpdate returns the capture time of the cached snapshot, zero when empty
func (c *SnapshotCache) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}
