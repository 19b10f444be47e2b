package catalog

import (
	"sync"
	"time"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// SnapshotCache holds catalog snapshots keyed by tenant.
// Implementations must be safe for concurrent use and must never hand out a
// partially written snapshot.
type SnapshotCache interface {
	Get(tenantID string) ([]models.Property, bool)
	Put(tenantID string, props []models.Property, ttl time.Duration)
	Invalidate(tenantID string)
}

type snapshot struct {
	props     []models.Property
	expiresAt time.Time
}

// MemoryCache is a process-local SnapshotCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]snapshot
	now     func() time.Time
}

// NewMemoryCache creates an empty cache. now defaults to time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]snapshot), now: now}
}

func (c *MemoryCache) Get(tenantID string) ([]models.Property, bool) {
	c.mu.RLock()
	e, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.props, true
}

func (c *MemoryCache) Put(tenantID string, props []models.Property, ttl time.Duration) {
	c.mu.Lock()
	c.entries[tenantID] = snapshot{props: props, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}

// Len reports the number of cached tenants, expired entries included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
