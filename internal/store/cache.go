package store

import (
	"sync"
	"time"

	"github.com/radius-labs/visibility-cli/internal/model"
)

// DefaultFallbackSize bounds the in-memory fallback cache.
const DefaultFallbackSize = 64

// FallbackCache is a bounded in-memory copy of recently persisted analyses.
// When the database is unreachable, reads are served from here so a storage
// outage degrades lookups instead of failing them. The oldest entry is
// evicted first.
type FallbackCache struct {
	mu      sync.Mutex
	cap     int
	entries map[string]*model.AnalysisRecord
	order   []string
}

// NewFallbackCache creates a cache bounded to size entries. Sizes below one
// fall back to DefaultFallbackSize.
func NewFallbackCache(size int) *FallbackCache {
	if size < 1 {
		size = DefaultFallbackSize
	}
	return &FallbackCache{
		cap:     size,
		entries: make(map[string]*model.AnalysisRecord, size),
	}
}

// Put stores a copy of the record, evicting the oldest entry when full.
func (c *FallbackCache) Put(rec *model.AnalysisRecord) {
	if rec == nil || rec.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *rec
	if _, exists := c.entries[rec.ID]; !exists {
		for len(c.order) >= c.cap {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, rec.ID)
	}
	c.entries[rec.ID] = &cp
}

// Get returns the cached record for id, or nil.
func (c *FallbackCache) Get(id string) *model.AnalysisRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.entries[id]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// Drop removes one entry. Mutations invalidate their cached record so the
// next read refreshes from the store.
func (c *FallbackCache) Drop(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, key := range c.order {
		if key == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// LatestForDomain returns the newest cached record for a domain, or nil.
func (c *FallbackCache) LatestForDomain(domain string) *model.AnalysisRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *model.AnalysisRecord
	for _, rec := range c.entries {
		if rec.Domain != domain {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// LatestForCaller returns the caller's newest cached record for a domain
// created after the cutoff, or nil.
func (c *FallbackCache) LatestForCaller(domain, callerID string, since time.Time) *model.AnalysisRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *model.AnalysisRecord
	for _, rec := range c.entries {
		if rec.Domain != domain || rec.CallerID != callerID || !rec.CreatedAt.After(since) {
			continue
		}
		if best == nil || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// Len returns the number of cached entries.
func (c *FallbackCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
