package zoning

import (
	"container/list"
	"sync"
	"time"
)

// SnapshotCache holds loaded jurisdictions with least-recently-used
// eviction under an approximate memory limit. A limit of 0 is unlimited.
type SnapshotCache struct {
	maxMemory  int64
	usedMemory int64
	entries    map[string]*cacheEntry
	lru        *list.List // most recent at front
	mu         sync.Mutex
}

type cacheEntry struct {
	name         string
	snapshot     *Snapshot
	memorySize   int64
	element      *list.Element
	lastAccessed time.Time
	accessCount  int
}

// NewSnapshotCache creates a cache bounded to maxMemoryBytes.
func NewSnapshotCache(maxMemoryBytes int64) *SnapshotCache {
	return &SnapshotCache{
		maxMemory: maxMemoryBytes,
		entries:   make(map[string]*cacheEntry),
		lru:       list.New(),
	}
}

// Get returns a cached snapshot and marks it recently used.
func (c *SnapshotCache) Get(name string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	entry.lastAccessed = time.Now()
	entry.accessCount++
	c.lru.MoveToFront(entry.element)
	return entry.snapshot, true
}

// Add stores a snapshot, evicting least-recently-used entries to stay under
// the memory limit. A snapshot larger than the whole limit is still kept,
// alone, since the engine cannot serve the jurisdiction without it.
func (c *SnapshotCache) Add(name string, s *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[name]; ok {
		c.remove(entry)
	}

	size := s.memorySize()
	if c.maxMemory > 0 {
		for c.usedMemory+size > c.maxMemory && c.lru.Len() > 0 {
			c.remove(c.lru.Back().Value.(*cacheEntry))
		}
	}

	entry := &cacheEntry{
		name:         name,
		snapshot:     s,
		memorySize:   size,
		lastAccessed: time.Now(),
		accessCount:  1,
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[name] = entry
	c.usedMemory += size
}

// Remove drops a snapshot.
func (c *SnapshotCache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[name]; ok {
		c.remove(entry)
	}
}

// remove must be called with c.mu held.
func (c *SnapshotCache) remove(entry *cacheEntry) {
	c.lru.Remove(entry.element)
	delete(c.entries, entry.name)
	c.usedMemory -= entry.memorySize
}

// Stats returns cache statistics.
func (c *SnapshotCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Jurisdictions: make([]string, 0, len(c.entries)),
		UsedMemory:    c.usedMemory,
		MaxMemory:     c.maxMemory,
	}
	for e := c.lru.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*cacheEntry)
		stats.Jurisdictions = append(stats.Jurisdictions, entry.name)
		stats.TotalAccess += entry.accessCount
	}
	return stats
}

// CacheStats describes the snapshot cache.
type CacheStats struct {
	Jurisdictions []string `json:"jurisdictions"` // most recently used first
	UsedMemory    int64    `json:"used_memory"`
	MaxMemory     int64    `json:"max_memory"`
	TotalAccess   int      `json:"total_access"`
}
