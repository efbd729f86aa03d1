package render

import "sync"

// CacheEntry is a finished full resolution render.
type CacheEntry struct {
	Fingerprint string
	Raster      []byte
	SourcePath  string
}

// Cache holds at most one full resolution render. Storing a new entry
// replaces the old one.
type Cache struct {
	mu    sync.RWMutex
	entry *CacheEntry
}

// Get returns the entry if it matches both the image and the fingerprint.
func (c *Cache) Get(sourcePath, fingerprint string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil || c.entry.SourcePath != sourcePath || c.entry.Fingerprint != fingerprint {
		return CacheEntry{}, false
	}
	return *c.entry, true
}

// Put replaces the cached entry.
func (c *Cache) Put(e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &e
}

// Peek returns the current entry regardless of key.
func (c *Cache) Peek() (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return CacheEntry{}, false
	}
	return *c.entry, true
}
