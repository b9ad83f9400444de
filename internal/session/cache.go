package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"treblereport/domain/dataset"
	"treblereport/internal"
)

var cacheLogger = internal.DefaultLogger.With("ParseCache")

// LoadFunc decodes an upload into a table
type LoadFunc func() (*dataset.Table, error)

// ParseCache memoizes decoded tables by content hash and decode options so an unchanged
// upload is parsed once. Cached tables are shared and must be treated as read-only.
type ParseCache struct {
	mu     sync.RWMutex
	tables map[string]*dataset.Table
	group  singleflight.Group

	hits, misses int
}

// NewParseCache creates an empty cache
func NewParseCache() *ParseCache {
	return &ParseCache{tables: make(map[string]*dataset.Table)}
}

// Key derives the cache key for content decoded with the given options key
func Key(content []byte, optionsKey string) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]) + "|" + optionsKey
}

// GetOrLoad returns the cached table for key or runs load once, even under concurrent
// callers. Failed loads are not cached.
func (c *ParseCache) GetOrLoad(key string, load LoadFunc) (*dataset.Table, error) {
	c.mu.RLock()
	t, ok := c.tables[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return t, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.tables[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		t, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[key] = t
		c.misses++
		c.mu.Unlock()
		cacheLogger.Debug("cached table %s (%d rows)", shortKey(key), len(t.Rows))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dataset.Table), nil
}

// Forget drops one entry
func (c *ParseCache) Forget(key string) {
	c.mu.Lock()
	delete(c.tables, key)
	c.mu.Unlock()
}

// Stats reports entries, hits and misses
func (c *ParseCache) Stats() (entries, hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables), c.hits, c.misses
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
