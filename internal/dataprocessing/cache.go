package dataprocessing

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	apperrors "scdash/internal/errors"
)

// CacheObserver is notified of every cache lookup.
type CacheObserver interface {
	RecordCacheLookup(ctx context.Context, hit bool)
}

// CacheStats is a point-in-time view of the cache.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// TableCache memoizes parsed tables by the BLAKE2b-256 digest of the file
// contents and parse options, so an edited file is never served stale.
// Returned tables are shared between callers and must not be mutated.
type TableCache struct {
	mu       sync.RWMutex
	entries  map[string]*Table
	group    singleflight.Group
	observer CacheObserver

	hits   atomic.Int64
	misses atomic.Int64
}

// NewTableCache creates an empty cache. observer may be nil.
func NewTableCache(observer CacheObserver) *TableCache {
	return &TableCache{
		entries:  make(map[string]*Table),
		observer: observer,
	}
}

// ContentKey derives the cache key of data parsed with format and opts.
func ContentKey(data []byte, format Format, opts LoadOptions) string {
	h, _ := blake2b.New256(nil)
	h.Write(data)
	fmt.Fprintf(h, "\x00%s\x00%d\x00%s", format, opts.Delimiter, opts.Sheet)
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads path and returns its parsed table with the cache key.
func (c *TableCache) Load(ctx context.Context, path string, opts LoadOptions) (*Table, string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", apperrors.NewIOError("cannot read input file", err).WithContext("file", path)
	}
	return c.LoadBytes(ctx, data, format, opts)
}

// LoadBytes returns the parsed table for data, parsing it at most once per
// distinct content even under concurrent callers.
func (c *TableCache) LoadBytes(ctx context.Context, data []byte, format Format, opts LoadOptions) (*Table, string, error) {
	key := ContentKey(data, format, opts)

	c.mu.RLock()
	t, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.record(ctx, true)
		return t, key, nil
	}
	c.record(ctx, false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		parsed, err := LoadBytes(data, format, opts)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = parsed
		c.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.(*Table), key, nil
}

// Invalidate drops one entry and reports whether it existed.
func (c *TableCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear drops every entry and returns how many were removed.
func (c *TableCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*Table)
	return n
}

// Stats returns entry and lookup counts.
func (c *TableCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *TableCache) record(ctx context.Context, hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.observer != nil {
		c.observer.RecordCacheLookup(ctx, hit)
	}
}
