// Package cache provides a small LRU in front of the tree's read path.
// The engine keeps it coherent on every mutation, so a hit is always the
// value the tree would return.
package cache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
)

func hashKey(key string) uint32 {
	return uint32(xxhash.Sum64String(key))
}

// ValueCache maps keys to their current values for point lookups.
// Not safe for concurrent use; the engine serializes access.
type ValueCache struct {
	lru *freelru.LRU[string, []byte]
}

// New creates a cache holding up to capacity entries.
func New(capacity uint32) (*ValueCache, error) {
	lru, err := freelru.New[string, []byte](capacity, hashKey)
	if err != nil {
		return nil, err
	}
	return &ValueCache{lru: lru}, nil
}

// Get returns the cached value for key, if present.
func (c *ValueCache) Get(key []byte) ([]byte, bool) {
	return c.lru.Get(string(key))
}

// Put records the current value for key, evicting the least recently
// used entry when full.
func (c *ValueCache) Put(key, value []byte) {
	c.lru.Add(string(key), value)
}

// Remove drops key from the cache.
func (c *ValueCache) Remove(key []byte) {
	c.lru.Remove(string(key))
}

// Purge empties the cache. Used when recovery rebuilds the tree from
// scratch.
func (c *ValueCache) Purge() {
	c.lru.Purge()
}
