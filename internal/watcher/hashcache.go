package watcher

import "sync"

// HashCache is the concrete, concurrency-safe sync.HashCache used by a
// Watcher for the markdown oscillation guard. The per-JSONL-file entity
// hashes are not kept here: they are separate sync.EntityHashCache maps
// held on Watcher itself.
type HashCache struct {
	mu sync.Mutex
	m  map[string]string
}

// NewHashCache returns an empty cache.
func NewHashCache() *HashCache {
	return &HashCache{m: map[string]string{}}
}

func (c *HashCache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[path]
	return v, ok
}

func (c *HashCache) Set(path, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[path] = hash
}
