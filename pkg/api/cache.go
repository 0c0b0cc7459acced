package api

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// resultCache keeps the most recent rendered conversions, keyed by content hash
type resultCache struct {
	mu      sync.Mutex
	size    int
	entries map[string][]byte
	order   []string
}

func newResultCache(size int) *resultCache {
	return &resultCache{size: size, entries: make(map[string][]byte)}
}

// cacheKey hashes the uploaded document together with the request parameters
func cacheKey(data []byte, params string) string {
	buf := make([]byte, 0, len(data)+1+len(params))
	buf = append(buf, data...)
	buf = append(buf, 0)
	buf = append(buf, params...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// put stores a result, evicting the oldest entries beyond the cache size
func (c *resultCache) put(key string, value []byte) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	c.entries[key] = value
	c.order = append(c.order, key)
	for len(c.order) > c.size {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
