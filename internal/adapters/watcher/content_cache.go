package watcher

import (
	"os"
	"sync"
	"unique"

	"github.com/cespare/xxhash/v2"
)

// contentCache remembers a content digest per watched file so that writes
// which do not change the bytes (touch, atomic re-save) produce no
// invalidation.
type contentCache struct {
	mu      sync.Mutex
	digests map[unique.Handle[string]]uint64
}

func newContentCache() *contentCache {
	return &contentCache{
		digests: make(map[unique.Handle[string]]uint64),
	}
}

// changed rehashes the file and reports whether its content differs from
// the last observation. Unreadable paths and directories count as changed,
// since the event still signals upstream data movement.
func (c *contentCache) changed(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		c.forget(path)
		return true
	}

	digest := xxhash.Sum64(data)
	handle := unique.Make(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.digests[handle]; ok && prev == digest {
		return false
	}
	c.digests[handle] = digest
	return true
}

func (c *contentCache) forget(path string) {
	c.mu.Lock()
	delete(c.digests, unique.Make(path))
	c.mu.Unlock()
}
