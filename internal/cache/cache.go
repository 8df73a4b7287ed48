package cache

import (
	"sort"
	"sync"

	"github.com/promotion/posecore/pkg/core"
)

// ReferenceCache holds the decoded ideal sequences keyed by sport/action.
// Entries are replaced wholesale and never mutated, so readers may use a
// returned sequence without holding the lock.
type ReferenceCache struct {
	mu   sync.RWMutex
	refs map[string]core.PoseSequence
}

func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{
		refs: make(map[string]core.PoseSequence),
	}
}

func (c *ReferenceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = make(map[string]core.PoseSequence)
}

// Put stores seq under its own sport and action.
func (c *ReferenceCache) Put(seq core.PoseSequence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[core.ReferenceKey(seq.Sport, seq.Action)] = seq
}

func (c *ReferenceCache) Ideal(sport, action string) (core.PoseSequence, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seq, ok := c.refs[core.ReferenceKey(sport, action)]
	return seq, ok
}

func (c *ReferenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.refs)
}

// Keys returns the cached reference keys in sorted order.
func (c *ReferenceCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.refs))
	for k := range c.refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
