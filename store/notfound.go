package store

import "sync"

// NotFoundCache records identifiers confirmed absent from the upstream
// source, so repeated lookups for the same missing id can resolve locally.
// It shares id normalization with Store: an id is tracked under the same
// canonical string regardless of its numeric or string representation.
//
// The cache is reset together with its collection and is never persisted.
type NotFoundCache struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewNotFoundCache creates an empty cache.
func NewNotFoundCache() *NotFoundCache {
	return &NotFoundCache{ids: make(map[string]struct{})}
}

// MarkNotFound records id as absent upstream. Marking an already-marked
// id is a no-op.
func (c *NotFoundCache) MarkNotFound(id any) {
	key := NormalizeID(id)
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = struct{}{}
}

// ClearNotFound forgets a previously recorded absence. Clearing an
// untracked id is a no-op.
func (c *NotFoundCache) ClearNotFound(id any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, NormalizeID(id))
}

// IsNotFound reports whether id is currently recorded as absent.
func (c *NotFoundCache) IsNotFound(id any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[NormalizeID(id)]
	return ok
}

// Clear empties the cache.
func (c *NotFoundCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[string]struct{})
}

// Len returns the number of tracked absences.
func (c *NotFoundCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
