// Package store provides the in-memory keyed collections that back the
// resource layer, together with the per-collection cache of identifiers
// known to be absent upstream.
package store

import (
	"strconv"
	"strings"
	"sync"
)

// Mode selects how Mutate applies incoming items to a collection.
type Mode string

const (
	// ModeReplace atomically replaces the whole collection with the
	// incoming items.
	ModeReplace Mode = "replace"
	// ModeRefresh shallow-merges each incoming item over any existing
	// item with the same id, and appends items with new ids.
	ModeRefresh Mode = "refresh"
	// ModeRemove deletes the entry matching each incoming item's id.
	// Absent entries are skipped.
	ModeRemove Mode = "remove"
)

// IDField is the record field holding the unique identifier.
const IDField = "id"

// Item is an opaque resource record. The only field the store interprets
// is "id"; everything else travels untouched.
type Item map[string]any

// ID returns the item's identifier in canonical string form.
func (it Item) ID() string {
	return NormalizeID(it[IDField])
}

// NormalizeID canonicalizes an identifier to a string so that numeric and
// string representations of the same id compare equal everywhere
// (collections, not-found cache, request parameters). Integral floats
// collapse to their integer form, so 7, "7" and 7.0 all normalize to "7".
func NormalizeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float32:
		return normalizeFloat(float64(id))
	case float64:
		return normalizeFloat(id)
	default:
		return ""
	}
}

func normalizeFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Store holds named collections of items keyed by normalized id.
// Collections must be defined before they can be mutated; an undefined
// collection name is a programmer error surfaced as ErrUndefinedCollection.
//
// All access is guarded internally, so a Store may be shared across
// goroutines even though the surrounding flow is sequential.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]Item
}

// New creates a Store and defines an empty collection for each given name.
func New(names ...string) *Store {
	s := &Store{collections: make(map[string]map[string]Item)}
	for _, name := range names {
		s.collections[name] = make(map[string]Item)
	}
	return s
}

// Define creates an empty collection under name. Defining an existing
// collection is a no-op and preserves its contents.
func (s *Store) Define(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = make(map[string]Item)
	}
}

// Has reports whether a collection is addressable under name.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok
}

// Mutate applies items to the named collection according to mode.
// A per-item failure (an item without an id under refresh/remove) skips
// that item and continues with the rest; it never aborts the batch.
func (s *Store) Mutate(name string, items []Item, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, ok := s.collections[name]
	if !ok {
		return ErrUndefinedCollection
	}

	switch mode {
	case ModeReplace:
		replacement := make(map[string]Item, len(items))
		for _, item := range items {
			id := item.ID()
			if id == "" {
				continue
			}
			replacement[id] = item
		}
		s.collections[name] = replacement
	case ModeRefresh, "":
		for _, item := range items {
			id := item.ID()
			if id == "" {
				continue
			}
			existing, found := collection[id]
			if !found {
				collection[id] = item
				continue
			}
			for key, value := range item {
				existing[key] = value
			}
		}
	case ModeRemove:
		for _, item := range items {
			delete(collection, item.ID())
		}
	default:
		return ErrUnknownMode
	}
	return nil
}

// Get looks up an item by id in the named collection.
func (s *Store) Get(name string, id any) (Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, ok := s.collections[name]
	if !ok {
		return nil, false, ErrUndefinedCollection
	}
	item, found := collection[NormalizeID(id)]
	return item, found, nil
}

// Items returns a snapshot of the named collection. Order is unspecified.
func (s *Store) Items(name string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, ok := s.collections[name]
	if !ok {
		return nil, ErrUndefinedCollection
	}
	items := make([]Item, 0, len(collection))
	for _, item := range collection {
		items = append(items, item)
	}
	return items, nil
}

// Len returns the number of items in the named collection.
func (s *Store) Len(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, ok := s.collections[name]
	if !ok {
		return 0, ErrUndefinedCollection
	}
	return len(collection), nil
}
