package storage

import "sync"

// keyedCollection is a generic key-indexed mapping with upsert / get-by-id /
// list-with-filter semantics (spec §4.1: events, predictions, articles).
// The surveillance engine never owns the shape of these records — they
// belong to the external article/prediction/event collaborators described
// in spec §1 — so the collection is generic over whatever record type the
// caller supplies.
type keyedCollection[T any] struct {
	mu    sync.RWMutex
	byID  map[string]T
	idFn  func(T) string
}

func newKeyedCollection[T any](idFn func(T) string) *keyedCollection[T] {
	return &keyedCollection[T]{byID: make(map[string]T), idFn: idFn}
}

// Upsert inserts or replaces the record keyed by idFn(v).
func (c *keyedCollection[T]) Upsert(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[c.idFn(v)] = v
}

// Get returns the record with the given id.
func (c *keyedCollection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byID[id]
	return v, ok
}

// List returns every record for which filter returns true. A nil filter
// returns everything.
func (c *keyedCollection[T]) List(filter func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.byID))
	for _, v := range c.byID {
		if filter == nil || filter(v) {
			out = append(out, v)
		}
	}
	return out
}

// Len reports the number of records currently held.
func (c *keyedCollection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
