// Package registry is the client's single source of truth for canonical
// entity instances: one table per entity kind, keyed by ID. It is a pure
// store; all cascading and cross-reference repair happens in the
// reconciliation layer.
package registry

import (
	"sync"

	"chatapp-client/models"
)

// Table is a mutex-guarded id -> entity map.
type Table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewTable returns an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[string]T)}
}

// Get returns the entity stored under id.
func (t *Table[T]) Get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.items[id]
	return v, ok
}

// Set stores the entity under id, replacing any previous instance.
func (t *Table[T]) Set(id string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[id] = v
}

// Delete removes the entity stored under id, if any.
func (t *Table[T]) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.items, id)
}

// Len returns the number of stored entities.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.items)
}

// IDs returns the stored keys in unspecified order.
func (t *Table[T]) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	return ids
}

// ForEach calls fn for every stored entity until fn returns false.
// fn must not mutate the table.
func (t *Table[T]) ForEach(fn func(id string, v T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for id, v := range t.items {
		if !fn(id, v) {
			return
		}
	}
}

// Registry holds the canonical table for each entity kind.
type Registry struct {
	Servers  *Table[*models.Server]
	Channels *Table[*models.Channel]
	Users    *Table[*models.User]
	Invites  *Table[*models.Invite]
}

// New returns a registry with empty tables.
func New() *Registry {
	return &Registry{
		Servers:  NewTable[*models.Server](),
		Channels: NewTable[*models.Channel](),
		Users:    NewTable[*models.User](),
		Invites:  NewTable[*models.Invite](),
	}
}
