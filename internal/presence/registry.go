// Package presence tracks which identities currently hold a live connection.
package presence

import (
	"sort"
	"sync"
)

// Handle is a live connection that events can be pushed to.
type Handle interface {
	// HandleID uniquely identifies the connection.
	HandleID() string
	// Send queues an event for the connection. It never blocks and reports
	// whether the event was accepted.
	Send(event string, payload any) bool
}

// Registry maps an identity to its current connection handle.
// At most one handle is held per identity; the most recent Set wins.
type Registry interface {
	// Set installs h for identity and returns the handle it replaced, if any.
	// The replaced handle is not closed.
	Set(identity string, h Handle) (prev Handle, replaced bool)
	// Get returns the handle registered for identity.
	Get(identity string) (Handle, bool)
	// Remove deletes identity only if its current handle is expected.
	Remove(identity string, expected Handle) bool
	// Identities returns the registered identities in sorted order.
	Identities() []string
	// Len returns the number of registered identities.
	Len() int
}

// Map is an in-memory Registry safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	entries map[string]Handle
}

// NewMap creates an empty registry.
func NewMap() *Map {
	return &Map{entries: make(map[string]Handle)}
}

func (m *Map) Set(identity string, h Handle) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.entries[identity]
	m.entries[identity] = h
	return prev, ok
}

func (m *Map) Get(identity string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.entries[identity]
	return h, ok
}

func (m *Map) Remove(identity string, expected Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[identity]
	if !ok || expected == nil || current.HandleID() != expected.HandleID() {
		return false
	}
	delete(m.entries, identity)
	return true
}

func (m *Map) Identities() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
