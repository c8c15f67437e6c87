package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is a thread-safe LRU map whose entries also expire after a fixed TTL.
// Expired entries are dropped lazily on access.
type Memory[V any] struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	ttl        time.Duration
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type memoryEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// NewMemory creates an empty cache. A maxEntries of zero or less means no
// size bound.
func NewMemory[V any](clock clockwork.Clock, ttl time.Duration, maxEntries int) *Memory[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory[V]{
		clock:      clock,
		ttl:        ttl,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Get returns the live value for key and marks it recently used.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	el, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*memoryEntry[V])
	if !m.clock.Now().Before(e.expiresAt) {
		m.removeElement(el)
		return zero, false
	}
	m.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key with a fresh TTL, evicting the least recently
// used entry when over capacity.
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.clock.Now().Add(m.ttl)
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memoryEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return
	}

	m.entries[key] = m.order.PushFront(&memoryEntry[V]{key: key, value: value, expiresAt: expiresAt})
	if m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		m.removeElement(m.order.Back())
	}
}

// Delete removes key if present.
func (m *Memory[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeElement(el)
	}
}

// Len reports the number of stored entries, including any not yet lazily expired.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory[V]) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	e := m.order.Remove(el).(*memoryEntry[V])
	delete(m.entries, e.key)
}
