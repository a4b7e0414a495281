// Package buffer holds events that arrived before the replica rows they
// depend on. Entries wait keyed by the missing dependency and are drained
// atomically once it shows up.
package buffer

import "sync"

// Buffer is a keyed holding area. Drain removes and returns everything
// queued under a key in one step, so a concurrent Add either lands before
// the drain and is returned, or after it and waits for the next one.
type Buffer[K comparable, V any] struct {
	mu      sync.Mutex
	pending map[K][]V
}

// New returns an empty buffer.
func New[K comparable, V any]() *Buffer[K, V] {
	return &Buffer[K, V]{pending: make(map[K][]V)}
}

// Add queues v under key.
func (b *Buffer[K, V]) Add(key K, v V) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[key] = append(b.pending[key], v)
}

// Drain removes and returns all entries queued under key, oldest first.
func (b *Buffer[K, V]) Drain(key K) []V {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.pending[key]
	delete(b.pending, key)
	return entries
}

// Len reports the total number of queued entries across all keys.
func (b *Buffer[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, entries := range b.pending {
		n += len(entries)
	}
	return n
}
