// Package ring provides a fixed-capacity append-only buffer that evicts the
// oldest entry once full. Appends never block and never fail, which is what
// the decision histories need: recording must not slow down an evaluation.
package ring

import "sync"

// Buffer is a bounded ring of T safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	next  int
	full  bool
}

// New returns a Buffer holding at most capacity entries. Capacities below
// one are raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append records v, evicting the oldest entry when the buffer is full.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	b.items[b.next] = v
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Snapshot returns the buffered entries oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]T, b.next)
		copy(out, b.items[:b.next])
		return out
	}
	out := make([]T, 0, len(b.items))
	out = append(out, b.items[b.next:]...)
	out = append(out, b.items[:b.next]...)
	return out
}

// Last returns the n most recent entries, oldest first. n <= 0 or n larger
// than the buffer returns everything.
func (b *Buffer[T]) Last(n int) []T {
	all := b.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of buffered entries.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
