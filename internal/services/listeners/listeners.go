// Package listeners holds ordered change callbacks.
package listeners

import "sync"

type entry[T any] struct {
	id int
	fn func(T)
}

// List is an ordered set of callbacks. The zero value is ready to use.
type List[T any] struct {
	mu      sync.Mutex
	next    int
	entries []entry[T]
}

// Add registers fn and returns a function that removes it
func (l *List[T]) Add(fn func(T)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})
	return func() { l.remove(id) }
}

func (l *List[T]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// Notify calls every callback in registration order. Callbacks run
// outside the lock and may add or remove listeners.
func (l *List[T]) Notify(v T) {
	l.mu.Lock()
	snapshot := append([]entry[T](nil), l.entries...)
	l.mu.Unlock()
	for _, e := range snapshot {
		e.fn(v)
	}
}

// Len returns the number of registered callbacks
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes every callback
func (l *List[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
