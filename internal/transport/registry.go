package transport

import "sync"

const (
	lifecycleReconnecting = "@reconnecting"
	lifecycleReconnected  = "@reconnected"
	lifecycleClosed       = "@closed"
)

type listener struct {
	id        uint64
	event     Handler
	lifecycle func(error)
}

// registry holds handlers keyed by event name. Entries belong to the
// session, not to a socket, so they survive reconnects.
type registry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listener
}

func newRegistry() *registry {
	return &registry{listeners: make(map[string][]listener)}
}

func (r *registry) add(key string, l listener) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.id = r.nextID
	r.listeners[key] = append(r.listeners[key], l)
	id := l.id
	return NewSubscription(func() { r.remove(key, id) })
}

func (r *registry) remove(key string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls := r.listeners[key]
	for i, l := range ls {
		if l.id == id {
			r.listeners[key] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(r.listeners[key]) == 0 {
		delete(r.listeners, key)
	}
}

// snapshot returns the listeners for key in registration order
func (r *registry) snapshot(key string) []listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]listener(nil), r.listeners[key]...)
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = make(map[string][]listener)
}

func (r *registry) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[key])
}
