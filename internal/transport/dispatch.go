package transport

import "sync"

// dispatchQueue runs queued callbacks one at a time in FIFO order on a
// single goroutine. It is unbounded so the reader never blocks on a slow
// handler, which lets handlers call Invoke.
type dispatchQueue struct {
	mu     sync.Mutex
	items  []func()
	notify chan struct{}
	done   <-chan struct{}
}

func newDispatchQueue(done <-chan struct{}) *dispatchQueue {
	return &dispatchQueue{
		notify: make(chan struct{}, 1),
		done:   done,
	}
}

func (q *dispatchQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *dispatchQueue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return fn, true
}

func (q *dispatchQueue) run() {
	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}

		for {
			select {
			case <-q.done:
				return
			default:
			}
			fn, ok := q.pop()
			if !ok {
				break
			}
			fn()
		}
	}
}
