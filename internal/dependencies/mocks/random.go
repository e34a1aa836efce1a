package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/random"
)

// MockRandom replays queued jitter values, then returns zero
type MockRandom struct {
	mu     sync.Mutex
	queue  []time.Duration
	limits []time.Duration
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a MockRandom with nothing queued
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Jitter pops the next queued value, capped just below limit
func (r *MockRandom) Jitter(limit time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = append(r.limits, limit)
	if len(r.queue) == 0 || limit <= 0 {
		return 0
	}
	d := r.queue[0]
	r.queue = r.queue[1:]
	if d >= limit {
		d = limit - 1
	}
	return d
}

// QueueJitter appends values to return from Jitter
func (r *MockRandom) QueueJitter(values ...time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, values...)
}

// Limits returns every limit Jitter was asked for
func (r *MockRandom) Limits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.limits...)
}
