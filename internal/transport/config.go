package transport

import (
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/random"
)

// Config holds hub connection settings
type Config struct {
	// URL is the hub WebSocket URL (e.g., ws://localhost:5000/gamehub)
	URL string

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration

	Retry RetryPolicy
}

// DefaultConfig returns sensible defaults for hub connections
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:5000/gamehub",
		HandshakeTimeout: 5 * time.Second,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		PingPeriod:       15 * time.Second,
		Retry:            DefaultRetryPolicy(),
	}
}

// RetryPolicy is a fixed schedule of reconnect delays.
// Once the schedule is exhausted the session gives up.
type RetryPolicy struct {
	Delays []time.Duration

	// JitterFraction adds up to this fraction of each delay at random
	JitterFraction float64
}

// DefaultRetryPolicy retries immediately, then after 2s, 5s and 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Delays: []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second},
	}
}

// Delay returns the wait before the given zero-based attempt, and false
// when no attempts remain
func (p RetryPolicy) Delay(attempt int, rnd random.Random) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(p.Delays) {
		return 0, false
	}
	d := p.Delays[attempt]
	if p.JitterFraction > 0 && d > 0 && rnd != nil {
		d += rnd.Jitter(time.Duration(float64(d) * p.JitterFraction))
	}
	return d, true
}
