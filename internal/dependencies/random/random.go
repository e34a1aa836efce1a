// Package random supplies the randomness used to spread reconnect attempts.
package random

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Random can be swapped for a scripted source in tests
type Random interface {
	// Jitter returns a duration in [0, limit)
	Jitter(limit time.Duration) time.Duration
}

// CryptoRandom draws from crypto/rand
type CryptoRandom struct{}

// New creates a CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Jitter returns a random duration in [0, limit). A read failure yields
// no jitter rather than an error.
func (CryptoRandom) Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
