package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TTL settings for different entity types. Zero means no expiry.
	ProfileTTL  time.Duration
	ChatTTL     time.Duration
	RoomListTTL time.Duration

	// ChatHistoryLimit caps the messages kept per room
	ChatHistoryLimit int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:              "redis://localhost:6379",
		PoolSize:         4,
		MinIdleConns:     1,
		ProfileTTL:       30 * 24 * time.Hour,
		ChatTTL:          24 * time.Hour,
		RoomListTTL:      10 * time.Minute,
		ChatHistoryLimit: 200,
	}
}
