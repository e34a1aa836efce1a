// Package feedback holds the short-lived UI state of a screen: the toast,
// per-player emoji and message bubbles, and the chat log.
package feedback

import "time"

// Config holds display durations
type Config struct {
	NotificationTTL time.Duration
	EmojiTTL        time.Duration
	MessageTTL      time.Duration

	// ChatHistoryLimit is how many stored messages LoadHistory restores
	ChatHistoryLimit int
}

// DefaultConfig returns the standard display durations
func DefaultConfig() Config {
	return Config{
		NotificationTTL:  5 * time.Second,
		EmojiTTL:         2 * time.Second,
		MessageTTL:       3 * time.Second,
		ChatHistoryLimit: 100,
	}
}
