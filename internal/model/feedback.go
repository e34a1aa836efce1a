package model

import "time"

// NotificationLevel is the severity of a toast
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient toast
type Notification struct {
	Text    string            `json:"text"`
	Level   NotificationLevel `json:"level"`
	ShownAt time.Time         `json:"shown_at"`
}

// ChatMessage is one entry in a room's chat log
type ChatMessage struct {
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	ImageURL string    `json:"image_url,omitempty"`
	SentAt   time.Time `json:"sent_at"`
	Own      bool      `json:"own"`
}

// OverlayKind distinguishes emoji from canned messages
type OverlayKind string

const (
	OverlayEmoji   OverlayKind = "emoji"
	OverlayMessage OverlayKind = "message"
)

// OverlayItem is content shown next to a player for a short time
type OverlayItem struct {
	Player    string      `json:"player"`
	Kind      OverlayKind `json:"kind"`
	Content   string      `json:"content"`
	ExpiresAt time.Time   `json:"expires_at"`
}
