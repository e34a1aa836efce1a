package sse

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/feedback"
	"github.com/mcoot/tablesync/internal/services/game"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// Event names pushed to view clients
const (
	EventScreen       = "screen"
	EventRooms        = "rooms"
	EventSession      = "session"
	EventNotification = "notification"
	EventChat         = "chat"
	EventOverlay      = "overlay"
)

// Broadcaster turns client state changes into SSE events
type Broadcaster struct {
	hub    *Hub
	logger *slog.Logger

	mu          sync.Mutex
	gameCancels []func()
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Publish broadcasts v as JSON under event
func (b *Broadcaster) Publish(event string, v any) {
	msg, err := encode(event, v)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	b.hub.Broadcast(msg)
}

// Attach follows nav and publishes every change it reports
func (b *Broadcaster) Attach(nav *navigator.Navigator) (cancel func()) {
	cancels := []func(){
		nav.OnScreenChange(func(c navigator.Change) {
			if c.Screen != model.ScreenGame {
				b.detachGame()
			}
			b.Publish(EventScreen, c)
		}),
		nav.Lobby().OnChange(func(rooms []model.RoomSummary) {
			b.Publish(EventRooms, rooms)
		}),
		nav.Notifier().OnChange(func(n *model.Notification) {
			b.Publish(EventNotification, n)
		}),
		nav.OnGame(b.attachGame),
	}
	if sess := nav.Game(); sess != nil {
		b.attachGame(sess)
	}

	return func() {
		for _, c := range cancels {
			c()
		}
		b.detachGame()
	}
}

func (b *Broadcaster) attachGame(sess *game.Session) {
	b.detachGame()
	cancels := []func(){
		sess.OnChange(func(model.SessionSnapshot) {
			b.Publish(EventSession, sess.View())
		}),
		sess.Chat().OnChange(func(v feedback.ChatView) {
			b.Publish(EventChat, v)
		}),
		sess.Overlay().OnChange(func(items []model.OverlayItem) {
			b.Publish(EventOverlay, items)
		}),
	}

	b.mu.Lock()
	b.gameCancels = cancels
	b.mu.Unlock()
}

func (b *Broadcaster) detachGame() {
	b.mu.Lock()
	cancels := b.gameCancels
	b.gameCancels = nil
	b.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Current encodes the present state of nav as the events a fresh client
// needs
func (b *Broadcaster) Current(nav *navigator.Navigator) [][]byte {
	var out [][]byte
	add := func(event string, v any) {
		msg, err := encode(event, v)
		if err != nil {
			b.logger.Error("sse failed to encode event",
				slog.String("event", event),
				slog.String("error", err.Error()))
			return
		}
		out = append(out, msg)
	}

	add(EventScreen, navigator.Change{Screen: nav.Screen()})
	add(EventRooms, nav.Lobby().Rooms())
	if n, ok := nav.Notifier().Current(); ok {
		add(EventNotification, n)
	}
	if sess := nav.Game(); sess != nil {
		add(EventSession, sess.View())
		add(EventChat, sess.Chat().View())
		add(EventOverlay, sess.Overlay().Items())
	}
	return out
}

func encode(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return formatSSEMessage(event, string(data)), nil
}
