package feedback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/storage"
)

// Self identifies the local player for own-message styling
type Self interface {
	Username() (model.Username, bool)
	DisplayName() model.DisplayName
}

// ChatView is a snapshot of the chat panel
type ChatView struct {
	Messages []model.ChatMessage `json:"messages"`
	Unread   int                 `json:"unread"`
	Open     bool                `json:"open"`
}

// Chat is a room's append-only message log with an unread counter
type Chat struct {
	mu       sync.Mutex
	room     model.RoomID
	store    storage.Storage
	self     Self
	clock    clock.Clock
	messages []model.ChatMessage
	unread   int
	open     bool

	changes listeners.List[ChatView]
	logger  *slog.Logger
}

// NewChat creates the chat log for room
func NewChat(room model.RoomID, store storage.Storage, self Self, clk clock.Clock, logger *slog.Logger) *Chat {
	return &Chat{
		room:   room,
		store:  store,
		self:   self,
		clock:  clk,
		logger: logger.With(slog.String("component", "chat"), slog.String("room_id", string(room))),
	}
}

// isOwn matches sender against the local identity. This only decides
// styling and the unread counter.
func (c *Chat) isOwn(sender string) bool {
	if sender == "" || c.self == nil {
		return false
	}
	if username, ok := c.self.Username(); ok && sender == string(username) {
		return true
	}
	name := c.self.DisplayName()
	return name != "" && sender == string(name)
}

// Receive appends a message and persists it
func (c *Chat) Receive(ctx context.Context, sender, text, imageURL string) model.ChatMessage {
	msg := model.ChatMessage{
		Sender:   sender,
		Text:     text,
		ImageURL: imageURL,
		SentAt:   c.clock.Now(),
		Own:      c.isOwn(sender),
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	if !c.open && !msg.Own {
		c.unread++
	}
	view := c.viewLocked()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.AppendChatMessage(ctx, c.room, msg); err != nil {
			c.logger.Warn("failed to persist chat message", slog.Any("error", err))
		}
	}

	c.changes.Notify(view)
	return msg
}

// LoadHistory replaces the log with the stored history. It does not
// count towards unread.
func (c *Chat) LoadHistory(ctx context.Context, limit int) error {
	if c.store == nil {
		return nil
	}
	history, err := c.store.GetChatHistory(ctx, c.room, limit)
	if err != nil {
		return err
	}
	for i := range history {
		history[i].Own = c.isOwn(history[i].Sender)
	}

	c.mu.Lock()
	c.messages = history
	view := c.viewLocked()
	c.mu.Unlock()

	c.changes.Notify(view)
	return nil
}

// Open shows the panel and clears the unread counter
func (c *Chat) Open() {
	c.mu.Lock()
	c.open = true
	c.unread = 0
	view := c.viewLocked()
	c.mu.Unlock()

	c.changes.Notify(view)
}

// Close hides the panel
func (c *Chat) Close() {
	c.mu.Lock()
	c.open = false
	view := c.viewLocked()
	c.mu.Unlock()

	c.changes.Notify(view)
}

// View returns the current panel state
func (c *Chat) View() ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Unread returns the number of unseen messages
func (c *Chat) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *Chat) viewLocked() ChatView {
	return ChatView{
		Messages: append([]model.ChatMessage{}, c.messages...),
		Unread:   c.unread,
		Open:     c.open,
	}
}

// OnChange registers fn for every change to the panel
func (c *Chat) OnChange(fn func(ChatView)) (cancel func()) {
	return c.changes.Add(fn)
}

// Release drops every listener when the room scope ends
func (c *Chat) Release() {
	c.changes.Clear()
}
