package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/storage/memory"
	"github.com/mcoot/tablesync/internal/testutil"
)

type fakeSelf struct {
	username model.Username
	display  model.DisplayName
}

func (f fakeSelf) Username() (model.Username, bool) { return f.username, f.username != "" }
func (f fakeSelf) DisplayName() model.DisplayName   { return f.display }

type ChatSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Storage
	chat  *Chat
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, new(ChatSuite))
}

func (s *ChatSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.chat = NewChat("room-1", s.store, fakeSelf{username: "alice42", display: "Alice"}, clk, testutil.NopLogger())
}

func (s *ChatSuite) TestUnreadCountsOpponentMessagesWhileClosed() {
	s.chat.Receive(s.ctx, "bob", "hi", "")
	s.chat.Receive(s.ctx, "bob", "ready?", "")

	s.Equal(2, s.chat.Unread())
}

func (s *ChatSuite) TestOwnMessagesNeverCountAsUnread() {
	s.chat.Receive(s.ctx, "alice42", "by username", "")
	msg := s.chat.Receive(s.ctx, "Alice", "by display name", "")

	s.True(msg.Own)
	s.Equal(0, s.chat.Unread())
}

func (s *ChatSuite) TestOpenResetsAndSuppressesUnread() {
	s.chat.Receive(s.ctx, "bob", "hi", "")
	s.chat.Open()
	s.Equal(0, s.chat.Unread())

	s.chat.Receive(s.ctx, "bob", "while open", "")
	s.Equal(0, s.chat.Unread())

	s.chat.Close()
	s.chat.Receive(s.ctx, "bob", "after close", "")
	s.Equal(1, s.chat.Unread())

	view := s.chat.View()
	s.False(view.Open)
	s.Len(view.Messages, 3)
}

func (s *ChatSuite) TestMessagesArePersisted() {
	s.chat.Receive(s.ctx, "bob", "hi", "")

	history, err := s.store.GetChatHistory(s.ctx, "room-1", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("hi", history[0].Text)
}

func (s *ChatSuite) TestImageIsKeptAndPersisted() {
	msg := s.chat.Receive(s.ctx, "bob", "look", "https://cdn.example/board.png")
	s.Equal("https://cdn.example/board.png", msg.ImageURL)

	history, err := s.store.GetChatHistory(s.ctx, "room-1", 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("look", history[0].Text)
	s.Equal("https://cdn.example/board.png", history[0].ImageURL)
}

func (s *ChatSuite) TestLoadHistoryRehydrates() {
	_ = s.store.AppendChatMessage(s.ctx, "room-1", model.ChatMessage{Sender: "bob", Text: "earlier"})
	_ = s.store.AppendChatMessage(s.ctx, "room-1", model.ChatMessage{Sender: "alice42", Text: "mine"})

	s.Require().NoError(s.chat.LoadHistory(s.ctx, 10))

	view := s.chat.View()
	s.Require().Len(view.Messages, 2)
	s.False(view.Messages[0].Own)
	s.True(view.Messages[1].Own)
	s.Equal(0, view.Unread)
}

func (s *ChatSuite) TestOnChange() {
	var views []ChatView
	s.chat.OnChange(func(v ChatView) { views = append(views, v) })

	s.chat.Receive(s.ctx, "bob", "hi", "")
	s.chat.Open()

	s.Require().Len(views, 2)
	s.Equal(1, views[0].Unread)
	s.True(views[1].Open)

	s.chat.Release()
	s.chat.Receive(s.ctx, "bob", "ignored by listeners", "")
	s.Len(views, 2)
}
