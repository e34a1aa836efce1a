// Package hostbridge exchanges line-delimited JSON messages with a host
// shell that embeds the client, such as a platform app running
// `tsync play --embedded` as a child process.
package hostbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// MessageType names a bridge message
type MessageType string

const (
	// Inbound
	TypeInitUser MessageType = "INIT_USER"
	TypeJoinRoom MessageType = "JOIN_ROOM"

	// Outbound
	TypeBackToGames    MessageType = "BACK_TO_GAMES"
	TypeBalanceChanged MessageType = "BALANCE_CHANGED"
	TypeRoomJoined     MessageType = "ROOM_JOINED"
)

// maxLine bounds a single inbound message
const maxLine = 64 * 1024

// Message is one line on the bridge
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitUser hands the logged-in user over from the host
type InitUser struct {
	Token       string            `json:"token"`
	Username    model.Username    `json:"username"`
	DisplayName model.DisplayName `json:"displayName"`
	Balance     model.Amount      `json:"balance"`
}

// JoinRoom asks the client to enter a room
type JoinRoom struct {
	RoomID   model.RoomID `json:"roomId"`
	Password string       `json:"password,omitempty"`
}

// BalanceChanged reports a new balance to the host
type BalanceChanged struct {
	Balance model.Amount `json:"balance"`
}

// RoomJoined reports the room the client entered
type RoomJoined struct {
	RoomID model.RoomID `json:"roomId"`
}

// Handler acts on inbound messages
type Handler interface {
	InitUser(ctx context.Context, msg InitUser) error
	JoinRoom(ctx context.Context, msg JoinRoom) error
}

// Bridge reads host messages from in and writes client messages to out
type Bridge struct {
	in     io.Reader
	out    io.Writer
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Bridge
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Bridge {
	return &Bridge{
		in:     in,
		out:    out,
		logger: logger.With(slog.String("component", "hostbridge")),
	}
}

// Send writes one message to the host
func (b *Bridge) Send(t MessageType, payload any) error {
	msg := Message{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", t, err)
		}
		msg.Payload = data
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", t, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, err = b.out.Write(append(line, '\n'))
	return err
}

// Attach forwards navigation and balance changes to the host
func (b *Bridge) Attach(nav *navigator.Navigator) (cancel func()) {
	cancelScreen := nav.OnScreenChange(func(c navigator.Change) {
		switch {
		case c.Screen == model.ScreenGame:
			b.send(TypeRoomJoined, RoomJoined{RoomID: c.RoomID})
		case c.Screen == model.ScreenLobby && c.Previous == model.ScreenGame:
			b.send(TypeBackToGames, nil)
		}
	})
	cancelBalance := nav.Wallet().OnChange(func(balance model.Amount) {
		b.send(TypeBalanceChanged, BalanceChanged{Balance: balance})
	})
	return func() {
		cancelScreen()
		cancelBalance()
	}
}

func (b *Bridge) send(t MessageType, payload any) {
	if err := b.Send(t, payload); err != nil {
		b.logger.Warn("failed to write to host",
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
	}
}

// Run dispatches inbound messages to h until the host closes its end or
// ctx is done. A handler error is logged and does not stop the bridge.
func (b *Bridge) Run(ctx context.Context, h Handler) error {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(b.in)
		scanner.Buffer(make([]byte, 0, 4096), maxLine)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to read from host: %w", err)
			}
			return nil
		case line := <-lines:
			b.dispatch(ctx, h, line)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, h Handler, line []byte) {
	if len(line) == 0 {
		return
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		b.logger.Warn("ignoring malformed host message", slog.String("error", err.Error()))
		return
	}

	var err error
	switch msg.Type {
	case TypeInitUser:
		var p InitUser
		if err = decode(msg, &p); err == nil {
			err = h.InitUser(ctx, p)
		}
	case TypeJoinRoom:
		var p JoinRoom
		if err = decode(msg, &p); err == nil {
			err = h.JoinRoom(ctx, p)
		}
	default:
		b.logger.Warn("ignoring unknown host message", slog.String("type", string(msg.Type)))
		return
	}

	if err != nil {
		b.logger.Warn("host message failed",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func decode(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s has no payload", msg.Type)
	}
	return json.Unmarshal(msg.Payload, v)
}
