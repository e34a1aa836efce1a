// Package game mirrors one backgammon room on the client. The server is
// authoritative: the session only records what events report and gates
// which intents may be sent.
package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/feedback"
	"github.com/mcoot/tablesync/internal/services/gate"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/storage"
	"github.com/mcoot/tablesync/internal/transport"
)

// Config holds session settings
type Config struct {
	Feedback feedback.Config

	// SendInterval and SendBurst throttle chat, emoji and quick messages
	SendInterval time.Duration
	SendBurst    int

	// ResyncTimeout bounds the rejoin and refresh after a reconnect
	ResyncTimeout time.Duration
}

// DefaultConfig returns the standard session settings
func DefaultConfig() Config {
	return Config{
		Feedback:      feedback.DefaultConfig(),
		SendInterval:  500 * time.Millisecond,
		SendBurst:     3,
		ResyncTimeout: 10 * time.Second,
	}
}

// Identity is the confirmed local player
type Identity interface {
	Username() (model.Username, bool)
	DisplayName() model.DisplayName
	OnConfirmed(fn func(model.PlayerIdentity)) (cancel func())
}

// Session is the client-side state of one joined room
type Session struct {
	roomID   model.RoomID
	password string
	hub      transport.Hub
	identity Identity
	notifier *feedback.Notifier
	overlay  *feedback.Overlay
	chat     *feedback.Chat
	limiter  *rate.Limiter
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger

	mu              sync.Mutex
	state           model.SessionState
	phase           model.TurnPhase
	seat            model.Color
	betAmount       model.Amount
	opponent        *model.Opponent
	opening         *model.GameStartingPayload
	board           model.Board
	turnOwner       model.Username
	pendingRoll     model.Dice
	turnActionTaken bool
	// the server said it is my turn before my username was known
	myTurnPending bool
	// a roll was sent but the caller stopped waiting for its completion
	rollAbandoned bool
	selection     *model.Point
	message         string
	closed          bool

	subs    transport.Group
	changes listeners.List[model.SessionSnapshot]
	ended   listeners.List[model.GameEndedPayload]
	fatal   listeners.List[error]
	exit    listeners.List[struct{}]
}

// NewSession creates a session in the Joining state. notifier is shared
// with the rest of the client; the chat log and overlay belong to the
// session.
func NewSession(
	roomID model.RoomID,
	password string,
	hub transport.Hub,
	identity Identity,
	notifier *feedback.Notifier,
	store storage.Storage,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Session {
	logger = logger.With(slog.String("component", "game"), slog.String("room_id", string(roomID)))
	return &Session{
		roomID:   roomID,
		password: password,
		hub:      hub,
		identity: identity,
		notifier: notifier,
		overlay:  feedback.NewOverlay(clk, cfg.Feedback),
		chat:     feedback.NewChat(roomID, store, identity, clk, logger),
		limiter:  rate.NewLimiter(rate.Every(cfg.SendInterval), cfg.SendBurst),
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
		state:    model.SessionJoining,
		phase:    model.TurnIdle,
		board:    model.NewBoard(),
	}
}

// RoomID returns the room this session mirrors
func (s *Session) RoomID() model.RoomID {
	return s.roomID
}

// Chat returns the room's chat log
func (s *Session) Chat() *feedback.Chat {
	return s.chat
}

// Overlay returns the per-player emoji and message bubbles
func (s *Session) Overlay() *feedback.Overlay {
	return s.overlay
}

// Join asks the server to seat the player and restores the chat log
func (s *Session) Join(ctx context.Context) error {
	if err := s.chat.LoadHistory(ctx, s.cfg.Feedback.ChatHistoryLimit); err != nil {
		s.logger.Warn("failed to load chat history", slog.String("error", err.Error()))
	}
	_, err := s.hub.Invoke(ctx, model.MethodJoinRoom, s.roomID, s.passwordArg())
	return err
}

func (s *Session) passwordArg() any {
	if s.password == "" {
		return nil
	}
	return s.password
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		RoomID:          s.roomID,
		State:           s.state,
		Phase:           s.phase,
		Seat:            s.seat,
		BetAmount:       s.betAmount,
		Board:           s.board.Clone(),
		TurnOwner:       s.turnOwner,
		PendingRoll:     append(model.Dice(nil), s.pendingRoll...),
		TurnActionTaken: s.turnActionTaken,
		Message:         s.message,
	}
	if s.opponent != nil {
		o := *s.opponent
		snap.Opponent = &o
	}
	if s.selection != nil {
		p := *s.selection
		snap.Selection = &p
	}
	return snap
}

// Eligibility derives what the local player may do right now
func (s *Session) Eligibility() gate.Eligibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibilityLocked()
}

func (s *Session) eligibilityLocked() gate.Eligibility {
	me, confirmed := s.identity.Username()
	return gate.Evaluate(gate.Input{
		Me:              me,
		Confirmed:       confirmed,
		TurnOwner:       s.turnOwner,
		TurnActionTaken: s.turnActionTaken,
		Connected:       s.hub.State() == transport.StateConnected,
		InProgress:      s.state == model.SessionInProgress,
	})
}

// Controls returns the board buttons with their enabled state
func (s *Session) Controls() []gate.Control {
	return gate.BoardControls(s.Eligibility())
}

// View is the session state together with what the player may do
type View struct {
	Session     model.SessionSnapshot `json:"session"`
	Eligibility gate.Eligibility      `json:"eligibility"`
	Controls    []gate.Control        `json:"controls"`
	Blocked     string                `json:"blocked,omitempty"`
}

// View returns the snapshot, eligibility and controls in one read
func (s *Session) View() View {
	s.mu.Lock()
	snap := s.snapshotLocked()
	e := s.eligibilityLocked()
	s.mu.Unlock()

	v := View{Session: snap, Eligibility: e, Controls: gate.BoardControls(e)}
	if e.Blocked != nil {
		v.Blocked = model.UserMessage(e.Blocked)
	}
	return v
}

// OnChange registers fn for every state change
func (s *Session) OnChange(fn func(model.SessionSnapshot)) (cancel func()) {
	return s.changes.Add(fn)
}

// OnEnded registers fn for the GameEnded event
func (s *Session) OnEnded(fn func(model.GameEndedPayload)) (cancel func()) {
	return s.ended.Add(fn)
}

// OnFatal registers fn for errors that end the session scope
func (s *Session) OnFatal(fn func(error)) (cancel func()) {
	return s.fatal.Add(fn)
}

// OnExit registers fn to run once the session has been torn down
func (s *Session) OnExit(fn func()) (cancel func()) {
	return s.exit.Add(func(struct{}) { fn() })
}

// Closed reports whether the session has been torn down
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down without telling the server
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = model.SessionEnded
	s.selection = nil
	s.mu.Unlock()

	s.subs.Off()
	s.overlay.Close()
	s.chat.Release()
	s.logger.Debug("session closed")

	s.exit.Notify(struct{}{})
	s.changes.Clear()
	s.ended.Clear()
	s.fatal.Clear()
	s.exit.Clear()
}

// publish notifies listeners with the current snapshot
func (s *Session) publish() {
	s.changes.Notify(s.Snapshot())
}

// isMe reports whether owner is the confirmed local username
func (s *Session) isMe(owner model.Username) bool {
	me, ok := s.identity.Username()
	return ok && me != "" && owner == me
}
