// Package navigator holds the single active screen scope of the client
// (lobby or game) and moves between them.
package navigator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/feedback"
	"github.com/mcoot/tablesync/internal/services/game"
	"github.com/mcoot/tablesync/internal/services/identity"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/services/lobby"
	"github.com/mcoot/tablesync/internal/services/table"
	"github.com/mcoot/tablesync/internal/services/wallet"
	"github.com/mcoot/tablesync/internal/storage"
	"github.com/mcoot/tablesync/internal/transport"
)

// Config holds navigation settings
type Config struct {
	// EndedReturnDelay is how long a finished game stays on screen
	EndedReturnDelay time.Duration

	// LeaveTimeout bounds the LeaveRoom call made when returning on its own
	LeaveTimeout time.Duration

	Lobby lobby.Config
	Game  game.Config
}

// DefaultConfig returns the standard navigation settings
func DefaultConfig() Config {
	return Config{
		EndedReturnDelay: 4 * time.Second,
		LeaveTimeout:     5 * time.Second,
		Lobby:            lobby.DefaultConfig(),
		Game:             game.DefaultConfig(),
	}
}

// Change describes a screen transition
type Change struct {
	Screen   model.Screen `json:"screen"`
	Previous model.Screen `json:"previous"`
	RoomID   model.RoomID `json:"room_id,omitempty"`
}

// Navigator owns the hub-wide services and the active scope
type Navigator struct {
	hub       transport.Hub
	binder    *identity.Binder
	wallet    *wallet.Wallet
	directory *lobby.Directory
	notifier  *feedback.Notifier
	store     storage.Storage
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	screen      model.Screen
	game        *game.Session
	table       *table.Tracker
	returnTimer clock.Timer
	lobbySubs   transport.Group
	baseSubs    transport.Group

	changes listeners.List[Change]
	games   listeners.List[*game.Session]
}

// New creates a Navigator with no active screen
func New(
	hub transport.Hub,
	binder *identity.Binder,
	w *wallet.Wallet,
	store storage.Storage,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Navigator {
	return &Navigator{
		hub:       hub,
		binder:    binder,
		wallet:    w,
		directory: lobby.NewDirectory(hub, store, w, clk, cfg.Lobby, logger),
		notifier:  feedback.NewNotifier(clk, cfg.Game.Feedback.NotificationTTL, logger),
		store:     store,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "navigator")),
		ctx:       context.Background(),
		screen:    model.ScreenNone,
	}
}

// Start binds identity and balance tracking and opens the lobby. ctx
// bounds background work such as directory polling.
func (n *Navigator) Start(ctx context.Context) {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.ctx = ctx
	n.mu.Unlock()

	n.binder.Bind(n.hub)
	n.baseSubs.Add(n.wallet.Bind(n.hub))
	n.EnterLobby(ctx)
}

// Close tears down every scope without telling the server
func (n *Navigator) Close() {
	n.mu.Lock()
	n.screen = model.ScreenNone
	sess := n.game
	if n.returnTimer != nil {
		n.returnTimer.Stop()
		n.returnTimer = nil
	}
	n.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	n.leaveLobby()

	n.binder.Unbind()
	n.baseSubs.Off()
	n.notifier.Close()
	n.changes.Clear()
	n.games.Clear()
}

// Screen returns the active screen
func (n *Navigator) Screen() model.Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.screen
}

// Game returns the active game session, or nil in the lobby
func (n *Navigator) Game() *game.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game
}

// Table returns the betting table tracker of the active game, or nil
func (n *Navigator) Table() *table.Tracker {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.table
}

// Lobby returns the room directory
func (n *Navigator) Lobby() *lobby.Directory {
	return n.directory
}

// Notifier returns the shared toast slot
func (n *Navigator) Notifier() *feedback.Notifier {
	return n.notifier
}

// Identity returns the identity binder
func (n *Navigator) Identity() *identity.Binder {
	return n.binder
}

// Wallet returns the balance tracker
func (n *Navigator) Wallet() *wallet.Wallet {
	return n.wallet
}

// OnScreenChange registers fn for every screen transition
func (n *Navigator) OnScreenChange(fn func(Change)) (cancel func()) {
	return n.changes.Add(fn)
}

// OnGame registers fn for every new game session, before it is joined
func (n *Navigator) OnGame(fn func(*game.Session)) (cancel func()) {
	return n.games.Add(fn)
}

// EnterLobby leaves any active game and starts directory polling
func (n *Navigator) EnterLobby(ctx context.Context) {
	if sess := n.Game(); sess != nil {
		// the session's exit callback re-enters the lobby
		_ = sess.Leave(ctx)
		return
	}
	n.enterLobby()
}

func (n *Navigator) enterLobby() {
	n.mu.Lock()
	if n.screen == model.ScreenLobby {
		n.mu.Unlock()
		return
	}
	previous := n.screen
	n.screen = model.ScreenLobby
	ctx := n.ctx
	n.lobbySubs.Add(n.hub.On(model.EventJoinedRoom, n.handleMatched))
	n.mu.Unlock()

	if err := n.directory.Warm(ctx); err != nil {
		n.logger.Warn("failed to load cached rooms", slog.String("error", err.Error()))
	}
	n.directory.Start(ctx)
	n.logger.Info("entered lobby")
	n.changes.Notify(Change{Screen: model.ScreenLobby, Previous: previous})
}

func (n *Navigator) leaveLobby() {
	n.mu.Lock()
	n.lobbySubs.Off()
	n.mu.Unlock()
	n.directory.Stop()
}

// JoinRoom leaves the lobby and joins roomID. A failed join returns to
// the lobby with a notification.
func (n *Navigator) JoinRoom(ctx context.Context, roomID model.RoomID, password string) error {
	if roomID == "" {
		return model.Precondition("join", model.ErrRoomRequired)
	}
	sess, err := n.openGame(roomID, password)
	if err != nil {
		return err
	}
	if err := sess.Join(ctx); err != nil {
		n.logger.Warn("join failed",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		n.notifier.Error(err)
		sess.Close()
		return err
	}
	return nil
}

// Leave leaves the active game and returns to the lobby
func (n *Navigator) Leave(ctx context.Context) error {
	sess := n.Game()
	if sess == nil {
		return model.Precondition("leave", model.ErrNotInRoom)
	}
	return sess.Leave(ctx)
}

// openGame claims the game slot and switches to the game screen with a
// bound session. The slot check and the claim share one critical
// section so concurrent joins cannot both open a session.
func (n *Navigator) openGame(roomID model.RoomID, password string) (*game.Session, error) {
	sess := game.NewSession(roomID, password, n.hub, n.binder, n.notifier, n.store, n.clock, n.cfg.Game, n.logger)
	tracker := table.New(roomID, n.hub, n.binder, n.wallet, n.logger)

	n.mu.Lock()
	if n.game != nil {
		n.mu.Unlock()
		return nil, model.Precondition("join", model.ErrAlreadyInRoom)
	}
	previous := n.screen
	n.game = sess
	n.table = tracker
	n.screen = model.ScreenGame
	n.mu.Unlock()

	n.leaveLobby()
	sess.Bind()
	sess.OnFatal(func(err error) { n.handleFatal(sess, err) })
	sess.OnEnded(func(model.GameEndedPayload) { n.scheduleReturn(sess) })
	sess.OnExit(func() { n.handleExit(sess) })
	tracker.Bind()

	n.logger.Info("entered game", slog.String("room_id", string(roomID)))
	n.games.Notify(sess)
	n.changes.Notify(Change{Screen: model.ScreenGame, Previous: previous, RoomID: roomID})
	return sess, nil
}

// handleMatched picks up a seat assigned by quick match while in the lobby
func (n *Navigator) handleMatched(args transport.Arguments) {
	payload, err := transport.Decode[model.JoinedRoomPayload](args)
	if err != nil || payload.RoomID == "" {
		n.logger.Warn("ignoring joined room without a room id")
		return
	}

	n.mu.Lock()
	inLobby := n.screen == model.ScreenLobby && n.game == nil
	ctx := n.ctx
	n.mu.Unlock()
	if !inLobby {
		return
	}

	sess, err := n.openGame(payload.RoomID, "")
	if err != nil {
		return
	}
	sess.ApplyJoinedRoom(payload)
	if err := sess.Chat().LoadHistory(ctx, n.cfg.Game.Feedback.ChatHistoryLimit); err != nil {
		n.logger.Warn("failed to load chat history", slog.String("error", err.Error()))
	}
}

func (n *Navigator) handleFatal(sess *game.Session, err error) {
	n.logger.Warn("game scope failed", slog.String("error", err.Error()))
	n.notifier.Error(err)
	sess.Close()
}

func (n *Navigator) scheduleReturn(sess *game.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.game != sess || n.returnTimer != nil {
		return
	}
	n.returnTimer = n.clock.AfterFunc(n.cfg.EndedReturnDelay, func() {
		n.mu.Lock()
		ctx := n.ctx
		n.mu.Unlock()
		ctx, cancel := context.WithTimeout(ctx, n.cfg.LeaveTimeout)
		defer cancel()
		_ = sess.Leave(ctx)
	})
}

func (n *Navigator) handleExit(sess *game.Session) {
	n.mu.Lock()
	if n.game != sess {
		n.mu.Unlock()
		return
	}
	n.game = nil
	tracker := n.table
	n.table = nil
	if n.returnTimer != nil {
		n.returnTimer.Stop()
		n.returnTimer = nil
	}
	closing := n.screen == model.ScreenNone
	n.mu.Unlock()

	if tracker != nil {
		tracker.Unbind()
	}

	if closing {
		return
	}
	n.enterLobby()
}
