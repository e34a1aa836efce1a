package lobby

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/storage"
	"github.com/mcoot/tablesync/internal/transport"
)

const (
	// DefaultMaxPlayers is used when a create request leaves it unset
	DefaultMaxPlayers = 2
)

// Config holds directory polling settings
type Config struct {
	RefreshInterval time.Duration
}

// DefaultConfig returns the standard polling settings
func DefaultConfig() Config {
	return Config{RefreshInterval: 3 * time.Second}
}

// Balance reports whether the player can cover an amount
type Balance interface {
	CanAfford(amount model.Amount) bool
}

// Directory keeps the list of joinable rooms fresh
type Directory struct {
	hub     transport.Hub
	store   storage.Storage
	balance Balance
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	rooms   []model.RoomSummary
	loaded  bool
	running bool
	stop    chan struct{}
	ticker  clock.Ticker
	subs    transport.Group
	trigger chan struct{}

	changes listeners.List[[]model.RoomSummary]
}

// NewDirectory creates a Directory with an empty list
func NewDirectory(
	hub transport.Hub,
	store storage.Storage,
	balance Balance,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Directory {
	return &Directory{
		hub:     hub,
		store:   store,
		balance: balance,
		clock:   clk,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "directory")),
		trigger: make(chan struct{}, 1),
	}
}

// Refresh replaces the list with the server's current rooms. On failure
// the previous list is kept.
func (d *Directory) Refresh(ctx context.Context) error {
	var rooms []model.RoomSummary
	if err := transport.InvokeInto(ctx, d.hub, &rooms, model.MethodGetAvailableRooms); err != nil {
		return err
	}
	if rooms == nil {
		rooms = []model.RoomSummary{}
	}

	d.mu.Lock()
	d.rooms = rooms
	d.loaded = true
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.SaveRoomList(ctx, rooms); err != nil {
			d.logger.Warn("failed to cache room list", slog.Any("error", err))
		}
	}

	d.logger.Debug("room list refreshed", slog.Int("rooms", len(rooms)))
	d.changes.Notify(d.Rooms())
	return nil
}

// Warm fills the list from the cache when nothing has been fetched yet
func (d *Directory) Warm(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	rooms, err := d.store.GetRoomList(ctx)
	if errors.Is(err, model.ErrRoomListNotCached) {
		return nil
	}
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.loaded {
		d.mu.Unlock()
		return nil
	}
	d.rooms = rooms
	d.mu.Unlock()

	d.changes.Notify(d.Rooms())
	return nil
}

// Start begins polling and listening for directory events. The first
// refresh happens immediately.
func (d *Directory) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.ticker = d.clock.NewTicker(d.cfg.RefreshInterval)

	signal := func(transport.Arguments) { d.signal() }
	d.subs.Add(
		d.hub.On(model.EventBackgammonRoomCreated, signal),
		d.hub.On(model.EventRoomCreated, signal),
		d.hub.On(model.EventRoomDeleted, signal),
		d.hub.OnReconnected(d.signal),
	)

	go d.loop(ctx, d.ticker, d.stop)
	d.signal()
	d.logger.Debug("directory polling started", slog.Duration("interval", d.cfg.RefreshInterval))
}

// Stop ends polling and drops event subscriptions. A refresh already in
// flight may still complete.
func (d *Directory) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false
	d.subs.Off()
	d.ticker.Stop()
	close(d.stop)
	d.logger.Debug("directory polling stopped")
}

// Running reports whether polling is active
func (d *Directory) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// signal requests a refresh without blocking the caller
func (d *Directory) signal() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

func (d *Directory) loop(ctx context.Context, ticker clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
		case <-d.trigger:
		}

		if err := d.Refresh(ctx); err != nil {
			d.logger.Warn("room list refresh failed", slog.Any("error", err))
		}
	}
}

// Create asks the server for a new room and returns its summary
func (d *Directory) Create(ctx context.Context, req model.CreateRoomRequest) (*model.RoomSummary, error) {
	const op = "CreateRoom"

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.Precondition(op, model.ErrInvalidRoomName)
	}
	if req.EntryFee < 0 {
		return nil, model.Precondition(op, model.ErrInvalidAmount)
	}
	if !d.balance.CanAfford(req.EntryFee) {
		return nil, model.Precondition(op, model.ErrInsufficientBalance)
	}
	if req.MaxPlayers <= 0 {
		req.MaxPlayers = DefaultMaxPlayers
	}

	var password any
	if req.Password != "" {
		password = req.Password
	}

	var result model.CreateRoomResult
	err := transport.InvokeInto(ctx, d.hub, &result, model.MethodCreateRoom,
		name, req.EntryFee, req.MaxPlayers, req.IsPrivate, password)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = model.ErrServerRejected.Error()
		}
		return nil, model.Rejection(op, msg)
	}

	d.logger.Info("room created", slog.String("room_id", string(result.RoomID)), slog.String("name", name))
	d.signal()

	return &model.RoomSummary{
		ID:          result.RoomID,
		Name:        name,
		BetAmount:   req.EntryFee,
		PlayerCount: 1,
		MaxPlayers:  req.MaxPlayers,
		IsPrivate:   req.IsPrivate,
	}, nil
}

// QuickMatch asks the server to seat the player in any room at amount
func (d *Directory) QuickMatch(ctx context.Context, amount model.Amount) error {
	const op = "QuickMatch"

	if amount <= 0 {
		return model.Precondition(op, model.ErrInvalidAmount)
	}
	if !d.balance.CanAfford(amount) {
		return model.Precondition(op, model.ErrInsufficientBalance)
	}

	_, err := d.hub.Invoke(ctx, model.MethodQuickMatch, amount)
	return err
}

// Rooms returns a copy of the current list
func (d *Directory) Rooms() []model.RoomSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.RoomSummary{}, d.rooms...)
}

// Find returns the room with id from the current list
func (d *Directory) Find(id model.RoomID) (model.RoomSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return model.RoomSummary{}, false
}

// OnChange registers fn for every list replacement
func (d *Directory) OnChange(fn func([]model.RoomSummary)) (cancel func()) {
	return d.changes.Add(fn)
}
