// Package table tracks a betting table (seka, poker) and gates its
// betting intents.
package table

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/gate"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/transport"
)

// Identity is the confirmed local player
type Identity interface {
	Username() (model.Username, bool)
}

// Balance is the player's last known wallet balance
type Balance interface {
	Balance() (model.Amount, bool)
}

// Tracker mirrors TableStateUpdated for one room
type Tracker struct {
	roomID   model.RoomID
	hub      transport.Hub
	identity Identity
	balance  Balance
	logger   *slog.Logger

	mu    sync.Mutex
	state *model.TableState

	subs    transport.Group
	changes listeners.List[model.TableState]
}

// New creates a Tracker for roomID
func New(roomID model.RoomID, hub transport.Hub, identity Identity, balance Balance, logger *slog.Logger) *Tracker {
	return &Tracker{
		roomID:   roomID,
		hub:      hub,
		identity: identity,
		balance:  balance,
		logger:   logger.With(slog.String("component", "table"), slog.String("room_id", string(roomID))),
	}
}

// Bind subscribes to table updates
func (t *Tracker) Bind() {
	t.subs.Add(t.hub.On(model.EventTableStateUpdated, func(args transport.Arguments) {
		state, err := transport.Decode[model.TableState](args)
		if err != nil {
			t.logger.Warn("ignoring malformed table state", slog.String("error", err.Error()))
			return
		}
		if state.RoomID != "" && state.RoomID != t.roomID {
			return
		}
		t.mu.Lock()
		t.state = &state
		t.mu.Unlock()
		t.changes.Notify(state)
	}))
}

// Unbind releases the subscription
func (t *Tracker) Unbind() {
	t.subs.Off()
}

// State returns the last reported table state
func (t *Tracker) State() (model.TableState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return model.TableState{}, false
	}
	return *t.state, true
}

// OnChange registers fn for every table update
func (t *Tracker) OnChange(fn func(model.TableState)) (cancel func()) {
	return t.changes.Add(fn)
}

// Eligibility derives the betting actions open to the local player
func (t *Tracker) Eligibility() gate.Eligibility {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	me, confirmed := t.identity.Username()
	in := gate.Input{
		Me:         me,
		Confirmed:  confirmed,
		Connected:  t.hub.State() == transport.StateConnected,
		InProgress: state != nil,
	}
	if state != nil {
		// an unknown balance counts as zero
		balance, _ := t.balance.Balance()
		in.TurnOwner = state.CurrentTurn
		in.Table = &gate.TableTerms{
			MyBalance:       balance,
			CurrentBet:      state.CurrentBet,
			CanCall:         state.CanCall,
			CanShowdownCall: state.CanShowdownCall,
			CallAmount:      state.CallAmount,
			MinRaise:        state.MinRaise,
			MaxRaise:        state.MaxRaise,
		}
	}
	return gate.Evaluate(in)
}

// Controls returns the betting buttons
func (t *Tracker) Controls() []gate.Control {
	return gate.TableControls(t.Eligibility())
}

// Fold gives up the hand
func (t *Tracker) Fold(ctx context.Context) error {
	return t.act(ctx, gate.ActionFold, model.MethodFold)
}

// Call matches the current bet
func (t *Tracker) Call(ctx context.Context) error {
	return t.act(ctx, gate.ActionCall, model.MethodCall)
}

// AllIn bets the whole remaining balance
func (t *Tracker) AllIn(ctx context.Context) error {
	return t.act(ctx, gate.ActionAllIn, model.MethodAllIn)
}

// ShowdownCall asks for the showdown
func (t *Tracker) ShowdownCall(ctx context.Context) error {
	return t.act(ctx, gate.ActionShowdown, model.MethodShowdownCall)
}

// Raise raises the bet to amount, which must be within the table's
// reported bounds
func (t *Tracker) Raise(ctx context.Context, amount model.Amount) error {
	op := string(model.MethodRaise)
	if err := gate.Check(gate.ActionRaise, t.Eligibility()); err != nil {
		return err
	}

	state, _ := t.State()
	if amount <= 0 || amount < state.MinRaise || (state.MaxRaise > 0 && amount > state.MaxRaise) {
		return model.Precondition(op, model.ErrInvalidRaiseAmount)
	}
	_, err := t.hub.Invoke(ctx, model.MethodRaise, t.roomID, amount)
	return err
}

func (t *Tracker) act(ctx context.Context, action gate.Action, method model.Method) error {
	if err := gate.Check(action, t.Eligibility()); err != nil {
		return err
	}
	_, err := t.hub.Invoke(ctx, method, t.roomID)
	if err != nil {
		t.logger.Debug("table action failed", slog.String("action", string(action)), slog.String("error", err.Error()))
	}
	return err
}
