package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/gate"
	"github.com/mcoot/tablesync/internal/transport"
)

// connectedLocked fails fast while the hub cannot carry an invocation
func (s *Session) connectedLocked(op string) error {
	switch s.hub.State() {
	case transport.StateConnected:
		return nil
	case transport.StateReconnecting, transport.StateConnecting:
		return model.Connection(op, model.ErrReconnecting)
	default:
		return model.Connection(op, model.ErrNotConnected)
	}
}

// checkLocked runs the session, connection and gate checks for action
func (s *Session) checkLocked(op string, action gate.Action) error {
	if s.closed || s.state == model.SessionEnded {
		return model.Precondition(op, model.ErrSessionEnded)
	}
	if err := s.connectedLocked(op); err != nil {
		return err
	}
	return gate.Check(action, s.eligibilityLocked())
}

// Roll asks the server for dice. At most one roll is in flight; the
// dice themselves arrive with DiceRolled.
func (s *Session) Roll(ctx context.Context) error {
	op := string(model.MethodRollDice)

	s.mu.Lock()
	if err := s.checkLocked(op, gate.ActionRoll); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.phase != model.TurnIdle {
		s.mu.Unlock()
		return model.Precondition(op, model.ErrActionPending)
	}
	s.phase = model.ActionPending
	s.mu.Unlock()
	s.publish()

	if _, err := s.hub.Invoke(ctx, model.MethodRollDice); err != nil {
		if abandoned(err) {
			// the roll went out; its dice may still arrive
			s.mu.Lock()
			if s.phase == model.ActionPending {
				s.rollAbandoned = true
			}
			s.mu.Unlock()
			s.logger.Debug("stopped waiting for roll", slog.String("error", err.Error()))
			return err
		}
		s.mu.Lock()
		if s.phase == model.ActionPending {
			s.phase = model.TurnIdle
		}
		s.mu.Unlock()
		s.logger.Debug("roll failed", slog.String("error", err.Error()))
		s.publish()
		return err
	}
	return nil
}

// abandoned reports whether err means the caller stopped waiting rather
// than the invocation failing
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// SelectOrigin selects one of the player's points as a move origin.
// Selecting the selected point again clears the selection.
func (s *Session) SelectOrigin(point model.Point) error {
	if point == model.BarPoint {
		return s.SelectBar()
	}

	s.mu.Lock()
	err := s.selectOriginLocked(point)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish()
	return nil
}

func (s *Session) selectOriginLocked(point model.Point) error {
	const op = "select"

	if err := s.checkLocked(op, gate.ActionSelect); err != nil {
		return err
	}
	if !point.OnBoard() {
		return model.Precondition(op, model.ErrInvalidPoint)
	}
	if s.board.Reserve(s.seat) > 0 {
		return model.Precondition(op, model.ErrReserveNotEmpty)
	}
	if !s.board.Holds(point, s.seat) {
		return model.Precondition(op, model.ErrNotYourPiece)
	}

	if s.selection != nil && *s.selection == point {
		s.selection = nil
		return nil
	}
	p := point
	s.selection = &p
	return nil
}

// SelectBar toggles selection of the player's pieces on the bar
func (s *Session) SelectBar() error {
	const op = "select_bar"

	s.mu.Lock()
	if err := s.checkLocked(op, gate.ActionSelect); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.board.Reserve(s.seat) == 0 {
		s.mu.Unlock()
		return model.Precondition(op, model.ErrReserveEmpty)
	}
	if s.selection != nil && *s.selection == model.BarPoint {
		s.selection = nil
	} else {
		bar := model.BarPoint
		s.selection = &bar
	}
	s.mu.Unlock()

	s.publish()
	return nil
}

// AttemptMove sends the selected piece to destination. The board only
// changes when PieceMoved arrives.
func (s *Session) AttemptMove(ctx context.Context, destination model.Point) error {
	op := string(model.MethodMovePiece)

	s.mu.Lock()
	err := s.checkLocked(op, gate.ActionMove)
	if err == nil && s.selection == nil {
		s.mu.Unlock()
		return model.Precondition(op, model.ErrNoSelection)
	}
	var from model.Point
	if err == nil {
		from = *s.selection
		if destination == from || (!destination.OnBoard() && destination != model.BearOffTarget(s.seat)) {
			err = model.Precondition(op, model.ErrInvalidPoint)
		}
	}
	if err != nil {
		// a refused move never leaves a half-made selection behind
		cleared := s.selection != nil
		s.selection = nil
		s.mu.Unlock()
		if cleared {
			s.publish()
		}
		return err
	}
	s.mu.Unlock()

	return s.move(ctx, from, destination)
}

func (s *Session) move(ctx context.Context, from, to model.Point) error {
	_, err := s.hub.Invoke(ctx, model.MethodMovePiece, from, to)
	if err != nil {
		s.mu.Lock()
		s.selection = nil
		s.mu.Unlock()
		s.logger.Debug("move rejected",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
			slog.String("error", err.Error()),
		)
		s.publish()
	}
	return err
}

// ClickPoint is the two-click move gesture. The first click selects an
// origin; a click on another point either moves there or, when the point
// holds the player's pieces, reselects.
func (s *Session) ClickPoint(ctx context.Context, point model.Point) error {
	s.mu.Lock()
	if err := s.checkLocked("click", gate.ActionSelect); err != nil {
		s.mu.Unlock()
		return err
	}
	var selected *model.Point
	if s.selection != nil {
		p := *s.selection
		selected = &p
	}
	holds := s.board.Holds(point, s.seat)
	s.mu.Unlock()

	switch {
	case selected == nil, *selected == point:
		return s.SelectOrigin(point)
	case *selected != model.BarPoint && holds:
		return s.SelectOrigin(point)
	default:
		return s.AttemptMove(ctx, point)
	}
}

// BearOff moves the selected piece off the board. The selection is
// cleared whatever the outcome.
func (s *Session) BearOff(ctx context.Context) error {
	op := "bear_off"

	s.mu.Lock()
	if err := s.checkLocked(op, gate.ActionBearOff); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.selection == nil {
		s.mu.Unlock()
		return model.Precondition(op, model.ErrNoSelection)
	}
	from := *s.selection
	target := model.BearOffTarget(s.seat)
	s.selection = nil
	s.mu.Unlock()
	s.publish()

	return s.move(ctx, from, target)
}

// EndTurn passes the turn. TurnActionTaken is only reset by the
// following TurnChanged.
func (s *Session) EndTurn(ctx context.Context) error {
	op := string(model.MethodEndTurn)

	s.mu.Lock()
	if err := s.checkLocked(op, gate.ActionEndTurn); err != nil {
		s.mu.Unlock()
		return err
	}
	prev := s.phase
	s.phase = model.TurnEnding
	s.selection = nil
	s.mu.Unlock()
	s.publish()

	if _, err := s.hub.Invoke(ctx, model.MethodEndTurn); err != nil {
		s.mu.Lock()
		if s.phase == model.TurnEnding {
			s.phase = prev
		}
		s.mu.Unlock()
		s.publish()
		return err
	}
	return nil
}

// Leave tells the server the player is leaving and tears the session
// down whether or not the server accepted.
func (s *Session) Leave(ctx context.Context) error {
	var err error
	if s.hub.State() == transport.StateConnected {
		_, err = s.hub.Invoke(ctx, model.MethodLeaveRoom)
		if err != nil {
			s.logger.Debug("leave room failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Info("left room")
	s.Close()
	return err
}

// Refresh replaces board and turn state with the server's snapshot
func (s *Session) Refresh(ctx context.Context) error {
	var snap model.GameSnapshotPayload
	if err := transport.InvokeInto(ctx, s.hub, &snap, model.MethodGetGameState, s.roomID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.board = normalizeBoard(snap.Board)
	s.turnOwner = snap.CurrentPlayer
	s.myTurnPending = false
	s.rollAbandoned = false
	s.turnActionTaken = snap.DiceRolled
	s.pendingRoll = append(model.Dice(nil), snap.Dice...)
	s.selection = nil
	switch {
	case snap.Ended:
		s.state = model.SessionEnded
	case snap.Started:
		s.state = model.SessionInProgress
	}
	if snap.DiceRolled {
		s.phase = model.ActionResolved
	} else {
		s.phase = model.TurnIdle
	}
	s.mu.Unlock()

	s.publish()
	return nil
}

// SendChat posts a chat line to the room. The message shows up in the
// log when the server echoes it back.
func (s *Session) SendChat(ctx context.Context, text string) error {
	return s.send(ctx, model.MethodSendChatMessage, text)
}

// SendQuickEmoji sends an emoji reaction to the room
func (s *Session) SendQuickEmoji(ctx context.Context, emoji string) error {
	return s.send(ctx, model.MethodSendQuickEmoji, emoji)
}

// SendQuickMessage sends a canned message to the room
func (s *Session) SendQuickMessage(ctx context.Context, message string) error {
	return s.send(ctx, model.MethodSendQuickMessage, message)
}

func (s *Session) send(ctx context.Context, method model.Method, text string) error {
	op := string(method)
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Precondition(op, model.ErrEmptyMessage)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Precondition(op, model.ErrSessionEnded)
	}
	if err := s.connectedLocked(op); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if !s.limiter.AllowN(s.clock.Now(), 1) {
		return model.Precondition(op, model.ErrRateLimited)
	}
	_, err := s.hub.Invoke(ctx, method, s.roomID, text)
	return err
}
