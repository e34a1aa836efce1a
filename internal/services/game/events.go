package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/transport"
)

// Bind registers the session's event handlers on the hub. They are
// released by Close.
func (s *Session) Bind() {
	s.subs.Add(
		on(s, model.EventJoinedRoom, s.applyJoinedRoom),
		on(s, model.EventPlayerJoined, s.applyPlayerJoined),
		on(s, model.EventOpponentInfo, s.applyOpponentInfo),
		on(s, model.EventPlayerLeft, s.applyPlayerLeft),
		on(s, model.EventGameStarting, s.applyGameStarting),
		on(s, model.EventGameStarted, s.applyGameStarted),
		on(s, model.EventTurnChanged, s.applyTurnChanged),
		on(s, model.EventDiceRolled, s.applyDiceRolled),
		on(s, model.EventPieceMoved, s.applyPieceMoved),
		on(s, model.EventGameEnded, s.applyGameEnded),
		on(s, model.EventError, s.applyServerError),
		on(s, model.EventJoinError, s.applyJoinError),
		on(s, model.EventChatMessage, s.applyChatMessage),
		on(s, model.EventQuickEmoji, s.applyQuickEmoji),
		on(s, model.EventQuickMessage, s.applyQuickMessage),
		s.hub.OnReconnecting(s.handleReconnecting),
		s.hub.OnReconnected(s.handleReconnected),
		s.hub.OnClosed(s.handleClosed),
		transport.NewSubscription(s.identity.OnConfirmed(s.handleConfirmed)),
	)
}

// on decodes the first event argument into T and applies it unless the
// session has ended
func on[T any](s *Session, event model.EventName, apply func(T)) *transport.Subscription {
	return s.hub.On(event, func(args transport.Arguments) {
		payload, err := transport.Decode[T](args)
		if err != nil {
			s.logger.Warn("ignoring malformed event",
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
			return
		}
		if s.ignoring() {
			s.logger.Debug("ignoring event after game end", slog.String("event", string(event)))
			return
		}
		apply(payload)
	})
}

func (s *Session) ignoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.state == model.SessionEnded
}

func (s *Session) applyJoinedRoom(p model.JoinedRoomPayload) {
	s.mu.Lock()
	s.state = model.SessionWaitingForOpponent
	if p.Color.Valid() {
		s.seat = p.Color
	}
	s.betAmount = p.BetAmount
	s.mu.Unlock()

	s.logger.Info("joined room",
		slog.String("color", string(p.Color)),
		slog.Float64("bet", float64(p.BetAmount)),
	)
	if p.WaitingForOpponent {
		s.notifier.Show(fmt.Sprintf("Waiting for an opponent (you play %s)", p.Color), model.LevelInfo)
	}
	s.publish()
}

// ApplyJoinedRoom feeds a JoinedRoom payload that arrived before the
// session was bound
func (s *Session) ApplyJoinedRoom(p model.JoinedRoomPayload) {
	if s.ignoring() {
		return
	}
	s.applyJoinedRoom(p)
}

func (s *Session) applyPlayerJoined(p model.Opponent) {
	s.setOpponent(p)
	s.notifier.Show(fmt.Sprintf("%s joined, the game is starting", p.Name), model.LevelInfo)
	s.publish()
}

func (s *Session) applyOpponentInfo(p model.Opponent) {
	s.setOpponent(p)
	s.publish()
}

func (s *Session) setOpponent(p model.Opponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opponent = &p
}

func (s *Session) applyPlayerLeft(p model.Opponent) {
	s.mu.Lock()
	s.opponent = nil
	s.mu.Unlock()

	name := string(p.Name)
	if name == "" {
		name = "Your opponent"
	}
	s.notifier.Show(name+" left the room", model.LevelWarning)
	s.publish()
}

func (s *Session) applyGameStarting(p model.GameStartingPayload) {
	s.mu.Lock()
	s.opening = &p
	s.mu.Unlock()

	s.notifier.Show(fmt.Sprintf("%s rolled %d, %s rolled %d. %s starts!",
		p.Player1.Name, p.Player1.Dice, p.Player2.Name, p.Player2.Dice, p.Starter), model.LevelSuccess)
	s.publish()
}

func (s *Session) applyGameStarted(p model.GameStartedPayload) {
	owner := p.CurrentPlayer
	pending := false
	if owner == "" && p.IsMyTurn {
		// the owner stays unknown, and nobody can act, until UserData
		// names me
		if me, ok := s.identity.Username(); ok {
			owner = me
		} else {
			pending = true
		}
	}

	s.mu.Lock()
	s.state = model.SessionInProgress
	s.phase = model.TurnIdle
	s.board = normalizeBoard(p.Board)
	s.turnOwner = owner
	s.myTurnPending = pending
	s.turnActionTaken = false
	s.rollAbandoned = false
	s.pendingRoll = nil
	s.selection = nil
	s.message = p.Message
	s.mu.Unlock()

	s.logger.Info("game started", slog.String("turn_owner", string(owner)))
	msg := p.Message
	if msg == "" {
		msg = "Game started!"
	}
	s.notifier.Show(msg, model.LevelSuccess)
	s.publish()
}

func (s *Session) applyTurnChanged(p model.TurnChangedPayload) {
	s.mu.Lock()
	s.turnOwner = p.CurrentPlayer
	s.myTurnPending = false
	s.rollAbandoned = false
	s.turnActionTaken = false
	s.pendingRoll = nil
	s.selection = nil
	s.phase = model.TurnIdle
	s.mu.Unlock()

	s.logger.Debug("turn changed", slog.String("turn_owner", string(p.CurrentPlayer)))
	if s.isMe(p.CurrentPlayer) {
		s.notifier.Show("Your turn!", model.LevelInfo)
	} else {
		s.notifier.Show("Waiting for your opponent...", model.LevelInfo)
	}
	s.publish()
}

func (s *Session) applyDiceRolled(p model.DiceRolledPayload) {
	s.mu.Lock()
	mine := s.isMe(s.turnOwner)
	if mine && s.phase != model.ActionPending {
		phase := s.phase
		s.mu.Unlock()
		s.logger.Warn("ignoring dice roll",
			slog.String("phase", string(phase)),
			slog.String("error", model.ErrUnexpectedEvent.Error()),
		)
		return
	}
	s.pendingRoll = append(model.Dice(nil), p.Dice...)
	s.turnActionTaken = true
	s.rollAbandoned = false
	if mine {
		s.phase = model.ActionResolved
	}
	s.mu.Unlock()

	s.notifier.Show("Dice: "+formatDice(p.Dice), model.LevelInfo)
	s.publish()
}

func (s *Session) applyPieceMoved(p model.PieceMovedPayload) {
	s.mu.Lock()
	s.board = normalizeBoard(p.Board)
	s.selection = nil
	if s.phase == model.ActionResolved {
		s.phase = model.MovesAvailable
	}
	s.mu.Unlock()

	s.notifier.Show(describeMove(p.FromPoint, p.ToPoint), model.LevelSuccess)
	s.publish()
}

func (s *Session) applyGameEnded(p model.GameEndedPayload) {
	s.mu.Lock()
	s.state = model.SessionEnded
	s.selection = nil
	s.message = p.Message
	s.mu.Unlock()

	s.logger.Info("game ended", slog.String("winner", string(p.Winner)))
	s.notifier.Show(p.Message, model.LevelSuccess)
	s.publish()
	s.ended.Notify(p)
}

// applyServerError shows the server's message. A roll nobody waited for
// gets its only answer here, so it is given up on.
func (s *Session) applyServerError(msg string) {
	s.mu.Lock()
	released := s.rollAbandoned && s.phase == model.ActionPending
	if released {
		s.phase = model.TurnIdle
		s.rollAbandoned = false
	}
	s.mu.Unlock()

	s.notifier.Show(msg, model.LevelError)
	if released {
		s.publish()
	}
}

// handleConfirmed resolves an opening turn that was announced as mine
// before my username was known
func (s *Session) handleConfirmed(id model.PlayerIdentity) {
	s.mu.Lock()
	resolved := s.myTurnPending && s.turnOwner == "" && !s.closed
	if resolved {
		s.turnOwner = id.Username
	}
	s.myTurnPending = false
	s.mu.Unlock()

	if resolved {
		s.logger.Debug("opening turn resolved", slog.String("turn_owner", string(id.Username)))
		s.publish()
	}
}

func (s *Session) applyJoinError(msg string) {
	s.logger.Warn("join rejected", slog.String("message", msg))
	s.fatal.Notify(model.Fatal(string(model.MethodJoinRoom), fmt.Errorf("%w: %s", model.ErrJoinRejected, msg)))
}

func (s *Session) applyChatMessage(p model.ChatMessagePayload) {
	s.chat.Receive(context.Background(), p.Sender, p.Message, p.ImageURL)
}

func (s *Session) applyQuickEmoji(p model.QuickEmojiPayload) {
	s.overlay.ShowEmoji(p.Sender, p.Emoji)
}

func (s *Session) applyQuickMessage(p model.QuickMessagePayload) {
	s.overlay.ShowMessage(p.Sender, p.Message)
}

// handleReconnecting drops transient selection state. A roll that was in
// flight is given up on.
func (s *Session) handleReconnecting(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.selection = nil
	s.pendingRoll = nil
	s.rollAbandoned = false
	if s.phase == model.ActionPending {
		s.phase = model.TurnIdle
	}
	s.mu.Unlock()

	s.notifier.Show(model.ErrReconnecting.Error(), model.LevelWarning)
	s.publish()
}

// handleReconnected rejoins the room on the new connection and re-reads
// the authoritative state
func (s *Session) handleReconnected() {
	if s.Closed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResyncTimeout)
	defer cancel()

	if _, err := s.hub.Invoke(ctx, model.MethodJoinRoom, s.roomID, s.passwordArg()); err != nil {
		s.logger.Debug("rejoin after reconnect rejected", slog.String("error", err.Error()))
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("resync after reconnect failed", slog.String("error", err.Error()))
		return
	}
	s.notifier.Show("Reconnected", model.LevelSuccess)
}

func (s *Session) handleClosed(err error) {
	if s.Closed() {
		return
	}
	if err == nil {
		err = model.ErrConnectionLost
	}
	if !model.IsKind(err, model.KindFatal) {
		err = model.Fatal("hub", err)
	}
	s.fatal.Notify(err)
}

func normalizeBoard(b model.Board) model.Board {
	out := model.NewBoard()
	for p, pieces := range b.Points {
		if len(pieces) > 0 {
			out.Points[p] = append([]model.Color(nil), pieces...)
		}
	}
	for c, n := range b.Bar {
		out.Bar[c] = n
	}
	for c, n := range b.Home {
		out.Home[c] = n
	}
	return out
}

func formatDice(d model.Dice) string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "-")
}

func describeMove(from, to model.Point) string {
	switch {
	case from == model.BarPoint:
		return fmt.Sprintf("BAR → %d", to)
	case !to.OnBoard():
		return fmt.Sprintf("%d → HOME", from)
	default:
		return fmt.Sprintf("%d → %d", from, to)
	}
}
