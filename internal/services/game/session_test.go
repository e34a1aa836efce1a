package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/feedback"
	"github.com/mcoot/tablesync/internal/services/identity"
	"github.com/mcoot/tablesync/internal/services/wallet"
	"github.com/mcoot/tablesync/internal/storage/memory"
	"github.com/mcoot/tablesync/internal/testutil"
	"github.com/mcoot/tablesync/internal/transport/transporttest"
)

const (
	me       model.Username = "alice42"
	opponent model.Username = "bob"
)

type SessionSuite struct {
	suite.Suite
	hub      *transporttest.FakeHub
	clock    *mocks.MockClock
	binder   *identity.Binder
	notifier *feedback.Notifier
	storage  *memory.Storage
	session  *Session
	ctx      context.Context
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.hub = transporttest.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.binder = identity.NewBinder("Alice", wallet.New(logger), logger)
	s.binder.Bind(s.hub)
	s.notifier = feedback.NewNotifier(s.clock, 5*time.Second, logger)
	s.storage = memory.New()
	s.ctx = context.Background()

	s.session = NewSession("room-1", "", s.hub, s.binder, s.notifier, s.storage, s.clock, DefaultConfig(), logger)
	s.session.Bind()
}

func (s *SessionSuite) TearDownTest() {
	s.session.Close()
	s.notifier.Close()
}

// helpers

func testBoard() model.Board {
	b := model.NewBoard()
	b.Points[1] = []model.Color{model.ColorWhite, model.ColorWhite}
	b.Points[12] = []model.Color{model.ColorWhite, model.ColorWhite, model.ColorWhite}
	b.Points[19] = []model.Color{model.ColorBlack}
	b.Points[24] = []model.Color{model.ColorBlack, model.ColorBlack}
	return b
}

func (s *SessionSuite) confirm() {
	s.hub.Emit(model.EventUserData, model.UserDataPayload{Username: me, FullName: "Alice", Balance: 100})
}

func (s *SessionSuite) start(color model.Color, owner model.Username) {
	s.hub.Emit(model.EventJoinedRoom, model.JoinedRoomPayload{RoomID: "room-1", Color: color, BetAmount: 10})
	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: testBoard(), CurrentPlayer: owner})
}

// startMyTurn confirms the identity and starts a game on my turn as white
func (s *SessionSuite) startMyTurn() {
	s.confirm()
	s.start(model.ColorWhite, me)
}

// rolled completes a roll of dice on my turn
func (s *SessionSuite) rolled(dice ...int) {
	s.Require().NoError(s.session.Roll(s.ctx))
	s.hub.Emit(model.EventDiceRolled, model.DiceRolledPayload{Dice: dice, Player: me})
}

func (s *SessionSuite) moveArgs(i int) (model.Point, model.Point) {
	calls := s.hub.CallsTo(model.MethodMovePiece)
	s.Require().Greater(len(calls), i)
	var from, to model.Point
	s.Require().NoError(calls[i].Decode(0, &from))
	s.Require().NoError(calls[i].Decode(1, &to))
	return from, to
}

// Lifecycle tests

func (s *SessionSuite) TestStartsJoining() {
	snap := s.session.Snapshot()
	s.Equal(model.SessionJoining, snap.State)
	s.Equal(model.TurnIdle, snap.Phase)
}

func (s *SessionSuite) TestJoinSendsRoomAndPassword() {
	session := NewSession("room-2", "secret", s.hub, s.binder, s.notifier, s.storage, s.clock, DefaultConfig(), testutil.NopLogger())
	defer session.Close()

	s.Require().NoError(session.Join(s.ctx))

	calls := s.hub.CallsTo(model.MethodJoinRoom)
	s.Require().Len(calls, 1)
	var room model.RoomID
	var password string
	s.Require().NoError(calls[0].Decode(0, &room))
	s.Require().NoError(calls[0].Decode(1, &password))
	s.Equal(model.RoomID("room-2"), room)
	s.Equal("secret", password)
}

func (s *SessionSuite) TestJoinedRoomWaitsForOpponent() {
	s.hub.Emit(model.EventJoinedRoom, model.JoinedRoomPayload{RoomID: "room-1", Color: model.ColorBlack, BetAmount: 25, WaitingForOpponent: true})

	snap := s.session.Snapshot()
	s.Equal(model.SessionWaitingForOpponent, snap.State)
	s.Equal(model.ColorBlack, snap.Seat)
	s.Equal(model.Amount(25), snap.BetAmount)

	note, ok := s.notifier.Current()
	s.Require().True(ok)
	s.Contains(note.Text, "Waiting for an opponent")
}

func (s *SessionSuite) TestOpponentRecorded() {
	s.hub.Emit(model.EventPlayerJoined, model.Opponent{Name: "Bob", Color: model.ColorBlack})

	snap := s.session.Snapshot()
	s.Require().NotNil(snap.Opponent)
	s.Equal(model.DisplayName("Bob"), snap.Opponent.Name)

	s.hub.Emit(model.EventPlayerLeft, model.Opponent{Name: "Bob"})
	s.Nil(s.session.Snapshot().Opponent)
}

func (s *SessionSuite) TestGameStartedEntersInProgress() {
	s.startMyTurn()

	snap := s.session.Snapshot()
	s.Equal(model.SessionInProgress, snap.State)
	s.Equal(me, snap.TurnOwner)
	s.Equal(3, snap.Board.Count(12))
	s.True(s.session.Eligibility().CanPerformPrimaryAction)
}

func (s *SessionSuite) TestGameStartedIsMyTurnUsesConfirmedUsername() {
	s.confirm()
	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: testBoard(), IsMyTurn: true})

	s.Equal(me, s.session.Snapshot().TurnOwner)
}

func (s *SessionSuite) TestGameStartedBeforeUserDataWaitsForIdentity() {
	s.hub.Emit(model.EventJoinedRoom, model.JoinedRoomPayload{RoomID: "room-1", Color: model.ColorWhite, BetAmount: 10})
	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: testBoard(), IsMyTurn: true})

	s.Equal(model.Username(""), s.session.Snapshot().TurnOwner)
	s.False(s.session.Eligibility().CanAct)
	s.ErrorIs(s.session.Roll(s.ctx), model.ErrIdentityUnconfirmed)

	s.confirm()

	s.Equal(me, s.session.Snapshot().TurnOwner)
	s.True(s.session.Eligibility().CanPerformPrimaryAction)
	s.Require().NoError(s.session.Roll(s.ctx))
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)
}

func (s *SessionSuite) TestPendingOpeningTurnYieldsToTurnChanged() {
	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: testBoard(), IsMyTurn: true})
	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: opponent})

	s.confirm()

	s.Equal(opponent, s.session.Snapshot().TurnOwner)
	s.False(s.session.Eligibility().CanAct)
}

// Identity gating tests

func (s *SessionSuite) TestUnconfirmedIdentityCannotAct() {
	s.start(model.ColorWhite, me)

	s.False(s.session.Eligibility().CanAct)
	err := s.session.Roll(s.ctx)
	s.ErrorIs(err, model.ErrIdentityUnconfirmed)
	s.Empty(s.hub.CallsTo(model.MethodRollDice))
}

func (s *SessionSuite) TestLateUserDataEnablesActions() {
	s.start(model.ColorWhite, me)
	s.False(s.session.Eligibility().CanAct)

	s.confirm()
	s.True(s.session.Eligibility().CanAct)
}

func (s *SessionSuite) TestDisplayNameNeverMatchesTurnOwner() {
	s.confirm()
	s.start(model.ColorWhite, "Alice")

	s.False(s.session.Eligibility().CanAct)
	s.ErrorIs(s.session.Roll(s.ctx), model.ErrNotYourTurn)
}

// Roll tests

func (s *SessionSuite) TestRollMarksActionPending() {
	s.startMyTurn()

	s.Require().NoError(s.session.Roll(s.ctx))
	s.Equal(model.ActionPending, s.session.Snapshot().Phase)
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)
}

func (s *SessionSuite) TestOnlyOneRollInFlight() {
	s.startMyTurn()

	s.Require().NoError(s.session.Roll(s.ctx))
	err := s.session.Roll(s.ctx)

	s.ErrorIs(err, model.ErrActionPending)
	s.True(model.IsKind(err, model.KindPrecondition))
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)
}

func (s *SessionSuite) TestAbandonedRollStillTakesDice() {
	s.startMyTurn()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.session.Roll(ctx)
	s.ErrorIs(err, context.Canceled)
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)
	s.Equal(model.ActionPending, s.session.Snapshot().Phase)

	// the roll is still out, so no second one is sent
	s.ErrorIs(s.session.Roll(s.ctx), model.ErrActionPending)
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)

	s.hub.Emit(model.EventDiceRolled, model.DiceRolledPayload{Dice: model.Dice{3, 5}, Player: me})

	snap := s.session.Snapshot()
	s.Equal(model.ActionResolved, snap.Phase)
	s.True(snap.TurnActionTaken)
	s.Equal(model.Dice{3, 5}, snap.PendingRoll)
	s.True(s.session.Eligibility().CanMove)
	s.False(s.session.Eligibility().CanPerformPrimaryAction)
}

func (s *SessionSuite) TestAbandonedRollReleasedByServerError() {
	s.startMyTurn()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.Require().Error(s.session.Roll(ctx))

	s.hub.Emit(model.EventError, "Not your turn")

	s.Equal(model.TurnIdle, s.session.Snapshot().Phase)
	s.Require().NoError(s.session.Roll(s.ctx))
	s.Len(s.hub.CallsTo(model.MethodRollDice), 2)
}

func (s *SessionSuite) TestServerErrorLeavesAwaitedRollAlone() {
	s.startMyTurn()
	s.Require().NoError(s.session.Roll(s.ctx))

	s.hub.Emit(model.EventError, "Something else went wrong")

	s.Equal(model.ActionPending, s.session.Snapshot().Phase)
}

func (s *SessionSuite) TestOneRollPerTurn() {
	s.confirm()
	s.start(model.ColorWhite, opponent)

	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: me})
	s.rolled(2, 6)

	err := s.session.Roll(s.ctx)
	s.ErrorIs(err, model.ErrAlreadyRolled)
	s.Len(s.hub.CallsTo(model.MethodRollDice), 1)

	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: me})
	s.Require().NoError(s.session.Roll(s.ctx))
	s.Len(s.hub.CallsTo(model.MethodRollDice), 2)
}

func (s *SessionSuite) TestDiceRolledResolvesAction() {
	s.startMyTurn()
	s.rolled(3, 5)

	snap := s.session.Snapshot()
	s.Equal(model.ActionResolved, snap.Phase)
	s.True(snap.TurnActionTaken)
	s.Equal(model.Dice{3, 5}, snap.PendingRoll)

	e := s.session.Eligibility()
	s.False(e.CanPerformPrimaryAction)
	s.True(e.CanMove)
	s.ErrorIs(s.session.Roll(s.ctx), model.ErrAlreadyRolled)
}

func (s *SessionSuite) TestRollFailureRevertsPhase() {
	s.startMyTurn()
	s.hub.Reject(model.MethodRollDice, "Not your turn")

	err := s.session.Roll(s.ctx)
	s.True(model.IsKind(err, model.KindServerRejection))
	s.Equal("Not your turn", model.UserMessage(err))

	snap := s.session.Snapshot()
	s.Equal(model.TurnIdle, snap.Phase)
	s.False(snap.TurnActionTaken)
}

func (s *SessionSuite) TestUnexpectedDiceRolledIgnored() {
	s.startMyTurn()

	s.hub.Emit(model.EventDiceRolled, model.DiceRolledPayload{Dice: model.Dice{6, 6}})

	snap := s.session.Snapshot()
	s.Equal(model.TurnIdle, snap.Phase)
	s.False(snap.TurnActionTaken)
	s.Empty(snap.PendingRoll)
}

func (s *SessionSuite) TestOpponentDiceRecordedForDisplay() {
	s.confirm()
	s.start(model.ColorWhite, opponent)

	s.hub.Emit(model.EventDiceRolled, model.DiceRolledPayload{Dice: model.Dice{2, 4}, Player: opponent})

	snap := s.session.Snapshot()
	s.Equal(model.Dice{2, 4}, snap.PendingRoll)
	s.True(snap.TurnActionTaken)
	s.Equal(model.TurnIdle, snap.Phase)
	s.False(s.session.Eligibility().CanAct)
}

// Turn tests

func (s *SessionSuite) TestTurnChangedResetsTurnState() {
	s.startMyTurn()
	s.rolled(3, 5)
	s.Require().NoError(s.session.SelectOrigin(12))

	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: opponent})

	snap := s.session.Snapshot()
	s.Equal(opponent, snap.TurnOwner)
	s.False(snap.TurnActionTaken)
	s.Empty(snap.PendingRoll)
	s.Nil(snap.Selection)
	s.Equal(model.TurnIdle, snap.Phase)
	s.False(s.session.Eligibility().CanAct)

	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: me})
	s.True(s.session.Eligibility().CanPerformPrimaryAction)
}

func (s *SessionSuite) TestEndTurnDoesNotResetActionTaken() {
	s.startMyTurn()
	s.rolled(3, 5)

	s.Require().NoError(s.session.EndTurn(s.ctx))

	snap := s.session.Snapshot()
	s.Equal(model.TurnEnding, snap.Phase)
	s.True(snap.TurnActionTaken)
	s.Len(s.hub.CallsTo(model.MethodEndTurn), 1)
}

func (s *SessionSuite) TestEndTurnFailureRestoresPhase() {
	s.startMyTurn()
	s.rolled(3, 5)
	s.hub.Reject(model.MethodEndTurn, "You must move first")

	err := s.session.EndTurn(s.ctx)
	s.True(model.IsKind(err, model.KindServerRejection))
	s.Equal(model.ActionResolved, s.session.Snapshot().Phase)
}

func (s *SessionSuite) TestEndTurnRequiresMyTurn() {
	s.confirm()
	s.start(model.ColorWhite, opponent)

	s.ErrorIs(s.session.EndTurn(s.ctx), model.ErrNotYourTurn)
	s.Empty(s.hub.CallsTo(model.MethodEndTurn))
}

// Selection tests

func (s *SessionSuite) TestSelectRequiresRoll() {
	s.startMyTurn()

	s.ErrorIs(s.session.SelectOrigin(12), model.ErrRollFirst)
}

func (s *SessionSuite) TestSelectOriginToggles() {
	s.startMyTurn()
	s.rolled(3, 5)

	s.Require().NoError(s.session.SelectOrigin(12))
	s.Require().NotNil(s.session.Snapshot().Selection)
	s.Equal(model.Point(12), *s.session.Snapshot().Selection)

	s.Require().NoError(s.session.SelectOrigin(12))
	s.Nil(s.session.Snapshot().Selection)
}

func (s *SessionSuite) TestSelectOriginRejectsForeignPoints() {
	s.startMyTurn()
	s.rolled(3, 5)

	s.ErrorIs(s.session.SelectOrigin(24), model.ErrNotYourPiece)
	s.ErrorIs(s.session.SelectOrigin(5), model.ErrNotYourPiece)
	s.ErrorIs(s.session.SelectOrigin(30), model.ErrInvalidPoint)
}

func (s *SessionSuite) TestReserveMustBeEnteredFirst() {
	s.confirm()
	board := testBoard()
	board.Bar[model.ColorWhite] = 1
	s.hub.Emit(model.EventJoinedRoom, model.JoinedRoomPayload{RoomID: "room-1", Color: model.ColorWhite})
	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: board, CurrentPlayer: me})
	s.rolled(2, 6)

	s.ErrorIs(s.session.SelectOrigin(12), model.ErrReserveNotEmpty)

	s.Require().NoError(s.session.SelectBar())
	s.Equal(model.BarPoint, *s.session.Snapshot().Selection)

	s.Require().NoError(s.session.ClickPoint(s.ctx, 20))
	from, to := s.moveArgs(0)
	s.Equal(model.BarPoint, from)
	s.Equal(model.Point(20), to)
}

func (s *SessionSuite) TestSelectBarWithEmptyReserve() {
	s.startMyTurn()
	s.rolled(1, 2)

	s.ErrorIs(s.session.SelectBar(), model.ErrReserveEmpty)
}

// Move tests

func (s *SessionSuite) TestTwoClickMove() {
	s.startMyTurn()
	s.rolled(3, 4)

	s.Require().NoError(s.session.ClickPoint(s.ctx, 12))
	s.Require().NoError(s.session.ClickPoint(s.ctx, 16))

	from, to := s.moveArgs(0)
	s.Equal(model.Point(12), from)
	s.Equal(model.Point(16), to)

	// the board only changes on PieceMoved
	snap := s.session.Snapshot()
	s.Equal(3, snap.Board.Count(12))
	s.NotNil(snap.Selection)

	moved := testBoard()
	moved.Points[12] = moved.Points[12][:2]
	moved.Points[16] = []model.Color{model.ColorWhite}
	s.hub.Emit(model.EventPieceMoved, model.PieceMovedPayload{Board: moved, FromPoint: 12, ToPoint: 16})

	snap = s.session.Snapshot()
	s.Equal(2, snap.Board.Count(12))
	s.Equal(1, snap.Board.Count(16))
	s.Nil(snap.Selection)
	s.Equal(model.MovesAvailable, snap.Phase)
}

func (s *SessionSuite) TestClickOwnPointReselects() {
	s.startMyTurn()
	s.rolled(3, 4)

	s.Require().NoError(s.session.ClickPoint(s.ctx, 12))
	s.Require().NoError(s.session.ClickPoint(s.ctx, 1))

	s.Equal(model.Point(1), *s.session.Snapshot().Selection)
	s.Empty(s.hub.CallsTo(model.MethodMovePiece))
}

func (s *SessionSuite) TestRejectedMoveClearsSelection() {
	s.startMyTurn()
	s.rolled(3, 4)
	s.hub.Reject(model.MethodMovePiece, "Invalid move")

	s.Require().NoError(s.session.ClickPoint(s.ctx, 12))
	err := s.session.ClickPoint(s.ctx, 20)

	s.True(model.IsKind(err, model.KindServerRejection))
	s.Nil(s.session.Snapshot().Selection)
	s.Equal(3, s.session.Snapshot().Board.Count(12))
}

func (s *SessionSuite) TestLocallyRefusedMoveClearsSelection() {
	tests := []struct {
		name        string
		destination model.Point
	}{
		{"off the board", 30},
		{"same point", 12},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.startMyTurn()
			s.rolled(3, 4)
			s.Require().NoError(s.session.SelectOrigin(12))

			err := s.session.AttemptMove(s.ctx, tt.destination)

			s.ErrorIs(err, model.ErrInvalidPoint)
			s.Nil(s.session.Snapshot().Selection)
			s.Empty(s.hub.CallsTo(model.MethodMovePiece))
		})
	}
}

func (s *SessionSuite) TestGateRefusedMoveClearsSelection() {
	s.startMyTurn()
	s.rolled(3, 4)
	s.Require().NoError(s.session.SelectOrigin(12))
	s.hub.GiveUp(model.Connection("hub", model.ErrConnectionLost))
	s.Require().NotNil(s.session.Snapshot().Selection)

	err := s.session.AttemptMove(s.ctx, 16)

	s.ErrorIs(err, model.ErrNotConnected)
	s.Nil(s.session.Snapshot().Selection)
	s.Empty(s.hub.CallsTo(model.MethodMovePiece))
}

func (s *SessionSuite) TestAttemptMoveWithoutSelection() {
	s.startMyTurn()
	s.rolled(3, 4)

	s.ErrorIs(s.session.AttemptMove(s.ctx, 15), model.ErrNoSelection)
}

func (s *SessionSuite) TestBearOffTargets() {
	tests := []struct {
		color  model.Color
		origin model.Point
		target model.Point
	}{
		{model.ColorWhite, 1, 0},
		{model.ColorBlack, 24, 25},
	}

	for _, tt := range tests {
		s.Run(string(tt.color), func() {
			s.SetupTest()
			s.confirm()
			s.start(tt.color, me)
			s.rolled(1, 1)

			s.Require().NoError(s.session.SelectOrigin(tt.origin))
			s.Require().NoError(s.session.BearOff(s.ctx))

			from, to := s.moveArgs(0)
			s.Equal(tt.origin, from)
			s.Equal(tt.target, to)
			s.Nil(s.session.Snapshot().Selection)
		})
	}
}

func (s *SessionSuite) TestBearOffFailureClearsSelection() {
	s.startMyTurn()
	s.rolled(1, 1)
	s.hub.Reject(model.MethodMovePiece, "Not all pieces are home")

	s.Require().NoError(s.session.SelectOrigin(1))
	err := s.session.BearOff(s.ctx)

	s.Error(err)
	s.Nil(s.session.Snapshot().Selection)
}

func (s *SessionSuite) TestBearOffRequiresSelection() {
	s.startMyTurn()
	s.rolled(1, 1)

	s.ErrorIs(s.session.BearOff(s.ctx), model.ErrNoSelection)
}

// Connection tests

func (s *SessionSuite) TestActionsWhileReconnectingFailFast() {
	s.startMyTurn()
	s.hub.Drop()

	err := s.session.Roll(s.ctx)
	s.True(model.IsKind(err, model.KindConnection))
	s.ErrorIs(err, model.ErrReconnecting)
	s.Empty(s.hub.CallsTo(model.MethodRollDice))
}

func (s *SessionSuite) TestReconnectClearsTransientStateAndResyncs() {
	s.startMyTurn()
	s.rolled(3, 4)
	s.Require().NoError(s.session.SelectOrigin(12))

	s.hub.Drop()
	snap := s.session.Snapshot()
	s.Nil(snap.Selection)
	s.Empty(snap.PendingRoll)

	s.hub.Reject(model.MethodJoinRoom, "Already in room")
	s.hub.Reply(model.MethodGetGameState, model.GameSnapshotPayload{
		RoomID:        "room-1",
		Board:         testBoard(),
		CurrentPlayer: me,
		Dice:          model.Dice{3, 4},
		DiceRolled:    true,
		Started:       true,
	})
	s.hub.Restore()

	s.Len(s.hub.CallsTo(model.MethodJoinRoom), 1)
	s.Len(s.hub.CallsTo(model.MethodGetGameState), 1)

	snap = s.session.Snapshot()
	s.Equal(model.Dice{3, 4}, snap.PendingRoll)
	s.True(snap.TurnActionTaken)
	s.True(s.session.Eligibility().CanMove)
}

func (s *SessionSuite) TestReconnectRevertsPendingRoll() {
	s.startMyTurn()
	s.Require().NoError(s.session.Roll(s.ctx))

	s.hub.Drop()

	s.Equal(model.TurnIdle, s.session.Snapshot().Phase)
}

func (s *SessionSuite) TestClosedTransportIsFatal() {
	var got error
	s.session.OnFatal(func(err error) { got = err })

	s.hub.GiveUp(model.Connection("hub", model.ErrConnectionLost))

	s.True(model.IsKind(got, model.KindFatal))
	s.ErrorIs(got, model.ErrConnectionLost)
}

// End of game tests

func (s *SessionSuite) TestGameEnded() {
	s.startMyTurn()
	var ended *model.GameEndedPayload
	s.session.OnEnded(func(p model.GameEndedPayload) { ended = &p })

	s.hub.Emit(model.EventGameEnded, model.GameEndedPayload{Message: "Alice wins!", Winner: me})

	s.Require().NotNil(ended)
	s.Equal(model.SessionEnded, s.session.Snapshot().State)
	s.ErrorIs(s.session.Roll(s.ctx), model.ErrSessionEnded)

	// events after the end are ignored
	s.hub.Emit(model.EventTurnChanged, model.TurnChangedPayload{CurrentPlayer: opponent})
	s.Equal(me, s.session.Snapshot().TurnOwner)
}

func (s *SessionSuite) TestJoinErrorIsFatal() {
	var got error
	s.session.OnFatal(func(err error) { got = err })

	s.hub.Emit(model.EventJoinError, "Room is full")

	s.True(model.IsKind(got, model.KindFatal))
	s.ErrorIs(got, model.ErrJoinRejected)
	s.Contains(model.UserMessage(got), "Room is full")
}

func (s *SessionSuite) TestServerErrorNotifies() {
	s.hub.Emit(model.EventError, "Something went wrong")

	note, ok := s.notifier.Current()
	s.Require().True(ok)
	s.Equal(model.LevelError, note.Level)
	s.Equal("Something went wrong", note.Text)
}

func (s *SessionSuite) TestLeaveTearsDownEvenWhenRejected() {
	s.startMyTurn()
	s.hub.Reject(model.MethodLeaveRoom, "Game in progress")
	exited := false
	s.session.OnExit(func() { exited = true })

	err := s.session.Leave(s.ctx)

	s.Error(err)
	s.True(exited)
	s.True(s.session.Closed())
	s.Len(s.hub.CallsTo(model.MethodLeaveRoom), 1)
	s.Equal(0, s.hub.HandlerCount(model.EventTurnChanged))
	s.Equal(1, s.hub.HandlerCount(model.EventUserData))
}

func (s *SessionSuite) TestCloseSilencesEvents() {
	changes := 0
	s.session.OnChange(func(model.SessionSnapshot) { changes++ })
	s.session.Close()

	s.hub.Emit(model.EventGameStarted, model.GameStartedPayload{Board: testBoard()})
	s.Equal(0, changes)
	s.Equal(model.SessionEnded, s.session.Snapshot().State)
}

func (s *SessionSuite) TestRefreshAppliesSnapshot() {
	s.confirm()
	s.hub.Reply(model.MethodGetGameState, model.GameSnapshotPayload{
		RoomID:        "room-1",
		Board:         testBoard(),
		CurrentPlayer: opponent,
		Started:       true,
	})

	s.Require().NoError(s.session.Refresh(s.ctx))

	snap := s.session.Snapshot()
	s.Equal(model.SessionInProgress, snap.State)
	s.Equal(opponent, snap.TurnOwner)
	s.Equal(model.TurnIdle, snap.Phase)

	var room model.RoomID
	s.Require().NoError(s.hub.CallsTo(model.MethodGetGameState)[0].Decode(0, &room))
	s.Equal(model.RoomID("room-1"), room)
}

// Social tests

func (s *SessionSuite) TestChatMessagesReachTheLog() {
	s.confirm()
	s.hub.Emit(model.EventChatMessage, model.ChatMessagePayload{Sender: "bob", Message: "gl"})
	s.hub.Emit(model.EventChatMessage, model.ChatMessagePayload{Sender: "Alice", Message: "you too"})

	view := s.session.Chat().View()
	s.Len(view.Messages, 2)
	s.Equal(1, view.Unread)
}

func (s *SessionSuite) TestChatImageReachesTheLog() {
	s.hub.Emit(model.EventChatMessage, model.ChatMessagePayload{Sender: "bob", ImageURL: "https://cdn.example/gg.png"})

	view := s.session.Chat().View()
	s.Require().Len(view.Messages, 1)
	s.Equal("https://cdn.example/gg.png", view.Messages[0].ImageURL)
	s.Empty(view.Messages[0].Text)

	history, err := s.storage.GetChatHistory(s.ctx, "room-1", 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("https://cdn.example/gg.png", history[0].ImageURL)
}

func (s *SessionSuite) TestSendChat() {
	s.Require().NoError(s.session.SendChat(s.ctx, "  hello  "))

	calls := s.hub.CallsTo(model.MethodSendChatMessage)
	s.Require().Len(calls, 1)
	var room model.RoomID
	var text string
	s.Require().NoError(calls[0].Decode(0, &room))
	s.Require().NoError(calls[0].Decode(1, &text))
	s.Equal(model.RoomID("room-1"), room)
	s.Equal("hello", text)

	s.ErrorIs(s.session.SendChat(s.ctx, "   "), model.ErrEmptyMessage)
}

func (s *SessionSuite) TestSendsAreRateLimited() {
	for i := 0; i < DefaultConfig().SendBurst; i++ {
		s.Require().NoError(s.session.SendQuickEmoji(s.ctx, "🎲"))
	}
	s.ErrorIs(s.session.SendQuickMessage(s.ctx, "Good luck"), model.ErrRateLimited)

	s.clock.Advance(DefaultConfig().SendInterval)
	s.NoError(s.session.SendQuickMessage(s.ctx, "Good luck"))
}

func (s *SessionSuite) TestQuickEmojiShowsOverlay() {
	s.hub.Emit(model.EventQuickEmoji, model.QuickEmojiPayload{Sender: "bob", Emoji: "😮"})

	items := s.session.Overlay().Items()
	s.Require().Len(items, 1)
	s.Equal("😮", items[0].Content)

	s.clock.Advance(2 * time.Second)
	s.Empty(s.session.Overlay().Items())
}

func (s *SessionSuite) TestSendWhileDisconnected() {
	s.hub.GiveUp(errors.New("gone"))

	err := s.session.SendChat(s.ctx, "hi")
	s.True(model.IsKind(err, model.KindConnection))
	s.ErrorIs(err, model.ErrNotConnected)
}

func (s *SessionSuite) TestMalformedEventIgnored() {
	s.hub.Emit(model.EventTurnChanged, "not an object")

	s.Equal(model.Username(""), s.session.Snapshot().TurnOwner)
}
