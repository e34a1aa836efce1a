package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/dependencies/mocks"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/protocol"
	"github.com/mcoot/tablesync/internal/testutil"
	"github.com/mcoot/tablesync/internal/testutil/fakehub"
)

const waitTimeout = 2 * time.Second

type SessionSuite struct {
	suite.Suite
	hub     *fakehub.Server
	session *Session
	ctx     context.Context
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.hub = fakehub.New(s.T())
	s.ctx = context.Background()
	s.session = s.newSession(StaticToken("token-1"))
}

func (s *SessionSuite) TearDownTest() {
	_ = s.session.Close()
}

func (s *SessionSuite) newSession(tokens TokenProvider) *Session {
	cfg := DefaultConfig()
	cfg.URL = s.hub.URL()
	cfg.Retry = RetryPolicy{Delays: []time.Duration{0, 10 * time.Millisecond, 10 * time.Millisecond}}
	return NewSession(cfg, tokens, clock.New(), mocks.NewMockRandom(), testutil.NopLogger())
}

func (s *SessionSuite) connect() {
	s.Require().NoError(s.session.Connect(s.ctx))
	s.Require().Equal(StateConnected, s.session.State())
}

func (s *SessionSuite) waitSignal(ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		s.FailNow("timed out waiting for signal")
	}
}

// Invoke tests

func (s *SessionSuite) TestInvokeReturnsResult() {
	s.hub.Reply("GetAvailableRooms", []model.RoomSummary{{ID: "r1", BetAmount: 10}})
	s.connect()

	var rooms []model.RoomSummary
	err := InvokeInto(s.ctx, s.session, &rooms, model.MethodGetAvailableRooms)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(model.RoomID("r1"), rooms[0].ID)
}

func (s *SessionSuite) TestInvokeSendsArguments() {
	s.hub.Reply("MovePiece", nil)
	s.connect()

	_, err := s.session.Invoke(s.ctx, model.MethodMovePiece, 13, 8)
	s.Require().NoError(err)

	calls := s.hub.CallsTo("MovePiece")
	s.Require().Len(calls, 1)
	var from, to int
	s.Require().NoError(calls[0].Args.Decode(0, &from))
	s.Require().NoError(calls[0].Args.Decode(1, &to))
	s.Equal(13, from)
	s.Equal(8, to)
}

func (s *SessionSuite) TestInvokeRejectionIsCategorized() {
	s.hub.Reject("RollDice", "Not your turn")
	s.connect()

	_, err := s.session.Invoke(s.ctx, model.MethodRollDice)
	s.Require().Error(err)
	s.True(model.IsKind(err, model.KindServerRejection))
	s.ErrorIs(err, model.ErrServerRejected)
	s.Equal("Not your turn", model.UserMessage(err))
}

func (s *SessionSuite) TestInvokeBeforeConnectFailsLocally() {
	_, err := s.session.Invoke(s.ctx, model.MethodRollDice)
	s.True(model.IsKind(err, model.KindConnection))
	s.ErrorIs(err, model.ErrNotConnected)
	s.Empty(s.hub.Calls())
}

func (s *SessionSuite) TestInvokeStopsWaitingOnContextCancel() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })
	s.hub.Handle("RollDice", func(protocol.Arguments) (any, error) {
		<-release
		return nil, nil
	})
	s.connect()

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	_, err := s.session.Invoke(ctx, model.MethodRollDice)
	s.ErrorIs(err, context.DeadlineExceeded)
}

// Event tests

func (s *SessionSuite) TestHandlersRunInRegistrationOrder() {
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	s.session.On(model.EventTurnChanged, func(protocol.Arguments) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	s.session.On(model.EventTurnChanged, func(protocol.Arguments) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
	})
	s.connect()

	s.hub.Emit("TurnChanged", model.TurnChangedPayload{CurrentPlayer: "alice"})
	s.waitSignal(done)

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]string{"first", "second"}, order)
}

func (s *SessionSuite) TestEventsAreDeliveredInOrder() {
	const count = 50
	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})

	s.session.On(model.EventDiceRolled, func(args protocol.Arguments) {
		var n int
		_ = args.Decode(0, &n)
		mu.Lock()
		seen = append(seen, n)
		if len(seen) == count {
			close(done)
		}
		mu.Unlock()
	})
	s.connect()

	for i := 0; i < count; i++ {
		s.hub.Emit("DiceRolled", i)
	}
	s.waitSignal(done)

	mu.Lock()
	defer mu.Unlock()
	for i, n := range seen {
		s.Equal(i, n)
	}
}

func (s *SessionSuite) TestOffRemovesHandler() {
	called := make(chan struct{}, 1)
	done := make(chan struct{})

	sub := s.session.On(model.EventGameEnded, func(protocol.Arguments) { called <- struct{}{} })
	s.session.On(model.EventGameEnded, func(protocol.Arguments) { close(done) })
	sub.Off()
	sub.Off()
	s.connect()

	s.hub.Emit("GameEnded", model.GameEndedPayload{Message: "done"})
	s.waitSignal(done)
	s.Len(called, 0)
	s.Equal(1, s.session.HandlerCount(model.EventGameEnded))
}

func (s *SessionSuite) TestHandlerMayInvoke() {
	s.hub.Reply("GetGameState", model.GameSnapshotPayload{RoomID: "r1"})
	result := make(chan error, 1)

	s.session.On(model.EventGameStarted, func(protocol.Arguments) {
		_, err := s.session.Invoke(s.ctx, model.MethodGetGameState)
		result <- err
	})
	s.connect()

	s.hub.Emit("GameStarted", model.GameStartedPayload{})
	select {
	case err := <-result:
		s.NoError(err)
	case <-time.After(waitTimeout):
		s.FailNow("handler invoke deadlocked")
	}
}

// Reconnect tests

func (s *SessionSuite) TestReconnectPreservesHandlers() {
	reconnecting := make(chan struct{}, 1)
	reconnected := make(chan struct{}, 1)
	delivered := make(chan struct{}, 1)

	s.session.OnReconnecting(func(error) { reconnecting <- struct{}{} })
	s.session.OnReconnected(func() { reconnected <- struct{}{} })
	s.session.On(model.EventTurnChanged, func(protocol.Arguments) { delivered <- struct{}{} })
	s.connect()

	s.hub.DropConnections()
	s.waitSignal(reconnecting)
	s.waitSignal(reconnected)
	s.Equal(StateConnected, s.session.State())
	s.Equal(2, s.hub.Accepted())

	s.hub.Emit("TurnChanged", model.TurnChangedPayload{CurrentPlayer: "bob"})
	s.waitSignal(delivered)
}

func (s *SessionSuite) TestReconnectedPrecedesEventsFromNewSocket() {
	var mu sync.Mutex
	var order []string
	record := func(what string) {
		mu.Lock()
		order = append(order, what)
		mu.Unlock()
	}
	delivered := make(chan struct{}, 1)

	s.session.OnReconnected(func() { record("reconnected") })
	s.session.On(model.EventTurnChanged, func(protocol.Arguments) {
		record("turn")
		delivered <- struct{}{}
	})
	s.connect()

	s.hub.OnConnect(func(p *fakehub.Peer) {
		p.Emit("TurnChanged", model.TurnChangedPayload{CurrentPlayer: "bob"})
	})
	s.hub.DropConnections()
	s.waitSignal(delivered)

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]string{"reconnected", "turn"}, order)
}

func (s *SessionSuite) TestReconnectRequestsFreshToken() {
	var mu sync.Mutex
	calls := 0
	_ = s.session.Close()
	s.session = s.newSession(func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "second", nil
	})
	reconnected := make(chan struct{}, 1)
	s.session.OnReconnected(func() { reconnected <- struct{}{} })
	s.connect()

	s.hub.DropConnections()
	s.waitSignal(reconnected)
	s.Equal([]string{"first", "second"}, s.hub.Tokens())
}

func (s *SessionSuite) TestDropFailsInFlightInvocations() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })
	s.hub.Handle("RollDice", func(protocol.Arguments) (any, error) {
		<-release
		return nil, nil
	})
	s.connect()

	result := make(chan error, 1)
	go func() {
		_, err := s.session.Invoke(s.ctx, model.MethodRollDice)
		result <- err
	}()
	s.Require().True(s.hub.WaitFor(func() bool { return len(s.hub.CallsTo("RollDice")) == 1 }, waitTimeout))

	s.hub.DropConnections()
	select {
	case err := <-result:
		s.True(model.IsKind(err, model.KindConnection))
		s.ErrorIs(err, model.ErrConnectionLost)
	case <-time.After(waitTimeout):
		s.FailNow("in-flight invocation was not failed")
	}
}

func (s *SessionSuite) TestClosedAfterRetriesExhausted() {
	closed := make(chan error, 1)
	s.session.OnClosed(func(err error) { closed <- err })
	s.connect()

	s.hub.RejectAuth(true)
	s.hub.DropConnections()

	select {
	case err := <-closed:
		s.True(model.IsKind(err, model.KindFatal))
		s.ErrorIs(err, model.ErrHandshakeRejected)
	case <-time.After(waitTimeout):
		s.FailNow("closed was not reported")
	}
	s.Equal(StateDisconnected, s.session.State())
}

func (s *SessionSuite) TestServerCloseWithErrorDoesNotReconnect() {
	closed := make(chan error, 1)
	s.session.OnClosed(func(err error) { closed <- err })
	s.connect()

	s.hub.CloseWithError("account suspended")

	select {
	case err := <-closed:
		s.True(model.IsKind(err, model.KindFatal))
		s.Contains(err.Error(), "account suspended")
	case <-time.After(waitTimeout):
		s.FailNow("closed was not reported")
	}
	s.Equal(1, s.hub.Accepted())
}

// Connect tests

func (s *SessionSuite) TestConnectRejectedHandshakeIsFatal() {
	s.hub.RejectAuth(true)

	err := s.session.Connect(s.ctx)
	s.True(model.IsKind(err, model.KindFatal))
	s.ErrorIs(err, model.ErrHandshakeRejected)
	s.Equal(StateDisconnected, s.session.State())
}

func (s *SessionSuite) TestConnectWithoutTokenFails() {
	_ = s.session.Close()
	s.session = s.newSession(StaticToken(""))
	err := s.session.Connect(s.ctx)
	s.ErrorIs(err, model.ErrNoToken)
}

func (s *SessionSuite) TestConnectSendsBearerToken() {
	s.connect()
	s.Equal([]string{"token-1"}, s.hub.Tokens())
}

// Close tests

func (s *SessionSuite) TestCloseFailsPendingAndSilencesHandlers() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })
	s.hub.Handle("EndTurn", func(protocol.Arguments) (any, error) {
		<-release
		return nil, nil
	})
	called := make(chan struct{}, 1)
	s.session.On(model.EventTurnChanged, func(protocol.Arguments) { called <- struct{}{} })
	s.connect()

	result := make(chan error, 1)
	go func() {
		_, err := s.session.Invoke(s.ctx, model.MethodEndTurn)
		result <- err
	}()
	s.Require().True(s.hub.WaitFor(func() bool { return len(s.hub.CallsTo("EndTurn")) == 1 }, waitTimeout))

	s.Require().NoError(s.session.Close())
	s.Require().NoError(s.session.Close())

	select {
	case err := <-result:
		s.ErrorIs(err, model.ErrSessionClosed)
	case <-time.After(waitTimeout):
		s.FailNow("pending invocation was not failed")
	}

	s.hub.Emit("TurnChanged", model.TurnChangedPayload{CurrentPlayer: "x"})
	time.Sleep(20 * time.Millisecond)
	s.Len(called, 0)

	_, err := s.session.Invoke(s.ctx, model.MethodEndTurn)
	s.ErrorIs(err, model.ErrSessionClosed)
	s.Equal(0, s.session.HandlerCount(model.EventTurnChanged))
}

// RetryPolicy tests

func TestRetryPolicyDefaultSchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	want := []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}

	for i, w := range want {
		d, ok := p.Delay(i, nil)
		if !ok || d != w {
			t.Fatalf("attempt %d: got (%v, %v), want (%v, true)", i, d, ok, w)
		}
	}
	if _, ok := p.Delay(len(want), nil); ok {
		t.Fatal("expected schedule to be exhausted")
	}
}

func TestRetryPolicyJitter(t *testing.T) {
	rnd := mocks.NewMockRandom()
	rnd.QueueJitter(300 * time.Millisecond)
	p := RetryPolicy{Delays: []time.Duration{0, 2 * time.Second}, JitterFraction: 0.5}

	d, ok := p.Delay(0, rnd)
	if !ok || d != 0 {
		t.Fatalf("zero delay should not be jittered, got %v", d)
	}
	d, ok = p.Delay(1, rnd)
	if !ok || d != 2300*time.Millisecond {
		t.Fatalf("got %v, want 2.3s", d)
	}
	if limits := rnd.Limits(); len(limits) != 1 || limits[0] != time.Second {
		t.Fatalf("jitter limits = %v, want [1s]", limits)
	}
}

func TestGroupOffReleasesAll(t *testing.T) {
	r := newRegistry()
	var g Group
	g.Add(
		r.add("A", listener{event: func(protocol.Arguments) {}}),
		r.add("A", listener{event: func(protocol.Arguments) {}}),
		r.add("B", listener{event: func(protocol.Arguments) {}}),
	)
	g.Off()
	if r.count("A") != 0 || r.count("B") != 0 {
		t.Fatal("expected all listeners removed")
	}
}
