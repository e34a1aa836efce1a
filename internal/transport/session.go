package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tablesync/internal/dependencies/clock"
	"github.com/mcoot/tablesync/internal/dependencies/random"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/protocol"
)

// TokenProvider returns the bearer token to present on each dial
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken returns a provider that always yields token
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) {
		if token == "" {
			return "", model.ErrNoToken
		}
		return token, nil
	}
}

type invokeResult struct {
	result json.RawMessage
	err    error
}

type pendingCall struct {
	method model.Method
	ch     chan invokeResult
}

// Session is a long-lived, auto-reconnecting hub connection
type Session struct {
	cfg    Config
	tokens TokenProvider
	dialer *websocket.Dialer
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	registry *registry
	queue    *dispatchQueue

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	pending map[string]pendingCall
	closed  bool
	closeCh chan struct{}

	writeMu sync.Mutex
}

var _ Hub = (*Session)(nil)

// NewSession creates a disconnected session. Call Connect to dial.
func NewSession(cfg Config, tokens TokenProvider, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Session {
	s := &Session{
		cfg:    cfg,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		clock:    clk,
		random:   rnd,
		logger:   logger.With(slog.String("component", "transport")),
		registry: newRegistry(),
		state:    StateDisconnected,
		pending:  make(map[string]pendingCall),
		closeCh:  make(chan struct{}),
	}
	s.queue = newDispatchQueue(s.closeCh)
	go s.queue.run()
	return s
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the hub. It is a no-op if already connected or connecting.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Connection("connect", model.ErrSessionClosed)
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		s.logger.Error("hub connect failed", slog.String("url", s.cfg.URL), slog.Any("error", err))
		return err
	}

	if !s.attach(conn, false) {
		return model.Connection("connect", model.ErrSessionClosed)
	}
	s.logger.Info("hub connected", slog.String("url", s.cfg.URL))
	return nil
}

// On registers a handler for a server event
func (s *Session) On(event model.EventName, handler Handler) *Subscription {
	return s.registry.add(string(event), listener{event: handler})
}

// OnReconnecting registers fn to run when the connection drops
func (s *Session) OnReconnecting(fn func(err error)) *Subscription {
	return s.registry.add(lifecycleReconnecting, listener{lifecycle: fn})
}

// OnReconnected registers fn to run after a successful reconnect
func (s *Session) OnReconnected(fn func()) *Subscription {
	return s.registry.add(lifecycleReconnected, listener{lifecycle: func(error) { fn() }})
}

// OnClosed registers fn to run when reconnecting gives up or the server ends the session
func (s *Session) OnClosed(fn func(err error)) *Subscription {
	return s.registry.add(lifecycleClosed, listener{lifecycle: fn})
}

// HandlerCount returns the number of handlers registered for event
func (s *Session) HandlerCount(event model.EventName) int {
	return s.registry.count(string(event))
}

// Invoke calls a hub method and waits for its completion.
// Cancelling ctx stops the wait; the server may still process the call.
func (s *Session) Invoke(ctx context.Context, method model.Method, args ...any) (json.RawMessage, error) {
	op := string(method)
	frame, err := protocol.NewInvocation(op, args...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.Connection(op, model.ErrSessionClosed)
	}
	if s.state != StateConnected || s.conn == nil {
		state := s.state
		s.mu.Unlock()
		if state == StateReconnecting {
			return nil, model.Connection(op, model.ErrReconnecting)
		}
		return nil, model.Connection(op, model.ErrNotConnected)
	}
	conn := s.conn
	ch := make(chan invokeResult, 1)
	s.pending[frame.ID] = pendingCall{method: method, ch: ch}
	s.mu.Unlock()

	if err := s.write(conn, frame); err != nil {
		s.removePending(frame.ID)
		return nil, model.Connection(op, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		s.removePending(frame.ID)
		return nil, ctx.Err()
	}
}

// Close shuts the session down. Pending invocations fail, reconnecting
// stops, and no handler runs afterwards. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	pending := s.takePendingLocked()
	s.mu.Unlock()

	s.registry.clear()
	failPending(pending, model.ErrSessionClosed)

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
	}
	s.logger.Info("hub session closed")
	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := s.tokens(ctx)
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			return nil, err
		}
		return nil, model.Fatal("connect", err)
	}

	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, model.Fatal("connect", fmt.Errorf("invalid hub url: %w", err))
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, model.Fatal("connect", fmt.Errorf("%w: %s", model.ErrHandshakeRejected, resp.Status))
		}
		return nil, model.Connection("connect", err)
	}
	return conn, nil
}

// attach makes conn the live socket and starts its pumps. It reports
// false if the session was closed in the meantime. When reconnected is
// set the Reconnected notification is queued before the read pump
// starts, so it precedes every event read from conn.
func (s *Session) attach(conn *websocket.Conn, reconnected bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	if reconnected {
		s.notify(lifecycleReconnected, nil)
	}

	done := make(chan struct{})
	go s.readLoop(conn, done)
	go s.pingLoop(conn, done)
	return true
}

func (s *Session) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		frame, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("ignoring malformed hub frame", slog.Any("error", err))
			continue
		}

		switch frame.Type {
		case protocol.TypeCompletion:
			s.resolve(frame)
		case protocol.TypeEvent:
			s.dispatchEvent(frame.Target, frame.Arguments)
		case protocol.TypeClose:
			s.handleServerClose(conn, frame.Error)
			return
		case protocol.TypePing:
		default:
			s.logger.Warn("unsupported hub frame", slog.String("type", string(frame.Type)))
		}
	}
}

func (s *Session) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := s.clock.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Session) write(conn *websocket.Conn, frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) resolve(frame protocol.Frame) {
	s.mu.Lock()
	call, ok := s.pending[frame.ID]
	if ok {
		delete(s.pending, frame.ID)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("completion for unknown invocation", slog.String("id", frame.ID))
		return
	}
	if frame.Error != "" {
		call.ch <- invokeResult{err: model.Rejection(string(call.method), frame.Error)}
		return
	}
	call.ch <- invokeResult{result: frame.Result}
}

func (s *Session) dispatchEvent(target string, args protocol.Arguments) {
	s.queue.push(func() {
		for _, l := range s.registry.snapshot(target) {
			if s.isClosed() {
				return
			}
			l.event(args)
		}
	})
}

func (s *Session) notify(key string, err error) {
	s.queue.push(func() {
		for _, l := range s.registry.snapshot(key) {
			if s.isClosed() {
				return
			}
			l.lifecycle(err)
		}
	})
}

func (s *Session) handleDrop(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateReconnecting
	pending := s.takePendingLocked()
	s.mu.Unlock()

	_ = conn.Close()
	failPending(pending, model.ErrConnectionLost)

	s.logger.Warn("hub connection lost, reconnecting", slog.Any("error", cause))
	s.notify(lifecycleReconnecting, model.Connection("hub", cause))
	go s.reconnect()
}

func (s *Session) handleServerClose(conn *websocket.Conn, reason string) {
	if reason == "" {
		s.handleDrop(conn, model.ErrConnectionLost)
		return
	}

	s.mu.Lock()
	if s.closed || s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	pending := s.takePendingLocked()
	s.mu.Unlock()

	_ = conn.Close()
	failPending(pending, model.ErrConnectionLost)

	err := model.Fatal("hub", errors.New(reason))
	s.logger.Error("hub closed the session", slog.String("reason", reason))
	s.notify(lifecycleClosed, err)
}

func (s *Session) reconnect() {
	var lastErr error = model.ErrConnectionLost
	for attempt := 0; ; attempt++ {
		delay, ok := s.cfg.Retry.Delay(attempt, s.random)
		if !ok {
			break
		}
		if !s.wait(delay) {
			return
		}

		ctx, cancel := s.closeContext()
		conn, err := s.dial(ctx)
		cancel()
		if err == nil {
			if s.attach(conn, true) {
				s.logger.Info("hub reconnected", slog.Int("attempt", attempt+1))
			}
			return
		}

		lastErr = err
		s.logger.Warn("hub reconnect attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		if model.IsKind(err, model.KindFatal) {
			break
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Error("hub reconnect gave up", slog.Any("error", lastErr))
	s.notify(lifecycleClosed, lastErr)
}

// wait blocks for d on the session clock. It returns false if the
// session closes first.
func (s *Session) wait(d time.Duration) bool {
	if d <= 0 {
		return !s.isClosed()
	}
	fired := make(chan struct{})
	timer := s.clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return true
	case <-s.closeCh:
		timer.Stop()
		return false
	}
}

// closeContext returns a context cancelled when the session closes
func (s *Session) closeContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) removePending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *Session) takePendingLocked() map[string]pendingCall {
	pending := s.pending
	s.pending = make(map[string]pendingCall)
	return pending
}

func failPending(pending map[string]pendingCall, cause error) {
	for _, call := range pending {
		call.ch <- invokeResult{err: model.Connection(string(call.method), cause)}
	}
}
