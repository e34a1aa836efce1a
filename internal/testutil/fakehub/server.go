// Package fakehub is an in-process game hub for tests. It speaks the
// hub frame protocol over a real WebSocket.
package fakehub

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/tablesync/internal/protocol"
)

// MethodFunc handles an invocation. A returned error becomes the
// completion's error message.
type MethodFunc func(args protocol.Arguments) (any, error)

// Call records an invocation received by the hub
type Call struct {
	Method string
	Args   protocol.Arguments
}

// Server is a scriptable hub
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu         sync.Mutex
	conns      map[*peer]bool
	methods    map[string]MethodFunc
	calls      []Call
	tokens     []string
	accepted   int
	rejectAuth bool
	onConnect  func(p *Peer)
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Peer is a connected client as seen from the hub
type Peer struct {
	p     *peer
	Token string
}

// New starts a hub that is shut down when the test ends
func New(t testing.TB) *Server {
	s := &Server{
		conns:   make(map[*peer]bool),
		methods: make(map[string]MethodFunc),
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serveWS))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address of the hub
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/gamehub"
}

// Handle scripts the reply for a hub method
func (s *Server) Handle(method string, fn MethodFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = fn
}

// Reply scripts a fixed successful result for method
func (s *Server) Reply(method string, result any) {
	s.Handle(method, func(protocol.Arguments) (any, error) { return result, nil })
}

// Reject scripts a fixed rejection for method
func (s *Server) Reject(method, message string) {
	s.Handle(method, func(protocol.Arguments) (any, error) { return nil, errors.New(message) })
}

// OnConnect runs fn for every accepted connection before its reader starts
func (s *Server) OnConnect(fn func(p *Peer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = fn
}

// RejectAuth makes subsequent handshakes fail with 401
func (s *Server) RejectAuth(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = reject
}

// Emit pushes an event to every connected client
func (s *Server) Emit(event string, args ...any) {
	frame, err := protocol.NewEvent(event, args...)
	if err != nil {
		panic(err)
	}
	for _, p := range s.peers() {
		_ = p.send(frame)
	}
}

// CloseWithError sends a close frame carrying reason to every client
func (s *Server) CloseWithError(reason string) {
	for _, p := range s.peers() {
		_ = p.send(protocol.Frame{Type: protocol.TypeClose, Error: reason})
	}
}

// DropConnections abruptly closes every client socket
func (s *Server) DropConnections() {
	for _, p := range s.peers() {
		_ = p.conn.Close()
	}
}

// Calls returns the invocations received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the invocations of method received so far
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Tokens returns the bearer tokens presented on each accepted handshake
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Accepted returns the number of accepted connections
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Connected returns the number of currently open connections
func (s *Server) Connected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitFor polls cond for up to timeout
func (s *Server) WaitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// Close stops the hub
func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

func (s *Server) peers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		out = append(out, p)
	}
	return out
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}

	s.mu.Lock()
	reject := s.rejectAuth
	s.mu.Unlock()
	if reject || token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn}

	s.mu.Lock()
	s.conns[p] = true
	s.tokens = append(s.tokens, token)
	s.accepted++
	onConnect := s.onConnect
	s.mu.Unlock()

	if onConnect != nil {
		onConnect(&Peer{p: p, Token: token})
	}

	defer func() {
		s.mu.Lock()
		delete(s.conns, p)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil || frame.Type != protocol.TypeInvocation {
			continue
		}
		s.handleInvocation(p, frame)
	}
}

func (s *Server) handleInvocation(p *peer, frame protocol.Frame) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: frame.Target, Args: frame.Arguments})
	fn, ok := s.methods[frame.Target]
	s.mu.Unlock()

	var reply protocol.Frame
	var err error
	if !ok {
		reply, err = protocol.NewCompletion(frame.ID, nil, "unknown method "+frame.Target)
	} else if result, callErr := fn(frame.Arguments); callErr != nil {
		reply, err = protocol.NewCompletion(frame.ID, nil, callErr.Error())
	} else {
		reply, err = protocol.NewCompletion(frame.ID, result, "")
	}
	if err != nil {
		return
	}
	_ = p.send(reply)
}

// Emit pushes an event to this client only
func (c *Peer) Emit(event string, args ...any) {
	frame, err := protocol.NewEvent(event, args...)
	if err != nil {
		panic(err)
	}
	_ = c.p.send(frame)
}

func (p *peer) send(frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}
