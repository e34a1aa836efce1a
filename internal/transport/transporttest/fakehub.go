// Package transporttest provides an in-memory Hub for service tests.
// Events are delivered synchronously on the caller's goroutine.
package transporttest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/protocol"
	"github.com/mcoot/tablesync/internal/transport"
)

// ReplyFunc scripts the outcome of an invocation. A plain error becomes a
// server rejection; a categorized model error is returned as is.
type ReplyFunc func(args protocol.Arguments) (any, error)

// Call records an invocation
type Call struct {
	Method model.Method
	Args   protocol.Arguments
}

// Decode unmarshals argument i into v
func (c Call) Decode(i int, v any) error {
	return c.Args.Decode(i, v)
}

type entry struct {
	id        uint64
	event     transport.Handler
	lifecycle func(error)
}

// FakeHub is a scriptable, connected hub
type FakeHub struct {
	mu       sync.Mutex
	state    transport.State
	nextID   uint64
	handlers map[string][]entry
	replies  map[model.Method]ReplyFunc
	calls    []Call
}

var _ transport.Hub = (*FakeHub)(nil)

const (
	keyReconnecting = "@reconnecting"
	keyReconnected  = "@reconnected"
	keyClosed       = "@closed"
)

// New returns a connected FakeHub
func New() *FakeHub {
	return &FakeHub{
		state:    transport.StateConnected,
		handlers: make(map[string][]entry),
		replies:  make(map[model.Method]ReplyFunc),
	}
}

func (h *FakeHub) add(key string, e entry) *transport.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	e.id = h.nextID
	h.handlers[key] = append(h.handlers[key], e)
	id := e.id
	return transport.NewSubscription(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.handlers[key]
		for i, other := range list {
			if other.id == id {
				h.handlers[key] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	})
}

func (h *FakeHub) snapshot(key string) []entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]entry(nil), h.handlers[key]...)
}

// On registers an event handler
func (h *FakeHub) On(event model.EventName, handler transport.Handler) *transport.Subscription {
	return h.add(string(event), entry{event: handler})
}

// OnReconnecting registers a lifecycle handler
func (h *FakeHub) OnReconnecting(fn func(err error)) *transport.Subscription {
	return h.add(keyReconnecting, entry{lifecycle: fn})
}

// OnReconnected registers a lifecycle handler
func (h *FakeHub) OnReconnected(fn func()) *transport.Subscription {
	return h.add(keyReconnected, entry{lifecycle: func(error) { fn() }})
}

// OnClosed registers a lifecycle handler
func (h *FakeHub) OnClosed(fn func(err error)) *transport.Subscription {
	return h.add(keyClosed, entry{lifecycle: fn})
}

// State returns the simulated connection state
func (h *FakeHub) State() transport.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Reply scripts a fixed result for method
func (h *FakeHub) Reply(method model.Method, result any) {
	h.Handle(method, func(protocol.Arguments) (any, error) { return result, nil })
}

// Reject scripts a server rejection for method
func (h *FakeHub) Reject(method model.Method, message string) {
	h.Handle(method, func(protocol.Arguments) (any, error) { return nil, errors.New(message) })
}

// Handle scripts method with fn
func (h *FakeHub) Handle(method model.Method, fn ReplyFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies[method] = fn
}

// Invoke records the call and returns the scripted outcome. Unscripted
// methods succeed with a null result.
func (h *FakeHub) Invoke(ctx context.Context, method model.Method, args ...any) (json.RawMessage, error) {
	encoded, err := protocol.NewArguments(args...)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	state := h.state
	if state != transport.StateConnected {
		h.mu.Unlock()
		if state == transport.StateReconnecting {
			return nil, model.Connection(string(method), model.ErrReconnecting)
		}
		return nil, model.Connection(string(method), model.ErrNotConnected)
	}
	h.calls = append(h.calls, Call{Method: method, Args: encoded})
	fn := h.replies[method]
	h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, nil
	}

	result, err := fn(encoded)
	if err != nil {
		if _, ok := model.KindOf(err); ok {
			return nil, err
		}
		return nil, model.Rejection(string(method), err.Error())
	}
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Emit delivers an event with the given arguments to every handler
func (h *FakeHub) Emit(event model.EventName, args ...any) {
	encoded, err := protocol.NewArguments(args...)
	if err != nil {
		panic(err)
	}
	for _, e := range h.snapshot(string(event)) {
		e.event(encoded)
	}
}

// Drop simulates a lost connection
func (h *FakeHub) Drop() {
	h.setState(transport.StateReconnecting)
	for _, e := range h.snapshot(keyReconnecting) {
		e.lifecycle(model.Connection("hub", model.ErrConnectionLost))
	}
}

// Restore simulates a successful reconnect
func (h *FakeHub) Restore() {
	h.setState(transport.StateConnected)
	for _, e := range h.snapshot(keyReconnected) {
		e.lifecycle(nil)
	}
}

// GiveUp simulates reconnecting being abandoned
func (h *FakeHub) GiveUp(err error) {
	h.setState(transport.StateDisconnected)
	for _, e := range h.snapshot(keyClosed) {
		e.lifecycle(err)
	}
}

// Calls returns recorded invocations
func (h *FakeHub) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CallsTo returns recorded invocations of method
func (h *FakeHub) CallsTo(method model.Method) []Call {
	var out []Call
	for _, c := range h.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded invocations
func (h *FakeHub) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// HandlerCount returns the number of handlers registered for event
func (h *FakeHub) HandlerCount(event model.EventName) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers[string(event)])
}

// TotalHandlers returns the number of registered event and lifecycle handlers
func (h *FakeHub) TotalHandlers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, list := range h.handlers {
		n += len(list)
	}
	return n
}

func (h *FakeHub) setState(state transport.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}
