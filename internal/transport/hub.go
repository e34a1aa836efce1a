package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/protocol"
)

// Arguments are the positional arguments of a hub event
type Arguments = protocol.Arguments

// Handler receives the arguments of a hub event
type Handler func(args Arguments)

// Hub is the connection surface the game services depend on
type Hub interface {
	On(event model.EventName, handler Handler) *Subscription
	OnReconnecting(fn func(err error)) *Subscription
	OnReconnected(fn func()) *Subscription
	OnClosed(fn func(err error)) *Subscription
	Invoke(ctx context.Context, method model.Method, args ...any) (json.RawMessage, error)
	State() State
}

// State is the connection state of a hub session
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// InvokeInto invokes method and decodes its result into result
func InvokeInto(ctx context.Context, h Hub, result any, method model.Method, args ...any) error {
	raw, err := h.Invoke(ctx, method, args...)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Decode unmarshals the first event argument into a T
func Decode[T any](args Arguments) (T, error) {
	var v T
	err := args.Decode(0, &v)
	return v, err
}

// Subscription is a registered handler that can be removed with Off
type Subscription struct {
	once sync.Once
	off  func()
}

// NewSubscription returns a subscription that runs off once when removed
func NewSubscription(off func()) *Subscription {
	return &Subscription{off: off}
}

// Off removes the handler. It is safe to call more than once.
func (s *Subscription) Off() {
	if s == nil || s.off == nil {
		return
	}
	s.once.Do(s.off)
}

// Group collects subscriptions that share a lifetime
type Group struct {
	subs []*Subscription
}

// Add records subs in the group
func (g *Group) Add(subs ...*Subscription) {
	g.subs = append(g.subs, subs...)
}

// Off removes every subscription in the group
func (g *Group) Off() {
	for _, s := range g.subs {
		s.Off()
	}
	g.subs = nil
}
