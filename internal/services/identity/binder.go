package identity

import (
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/services/wallet"
	"github.com/mcoot/tablesync/internal/transport"
)

// Binder holds the server-confirmed identity of the connection.
// Until UserData arrives the identity is unconfirmed and every turn
// decision built on it fails closed.
type Binder struct {
	mu        sync.RWMutex
	hint      model.DisplayName
	identity  model.PlayerIdentity
	confirmed bool

	wallet      *wallet.Wallet
	onConfirmed listeners.List[model.PlayerIdentity]
	subs        transport.Group
	logger      *slog.Logger
}

// NewBinder creates a Binder. hint is the locally remembered display
// name, shown until the server confirms the real one.
func NewBinder(hint model.DisplayName, w *wallet.Wallet, logger *slog.Logger) *Binder {
	return &Binder{
		hint:   hint,
		wallet: w,
		logger: logger.With(slog.String("component", "identity")),
	}
}

// Bind subscribes to UserData on hub
func (b *Binder) Bind(hub transport.Hub) {
	b.subs.Add(hub.On(model.EventUserData, func(args transport.Arguments) {
		payload, err := transport.Decode[model.UserDataPayload](args)
		if err != nil {
			b.logger.Warn("ignoring malformed user data", slog.Any("error", err))
			return
		}
		b.confirm(payload)
	}))
}

// Unbind releases the hub subscription
func (b *Binder) Unbind() {
	b.subs.Off()
}

func (b *Binder) confirm(payload model.UserDataPayload) {
	if payload.Username == "" {
		b.logger.Warn("ignoring user data without a username")
		return
	}

	b.mu.Lock()
	if b.confirmed {
		bound := b.identity.Username
		same := bound == payload.Username
		if same {
			b.identity.Balance = payload.Balance
		}
		b.mu.Unlock()

		if !same {
			b.logger.Warn("ignoring user data for a different username",
				slog.String("bound", string(bound)),
				slog.String("received", string(payload.Username)))
			return
		}
		b.updateWallet(payload.Balance)
		return
	}

	displayName := payload.FullName
	if displayName == "" {
		displayName = b.hint
	}
	b.identity = model.PlayerIdentity{
		Username:    payload.Username,
		DisplayName: displayName,
		Balance:     payload.Balance,
	}
	b.confirmed = true
	identity := b.identity
	b.mu.Unlock()

	b.logger.Info("identity confirmed", slog.String("username", string(identity.Username)))
	b.updateWallet(payload.Balance)
	b.onConfirmed.Notify(identity)
}

func (b *Binder) updateWallet(balance model.Amount) {
	if b.wallet != nil {
		b.wallet.Set(balance)
	}
}

// Identity returns the confirmed identity
func (b *Binder) Identity() (model.PlayerIdentity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity, b.confirmed
}

// Username returns the confirmed connection username
func (b *Binder) Username() (model.Username, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.identity.Username, b.confirmed
}

// Confirmed reports whether UserData has been received
func (b *Binder) Confirmed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.confirmed
}

// DisplayName returns the confirmed display name, or the local hint
func (b *Binder) DisplayName() model.DisplayName {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.confirmed {
		return b.identity.DisplayName
	}
	return b.hint
}

// SetHint replaces the unconfirmed display name
func (b *Binder) SetHint(hint model.DisplayName) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hint = hint
}

// OnConfirmed registers fn to run once the identity is confirmed. If it
// already is, fn runs immediately.
func (b *Binder) OnConfirmed(fn func(model.PlayerIdentity)) (cancel func()) {
	cancel = b.onConfirmed.Add(fn)
	if identity, ok := b.Identity(); ok {
		fn(identity)
	}
	return cancel
}
