package wallet

import (
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/listeners"
	"github.com/mcoot/tablesync/internal/transport"
)

// Wallet tracks the player's balance as last reported by the server
type Wallet struct {
	mu      sync.RWMutex
	balance model.Amount
	known   bool

	changes listeners.List[model.Amount]
	logger  *slog.Logger
}

// New creates a Wallet with an unknown balance
func New(logger *slog.Logger) *Wallet {
	return &Wallet{logger: logger.With(slog.String("component", "wallet"))}
}

// Bind keeps the balance in sync with BalanceUpdated events
func (w *Wallet) Bind(hub transport.Hub) *transport.Subscription {
	return hub.On(model.EventBalanceUpdated, func(args transport.Arguments) {
		payload, err := transport.Decode[model.BalanceUpdatedPayload](args)
		if err != nil {
			w.logger.Warn("ignoring malformed balance update", slog.Any("error", err))
			return
		}
		w.Set(payload.Balance)
	})
}

// Set records a server-reported balance
func (w *Wallet) Set(balance model.Amount) {
	w.mu.Lock()
	changed := !w.known || w.balance != balance
	w.balance = balance
	w.known = true
	w.mu.Unlock()

	if changed {
		w.logger.Debug("balance updated", slog.Float64("balance", float64(balance)))
		w.changes.Notify(balance)
	}
}

// Balance returns the balance and whether it has been reported yet
func (w *Wallet) Balance() (model.Amount, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance, w.known
}

// CanAfford reports whether the known balance covers amount. An unknown
// balance never does.
func (w *Wallet) CanAfford(amount model.Amount) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.known && w.balance >= amount
}

// OnChange registers fn for balance changes
func (w *Wallet) OnChange(fn func(model.Amount)) (cancel func()) {
	return w.changes.Add(fn)
}
