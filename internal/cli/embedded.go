package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mcoot/tablesync/internal/factory"
	"github.com/mcoot/tablesync/internal/hostbridge"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/auth"
)

// embeddedHost answers host shell messages. The hub is dialed on the
// first INIT_USER since the host is what hands over the token.
type embeddedHost struct {
	app *factory.App

	mu        sync.Mutex
	connected bool
}

// runEmbedded serves the host bridge on in and out until ctx is done
func runEmbedded(ctx context.Context, app *factory.App, in io.Reader, out io.Writer) error {
	bridge := hostbridge.New(in, out, logger)
	detach := bridge.Attach(app.Navigator)
	defer detach()

	err := bridge.Run(ctx, &embeddedHost{app: app})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *embeddedHost) InitUser(ctx context.Context, msg hostbridge.InitUser) error {
	_, err := h.app.AuthService.Adopt(ctx, auth.Session{
		Token:       msg.Token,
		Username:    msg.Username,
		DisplayName: msg.DisplayName,
		Balance:     msg.Balance,
	})
	if err != nil {
		return err
	}
	if msg.DisplayName != "" {
		h.app.Identity.SetHint(msg.DisplayName)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connected {
		return nil
	}
	if err := h.app.Connect(ctx); err != nil {
		return err
	}
	h.connected = true
	logger.Info("embedded session connected", slog.String("username", string(msg.Username)))
	return nil
}

func (h *embeddedHost) JoinRoom(ctx context.Context, msg hostbridge.JoinRoom) error {
	h.mu.Lock()
	connected := h.connected
	h.mu.Unlock()
	if !connected {
		return model.Precondition("join", model.ErrNoToken)
	}
	return h.app.Navigator.JoinRoom(ctx, msg.RoomID, msg.Password)
}
