package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/tablesync/internal/api/request"
	"github.com/mcoot/tablesync/internal/api/response"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/game"
	"github.com/mcoot/tablesync/internal/services/navigator"
	"github.com/mcoot/tablesync/internal/services/table"
)

// GameHandler handles board and betting table endpoints
type GameHandler struct {
	nav *navigator.Navigator
}

// NewGameHandler creates a new game handler
func NewGameHandler(nav *navigator.Navigator) *GameHandler {
	return &GameHandler{nav: nav}
}

// session returns the active game or a not-in-room error
func (h *GameHandler) session() (*game.Session, error) {
	sess := h.nav.Game()
	if sess == nil {
		return nil, model.Precondition("session", model.ErrNotInRoom)
	}
	return sess, nil
}

// intent runs fn against the active session and replies with its view
func (h *GameHandler) intent(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sess *game.Session) error) {
	sess, err := h.session()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := fn(r.Context(), sess); err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sess.View())
}

// pointIntent decodes a point body and passes it to fn
func (h *GameHandler) pointIntent(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sess *game.Session, p model.Point) error) {
	var req request.PointRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	if req.Point == nil {
		WriteError(w, NewInvalidRequestError("point is required"))
		return
	}
	h.intent(w, r, func(ctx context.Context, sess *game.Session) error {
		return fn(ctx, sess, *req.Point)
	})
}

// Get handles GET /api/v1/session
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(context.Context, *game.Session) error { return nil })
}

// Roll handles POST /api/v1/session/roll
func (h *GameHandler) Roll(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(ctx context.Context, sess *game.Session) error {
		return sess.Roll(ctx)
	})
}

// Click handles POST /api/v1/session/click
func (h *GameHandler) Click(w http.ResponseWriter, r *http.Request) {
	h.pointIntent(w, r, func(ctx context.Context, sess *game.Session, p model.Point) error {
		return sess.ClickPoint(ctx, p)
	})
}

// SelectBar handles POST /api/v1/session/select-bar
func (h *GameHandler) SelectBar(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(_ context.Context, sess *game.Session) error {
		return sess.SelectBar()
	})
}

// Move handles POST /api/v1/session/move
func (h *GameHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.pointIntent(w, r, func(ctx context.Context, sess *game.Session, p model.Point) error {
		return sess.AttemptMove(ctx, p)
	})
}

// BearOff handles POST /api/v1/session/bear-off
func (h *GameHandler) BearOff(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(ctx context.Context, sess *game.Session) error {
		return sess.BearOff(ctx)
	})
}

// EndTurn handles POST /api/v1/session/end-turn
func (h *GameHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(ctx context.Context, sess *game.Session) error {
		return sess.EndTurn(ctx)
	})
}

// Refresh handles POST /api/v1/session/refresh
func (h *GameHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.intent(w, r, func(ctx context.Context, sess *game.Session) error {
		return sess.Refresh(ctx)
	})
}

// Leave handles POST /api/v1/session/leave. The scope is torn down even
// when the server call fails, so the reply is always the new screen.
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session(); err != nil {
		WriteError(w, err)
		return
	}
	_ = h.nav.Leave(r.Context())
	response.JSON(w, http.StatusOK, response.ScreenFromNavigator(h.nav))
}

// tracker returns the active table tracker or a not-in-room error
func (h *GameHandler) tracker() (*table.Tracker, error) {
	t := h.nav.Table()
	if t == nil {
		return nil, model.Precondition("table", model.ErrNotInRoom)
	}
	return t, nil
}

func (h *GameHandler) tableIntent(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, t *table.Tracker) error) {
	t, err := h.tracker()
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := fn(r.Context(), t); err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TableFromTracker(t))
}

// Table handles GET /api/v1/table
func (h *GameHandler) Table(w http.ResponseWriter, r *http.Request) {
	h.tableIntent(w, r, func(context.Context, *table.Tracker) error { return nil })
}

// Fold handles POST /api/v1/table/fold
func (h *GameHandler) Fold(w http.ResponseWriter, r *http.Request) {
	h.tableIntent(w, r, func(ctx context.Context, t *table.Tracker) error { return t.Fold(ctx) })
}

// Call handles POST /api/v1/table/call
func (h *GameHandler) Call(w http.ResponseWriter, r *http.Request) {
	h.tableIntent(w, r, func(ctx context.Context, t *table.Tracker) error { return t.Call(ctx) })
}

// AllIn handles POST /api/v1/table/all-in
func (h *GameHandler) AllIn(w http.ResponseWriter, r *http.Request) {
	h.tableIntent(w, r, func(ctx context.Context, t *table.Tracker) error { return t.AllIn(ctx) })
}

// Showdown handles POST /api/v1/table/showdown
func (h *GameHandler) Showdown(w http.ResponseWriter, r *http.Request) {
	h.tableIntent(w, r, func(ctx context.Context, t *table.Tracker) error { return t.ShowdownCall(ctx) })
}

// Raise handles POST /api/v1/table/raise
func (h *GameHandler) Raise(w http.ResponseWriter, r *http.Request) {
	var req request.RaiseRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	h.tableIntent(w, r, func(ctx context.Context, t *table.Tracker) error { return t.Raise(ctx, req.Amount) })
}
