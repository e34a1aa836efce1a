package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/tablesync/internal/api/request"
	"github.com/mcoot/tablesync/internal/api/response"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/game"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// FeedbackHandler handles chat, overlay and notification endpoints
type FeedbackHandler struct {
	nav *navigator.Navigator
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(nav *navigator.Navigator) *FeedbackHandler {
	return &FeedbackHandler{nav: nav}
}

func (h *FeedbackHandler) session(w http.ResponseWriter) *game.Session {
	sess := h.nav.Game()
	if sess == nil {
		WriteError(w, model.Precondition("chat", model.ErrNotInRoom))
	}
	return sess
}

// Chat handles GET /api/v1/chat
func (h *FeedbackHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}
	response.JSON(w, http.StatusOK, sess.Chat().View())
}

// Send handles POST /api/v1/chat
func (h *FeedbackHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, (*game.Session).SendChat)
}

// Emoji handles POST /api/v1/emoji
func (h *FeedbackHandler) Emoji(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, (*game.Session).SendQuickEmoji)
}

// QuickMessage handles POST /api/v1/quick-message
func (h *FeedbackHandler) QuickMessage(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, (*game.Session).SendQuickMessage)
}

func (h *FeedbackHandler) send(w http.ResponseWriter, r *http.Request, fn func(*game.Session, context.Context, string) error) {
	var req request.TextRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}
	sess := h.session(w)
	if sess == nil {
		return
	}
	if err := fn(sess, r.Context(), req.Text); err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, response.OK)
}

// Open handles POST /api/v1/chat/open
func (h *FeedbackHandler) Open(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}
	sess.Chat().Open()
	response.JSON(w, http.StatusOK, sess.Chat().View())
}

// Close handles POST /api/v1/chat/close
func (h *FeedbackHandler) Close(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}
	sess.Chat().Close()
	response.JSON(w, http.StatusOK, sess.Chat().View())
}

// Overlay handles GET /api/v1/overlay
func (h *FeedbackHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}
	items := sess.Overlay().Items()
	if items == nil {
		items = []model.OverlayItem{}
	}
	response.JSON(w, http.StatusOK, items)
}

// Notification handles GET /api/v1/notification. No toast is reported
// as null.
func (h *FeedbackHandler) Notification(w http.ResponseWriter, r *http.Request) {
	n, ok := h.nav.Notifier().Current()
	if !ok {
		response.JSON(w, http.StatusOK, nil)
		return
	}
	response.JSON(w, http.StatusOK, n)
}

// DismissNotification handles DELETE /api/v1/notification
func (h *FeedbackHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.nav.Notifier().Dismiss()
	w.WriteHeader(http.StatusNoContent)
}
