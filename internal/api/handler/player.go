package handler

import (
	"net/http"

	"github.com/mcoot/tablesync/internal/api/response"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// PlayerHandler handles local player endpoints
type PlayerHandler struct {
	nav *navigator.Navigator
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(nav *navigator.Navigator) *PlayerHandler {
	return &PlayerHandler{nav: nav}
}

// Me handles GET /api/v1/me
func (h *PlayerHandler) Me(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.PlayerFromServices(h.nav.Identity(), h.nav.Wallet()))
}
