package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tablesync/internal/api/apierr"
	"github.com/mcoot/tablesync/internal/api/request"
	"github.com/mcoot/tablesync/internal/api/response"
	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// LobbyHandler handles screen and room directory endpoints
type LobbyHandler struct {
	nav *navigator.Navigator
}

// NewLobbyHandler creates a new lobby handler
func NewLobbyHandler(nav *navigator.Navigator) *LobbyHandler {
	return &LobbyHandler{nav: nav}
}

// Screen handles GET /api/v1/screen
func (h *LobbyHandler) Screen(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.ScreenFromNavigator(h.nav))
}

// Rooms handles GET /api/v1/rooms
func (h *LobbyHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.nav.Lobby().Rooms()
	if rooms == nil {
		rooms = []model.RoomSummary{}
	}
	response.JSON(w, http.StatusOK, rooms)
}

// Room handles GET /api/v1/rooms/{id}. Only rooms in the last fetched
// list are known.
func (h *LobbyHandler) Room(w http.ResponseWriter, r *http.Request) {
	room, ok := h.nav.Lobby().Find(model.RoomID(mux.Vars(r)["id"]))
	if !ok {
		WriteError(w, apierr.NewRoomNotFoundError())
		return
	}
	response.JSON(w, http.StatusOK, room)
}

// Create handles POST /api/v1/rooms
func (h *LobbyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRoomRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	room, err := h.nav.Lobby().Create(r.Context(), model.CreateRoomRequest{
		Name:       req.Name,
		EntryFee:   req.EntryFee,
		MaxPlayers: req.MaxPlayers,
		IsPrivate:  req.IsPrivate,
		Password:   req.Password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, room)
}

// Join handles POST /api/v1/rooms/{id}/join
func (h *LobbyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinRoomRequest
	if err := decodeBody(r, &req, true); err != nil {
		WriteError(w, err)
		return
	}

	roomID := model.RoomID(mux.Vars(r)["id"])
	if err := h.nav.JoinRoom(r.Context(), roomID, req.Password); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ScreenFromNavigator(h.nav))
}

// QuickMatch handles POST /api/v1/quick-match
func (h *LobbyHandler) QuickMatch(w http.ResponseWriter, r *http.Request) {
	var req request.QuickMatchRequest
	if err := decodeBody(r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.nav.Lobby().QuickMatch(r.Context(), req.Amount); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, response.Status{Status: "searching"})
}
