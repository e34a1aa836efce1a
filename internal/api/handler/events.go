package handler

import (
	"net/http"

	"github.com/mcoot/tablesync/internal/api/sse"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// EventsHandler streams view changes as server-sent events
type EventsHandler struct {
	nav         *navigator.Navigator
	hub         *sse.Hub
	broadcaster *sse.Broadcaster
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(nav *navigator.Navigator, hub *sse.Hub, b *sse.Broadcaster) *EventsHandler {
	return &EventsHandler{nav: nav, hub: hub, broadcaster: b}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sse.ServeSSE(w, r, h.hub, h.broadcaster.Current(h.nav))
}
