package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tablesync/internal/api/handler"
	"github.com/mcoot/tablesync/internal/api/middleware"
	"github.com/mcoot/tablesync/internal/api/sse"
	basemw "github.com/mcoot/tablesync/internal/middleware"
	"github.com/mcoot/tablesync/internal/services/navigator"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Navigator   *navigator.Navigator
	Hub         *sse.Hub
	Broadcaster *sse.Broadcaster

	// Token, when set, is required as a bearer token on every route but health
	Token string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	lobbyHandler := handler.NewLobbyHandler(cfg.Navigator)
	gameHandler := handler.NewGameHandler(cfg.Navigator)
	feedbackHandler := handler.NewFeedbackHandler(cfg.Navigator)
	playerHandler := handler.NewPlayerHandler(cfg.Navigator)
	eventsHandler := handler.NewEventsHandler(cfg.Navigator, cfg.Hub, cfg.Broadcaster)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(basemw.Logging(cfg.Logger, basemw.WithQuietPaths("/api/v1/health", "/api/v1/events")))
	api.Use(middleware.Recovery(cfg.Logger))

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Auth(cfg.Token))

	protected.HandleFunc("/me", playerHandler.Me).Methods(http.MethodGet)
	protected.HandleFunc("/screen", lobbyHandler.Screen).Methods(http.MethodGet)

	// Lobby
	protected.HandleFunc("/rooms", lobbyHandler.Rooms).Methods(http.MethodGet)
	protected.HandleFunc("/rooms", lobbyHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/rooms/{id}", lobbyHandler.Room).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{id}/join", lobbyHandler.Join).Methods(http.MethodPost)
	protected.HandleFunc("/quick-match", lobbyHandler.QuickMatch).Methods(http.MethodPost)

	// Board
	protected.HandleFunc("/session", gameHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/session/roll", gameHandler.Roll).Methods(http.MethodPost)
	protected.HandleFunc("/session/click", gameHandler.Click).Methods(http.MethodPost)
	protected.HandleFunc("/session/select-bar", gameHandler.SelectBar).Methods(http.MethodPost)
	protected.HandleFunc("/session/move", gameHandler.Move).Methods(http.MethodPost)
	protected.HandleFunc("/session/bear-off", gameHandler.BearOff).Methods(http.MethodPost)
	protected.HandleFunc("/session/end-turn", gameHandler.EndTurn).Methods(http.MethodPost)
	protected.HandleFunc("/session/leave", gameHandler.Leave).Methods(http.MethodPost)
	protected.HandleFunc("/session/refresh", gameHandler.Refresh).Methods(http.MethodPost)

	// Betting table
	protected.HandleFunc("/table", gameHandler.Table).Methods(http.MethodGet)
	protected.HandleFunc("/table/fold", gameHandler.Fold).Methods(http.MethodPost)
	protected.HandleFunc("/table/call", gameHandler.Call).Methods(http.MethodPost)
	protected.HandleFunc("/table/raise", gameHandler.Raise).Methods(http.MethodPost)
	protected.HandleFunc("/table/all-in", gameHandler.AllIn).Methods(http.MethodPost)
	protected.HandleFunc("/table/showdown", gameHandler.Showdown).Methods(http.MethodPost)

	// Chat and feedback
	protected.HandleFunc("/chat", feedbackHandler.Chat).Methods(http.MethodGet)
	protected.HandleFunc("/chat", feedbackHandler.Send).Methods(http.MethodPost)
	protected.HandleFunc("/chat/open", feedbackHandler.Open).Methods(http.MethodPost)
	protected.HandleFunc("/chat/close", feedbackHandler.Close).Methods(http.MethodPost)
	protected.HandleFunc("/emoji", feedbackHandler.Emoji).Methods(http.MethodPost)
	protected.HandleFunc("/quick-message", feedbackHandler.QuickMessage).Methods(http.MethodPost)
	protected.HandleFunc("/overlay", feedbackHandler.Overlay).Methods(http.MethodGet)
	protected.HandleFunc("/notification", feedbackHandler.Notification).Methods(http.MethodGet)
	protected.HandleFunc("/notification", feedbackHandler.DismissNotification).Methods(http.MethodDelete)

	protected.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
