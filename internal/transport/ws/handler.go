package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"clubvote/internal/app"
	"clubvote/internal/auth"
	"clubvote/internal/domain"
)

// Handler upgrades GET /api/elections/{id}/live to a live election feed
type Handler struct {
	registry *app.Registry
	mode     domain.VotingMode
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler. With no allowed origins every origin is accepted.
func NewHandler(registry *app.Registry, mode domain.VotingMode, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		mode:     mode,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	electionID := r.PathValue("id")
	session, ok := h.registry.Get(electionID)
	if !ok {
		http.Error(w, "Election not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	viewer := Viewer{VoterToken: user.Username, Admin: user.IsAdmin()}
	client := NewClient(conn, session, uuid.NewString(), viewer, h.mode, h.logger)
	session.RegisterClient(client)

	// The election may have been destroyed since the lookup
	select {
	case <-session.Done():
		client.Close()
	default:
	}

	h.logger.Info("websocket connected",
		"electionID", electionID,
		"clientID", client.GetClientID(),
		"username", user.Username,
	)

	client.sendConnected()
	client.Run()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
