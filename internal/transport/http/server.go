package http

import (
	"bufio"
	"context"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"clubvote/internal/app"
	"clubvote/internal/auth"
	"clubvote/internal/config"
	"clubvote/internal/domain"
	"clubvote/internal/session"
	"clubvote/internal/transport/ws"
)

// SessionStore persists login sessions
type SessionStore interface {
	Create(ctx context.Context, username string) (*session.Session, error)
	Lookup(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	TTL() time.Duration
}

// UserDirectory resolves and authenticates users
type UserDirectory interface {
	Authenticate(username, password string) (*auth.User, error)
	Lookup(username string) (*auth.User, error)
}

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handler  http.Handler
	registry *app.Registry
	users    UserDirectory
	sessions SessionStore
	gatherer prometheus.Gatherer
	mode     domain.VotingMode
	config   *config.Config
	logger   *slog.Logger
	webFS    fs.FS
}

// NewServer creates a new HTTP server. webFS holds index.html and static/.
// A nil gatherer disables GET /metrics.
func NewServer(
	cfg *config.Config,
	registry *app.Registry,
	users UserDirectory,
	sessions SessionStore,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
	webFS fs.FS,
) *Server {
	mode, err := cfg.VotingMode()
	if err != nil {
		logger.Error("invalid voting mode, using token", "error", err)
		mode = domain.VotingModeTokenGated
	}

	s := &Server{
		registry: registry,
		users:    users,
		sessions: sessions,
		gatherer: gatherer,
		mode:     mode,
		config:   cfg,
		logger:   logger,
		webFS:    webFS,
	}

	// Set up routes
	mux := http.NewServeMux()
	s.setupRoutes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
	}).Handler(s.authenticate(mux))

	s.handler = s.middleware(corsHandler)
	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Elections
	mux.Handle("GET /api/elections", s.requireUser(s.handleListElections))
	mux.Handle("POST /api/elections", s.requireAdmin(s.handleOpenElection))
	mux.Handle("GET /api/elections/{id}", s.requireUser(s.handleGetElection))
	mux.Handle("PUT /api/elections/{id}", s.requireUser(s.handleVote))
	mux.Handle("PATCH /api/elections/{id}", s.requireAdmin(s.handleCloseElection))
	mux.Handle("DELETE /api/elections/{id}", s.requireAdmin(s.handleDestroyElection))

	// Live feed
	wsHandler := ws.NewHandler(s.registry, s.mode, s.config.Server.AllowedOrigins, s.logger)
	mux.Handle("GET /api/elections/{id}/live", s.requireUser(wsHandler.ServeHTTP))

	// Auth
	mux.HandleFunc("GET /auth", s.handleAuthStatus)
	mux.HandleFunc("PUT /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/logout", s.handleLogout)

	// Operations
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Static files and SPA
	mux.HandleFunc("GET /static/", s.handleStatic)
	mux.HandleFunc("GET /", s.handleSPA)
}

// middleware wraps the handler with request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Log request (skip static files in production)
		if s.config.IsDevelopment() || !isStaticRequest(r.URL.Path) {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
			)
		}
	})
}

// authenticate attaches the session's user to the request context
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.config.Session.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Lookup(r.Context(), cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.users.Lookup(sess.Username)
		if err != nil {
			s.logger.Debug("session user no longer exists", "username", sess.Username)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// requireUser rejects unauthenticated requests with 401
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			s.sendError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		next(w, r)
	})
}

// requireAdmin rejects unauthenticated requests with 401 and non-admins with 403
func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			s.sendError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		if !user.IsAdmin() {
			s.sendError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	})
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr, "votingMode", s.mode.String())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		rw.statusCode = http.StatusSwitchingProtocols
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isStaticRequest checks if the request is for a static file
func isStaticRequest(path string) bool {
	return strings.HasPrefix(path, "/static/")
}
