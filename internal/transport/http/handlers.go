package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"clubvote/internal/app"
	"clubvote/internal/auth"
	"clubvote/internal/domain"
)

// maxBodyBytes limits vote and login request bodies
const maxBodyBytes = 1024

// maxOpenBodyBytes limits election creation bodies
const maxOpenBodyBytes = 64 << 10

// ElectionListEntry is one value of the GET /api/elections object, keyed by ID
type ElectionListEntry struct {
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
	Closed     bool     `json:"closed"`
}

// OpenElectionRequest is the body of POST /api/elections
type OpenElectionRequest struct {
	Title      string   `json:"title"`
	Candidates []string `json:"candidates"`
}

// LoginRequest is the body of /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status    string `json:"status"`
	Elections int    `json:"elections"`
}

// handleListElections handles GET /api/elections
func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	summaries := s.registry.Enumerate()

	list := make(map[string]ElectionListEntry, len(summaries))
	for _, summary := range summaries {
		list[summary.ID] = ElectionListEntry{
			Title:      summary.Title,
			Candidates: summary.Candidates,
			Closed:     summary.Closed,
		}
	}

	s.sendJSON(w, http.StatusOK, list)
}

// handleOpenElection handles POST /api/elections
func (s *Server) handleOpenElection(w http.ResponseWriter, r *http.Request) {
	var req OpenElectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOpenBodyBytes)).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid election body")
		return
	}

	id, err := s.registry.Open(req.Title, req.Candidates)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, app.ErrRegistryClosed) {
			s.sendError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		s.logger.Error("failed to open election", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to open election")
		return
	}

	w.Header().Set("Location", "/api/elections/"+id)
	s.sendText(w, http.StatusCreated, id)
}

// handleGetElection handles GET /api/elections/{id}
func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	session, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Election not found")
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	s.sendJSON(w, http.StatusOK, session.Detail(user.Username, user.IsAdmin()))
}

// handleVote handles PUT /api/elections/{id}. The body is the candidate name.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	session, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Election not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid vote body")
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	err = session.Vote(domain.NewBallot(s.mode, string(body), user.Username))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrAlreadyClosed):
		s.sendError(w, http.StatusBadRequest, "Election is closed")
	case errors.Is(err, domain.ErrUnknownCandidate):
		s.sendError(w, http.StatusBadRequest, "Unknown candidate")
	case errors.Is(err, domain.ErrDuplicateVote):
		s.sendError(w, http.StatusBadRequest, "You have already voted")
	case errors.Is(err, domain.ErrMissingVoterToken):
		s.sendError(w, http.StatusBadRequest, "A voter token is required")
	default:
		s.logger.Error("failed to record vote", "electionID", session.GetID(), "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to record vote")
	}
}

// handleCloseElection handles PATCH /api/elections/{id}
func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	session, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Election not found")
		return
	}

	session.Close()
	w.WriteHeader(http.StatusNoContent)
}

// handleDestroyElection handles DELETE /api/elections/{id}
func (s *Server) handleDestroyElection(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Destroy(r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.sendError(w, http.StatusNotFound, "Election not found")
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAuthStatus handles GET /auth
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.sendError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	s.sendJSON(w, http.StatusOK, user)
}

// handleLogin handles PUT and POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid login body")
		return
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		s.logger.Info("login failed", "username", req.Username)
		s.sendError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	sess, err := s.sessions.Create(r.Context(), user.Username)
	if err != nil {
		s.logger.Error("failed to create session", "username", user.Username, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.config.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Info("user logged in", "username", user.Username)
	s.sendJSON(w, http.StatusOK, user)
}

// handleLogout handles GET /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.config.Session.CookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusOK)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, &HealthResponse{
		Status:    "ok",
		Elections: s.registry.Count(),
	})
}

// handleStatic serves static files
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	// Strip /static/ prefix
	path := strings.TrimPrefix(r.URL.Path, "/static/")

	// Try to open from webFS
	file, err := s.webFS.Open("static/" + path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	// Get file info for content type and modification time
	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), seeker)
}

// handleSPA serves the single-page application
func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	// Unknown API routes are not client routes
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.sendError(w, http.StatusNotFound, "Not found")
		return
	}

	file, err := s.webFS.Open("index.html")
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	seeker, ok := file.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", stat.ModTime(), seeker)
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// sendText sends a plain text response
func (s *Server) sendText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, text)
}

// sendError sends a plain text error message, which the web client shows as is
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendText(w, status, message)
}
