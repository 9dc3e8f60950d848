// Package devbackend is a local implementation of the inventory backend's
// auth contract, used for development and end-to-end tests of the console.
package devbackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"consola.app/internal/audit"
	"consola.app/internal/auth"
	"consola.app/internal/obs"
)

const (
	msgUnauthenticated  = "Unauthenticated."
	msgInactiveUser     = "Usuario inactivo."
	msgMissingFields    = "El correo y la contraseña son obligatorios."
	msgTooManyAttempts  = "Demasiados intentos. Inténtelo más tarde."
	msgLoggedOut        = "Sesión cerrada correctamente."
	msgUserNotFound     = "Usuario no encontrado."
	msgTokenIssueFailed = "No se pudo emitir el token."
)

// Options configures a Server.
type Options struct {
	Prefix     string
	LoginRPS   float64
	LoginBurst int
	Registry   *prometheus.Registry
}

// Server serves the auth endpoints plus a sample protected resource.
type Server struct {
	mux      *http.ServeMux
	tokens   *Tokens
	users    *Directory
	metrics  *obs.Metrics
	registry *prometheus.Registry
	prefix   string
}

// New wires the routes under opts.Prefix (default "/api").
func New(tokens *Tokens, users *Directory, opts Options) (*Server, error) {
	if tokens == nil || users == nil {
		return nil, errors.New("devbackend: tokens and users are required")
	}
	prefix := strings.TrimSuffix(opts.Prefix, "/")
	if opts.Prefix == "" {
		prefix = "/api"
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		tokens:   tokens,
		users:    users,
		metrics:  obs.NewMetrics(reg),
		registry: reg,
		prefix:   prefix,
	}

	s.mux.HandleFunc("POST "+prefix+"/auth/login", RateLimit(s.handleLogin, opts.LoginRPS, opts.LoginBurst))
	s.mux.HandleFunc("GET "+prefix+"/auth/me", s.requireToken(s.handleMe))
	s.mux.HandleFunc("POST "+prefix+"/auth/refresh", s.requireToken(s.handleRefresh))
	s.mux.HandleFunc("POST "+prefix+"/auth/logout", s.requireToken(s.handleLogout))
	s.mux.HandleFunc("GET "+prefix+"/categorias", s.requireToken(s.handleCategories))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "consola-devbackend"})
	})
	s.mux.Handle("GET /metrics", obs.Handler(reg))
	return s, nil
}

// Handler returns the instrumented, logged handler.
func (s *Server) Handler() http.Handler {
	return Logging(s.metrics.Instrument(s.mux))
}

// Users exposes the directory, mainly so tests can edit grants.
func (s *Server) Users() *Directory { return s.users }

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, msgMissingFields)
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{"email": req.Email, "error": err.Error()})
		if errors.Is(err, ErrInactiveUser) {
			respondError(w, http.StatusForbidden, msgInactiveUser)
			return
		}
		respondError(w, http.StatusUnauthorized, auth.MsgInvalidCredentials)
		return
	}
	if !s.issue(w, user.ID) {
		return
	}
	_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user.ID), audit.EventLoginSucceeded, map[string]any{"email": user.Email})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	user, ok := s.activeUser(w, claims)
	if !ok {
		return
	}
	id := user.Identity(s.users.Created())
	writeJSON(w, http.StatusOK, auth.MeResponse{Data: &id, Permissions: user.Grants()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	if _, ok := s.activeUser(w, claims); !ok {
		return
	}
	if !s.issue(w, claims.UserID()) {
		return
	}
	s.tokens.Revoke(claims)
	_ = audit.LogEvent(r.Context(), audit.EventTokenRefreshed, map[string]any{"revoked": claims.ID})
}

// activeUser loads the token's account and answers 401 when it is gone or deactivated.
func (s *Server) activeUser(w http.ResponseWriter, claims *Claims) (User, bool) {
	user, ok := s.users.Get(claims.UserID())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUserNotFound)
		return User{}, false
	}
	if user.Inactive {
		respondError(w, http.StatusUnauthorized, msgInactiveUser)
		return User{}, false
	}
	return user, true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	s.tokens.Revoke(claims)
	_ = audit.LogEvent(r.Context(), audit.EventLogout, map[string]any{"revoked": claims.ID})
	writeJSON(w, http.StatusOK, map[string]string{"message": msgLoggedOut})
}

type category struct {
	ID     int64  `json:"id"`
	Name   string `json:"nombre"`
	Active bool   `json:"estado"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": []category{
			{ID: 1, Name: "Telas", Active: true},
			{ID: 2, Name: "Hilos", Active: true},
			{ID: 3, Name: "Accesorios", Active: false},
		},
	})
}

// issue writes a fresh token for userID and reports whether it succeeded.
func (s *Server) issue(w http.ResponseWriter, userID int64) bool {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		obs.Error("token_issue_failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, msgTokenIssueFailed)
		return false
	}
	writeJSON(w, http.StatusOK, auth.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
	})
	return true
}
