package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"keepnotes/internal/ratelimit"
	"keepnotes/internal/util"
	"keepnotes/pkg/domain"
	"keepnotes/services/notes/internal/app"
)

const (
	maxBodyBytes  = 1 << 20
	rateWindow    = time.Minute
	healthTimeout = 2 * time.Second
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Redis backs the rate limiters when set; otherwise limits are kept per
	// process.
	Redis *redis.Client

	// Gatherer feeds /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	TrustedProxies *util.TrustedProxies
	CORSOrigins    []string

	LoginRateLimitPerMinute  int
	SignupRateLimitPerMinute int
	GuestRateLimitPerMinute  int
}

// Server exposes the notes HTTP API.
type Server struct {
	app            *app.App
	router         chi.Router
	gatherer       prometheus.Gatherer
	trustedProxies *util.TrustedProxies
	corsOrigins    []string
	loginLimiter   ratelimit.Limiter
	signupLimiter  ratelimit.Limiter
	guestLimiter   ratelimit.Limiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	newLimiter := func(name string, limit, fallback int) (ratelimit.Limiter, error) {
		if limit <= 0 {
			limit = fallback
		}
		if cfg.Redis == nil {
			return ratelimit.NewLocalLimiter(limit, rateWindow), nil
		}
		l, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "keepnotes:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return l, nil
	}
	login, err := newLimiter("login", cfg.LoginRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	signup, err := newLimiter("signup", cfg.SignupRateLimitPerMinute, 5)
	if err != nil {
		return nil, err
	}
	guestLogin, err := newLimiter("guest", cfg.GuestRateLimitPerMinute, 20)
	if err != nil {
		return nil, err
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		app:            cfg.App,
		gatherer:       gatherer,
		trustedProxies: cfg.TrustedProxies,
		corsOrigins:    cfg.CORSOrigins,
		loginLimiter:   login,
		signupLimiter:  signup,
		guestLimiter:   guestLogin,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		util.WithRequestID,
		func(next http.Handler) http.Handler { return util.WithRequestLog("notes", next) },
		util.WithSecurityHeaders,
		util.WithCORS(s.corsOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/guest", s.handleGuestLogin)
			r.Method(http.MethodPost, "/logout", s.authenticated(s.handleLogout))
			r.Method(http.MethodGet, "/me", s.authenticated(s.handleMe))
		})
		r.Route("/notes", func(r chi.Router) {
			r.Method(http.MethodPost, "/", s.authenticated(s.handleCreateNote))
			r.Method(http.MethodGet, "/", s.authenticated(s.handleListNotes))
			r.Method(http.MethodPut, "/reorder", s.authenticated(s.handleReorderNotes))
			r.Method(http.MethodGet, "/{id}", s.authenticated(s.handleGetNote))
			r.Method(http.MethodPut, "/{id}", s.authenticated(s.handleUpdateNote))
			r.Method(http.MethodDelete, "/{id}", s.authenticated(s.handleTrashNote))
			r.Method(http.MethodPost, "/{id}/restore", s.authenticated(s.handleRestoreNote))
			r.Method(http.MethodDelete, "/{id}/permanent", s.authenticated(s.handleDeleteNotePermanently))
		})
		r.Route("/categories", func(r chi.Router) {
			r.Method(http.MethodPost, "/", s.authenticated(s.handleCreateLabel))
			r.Method(http.MethodGet, "/", s.authenticated(s.handleListLabels))
			r.Method(http.MethodPut, "/{id}", s.authenticated(s.handleRenameLabel))
			r.Method(http.MethodDelete, "/{id}", s.authenticated(s.handleDeleteLabel))
		})
	})
	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.app.Ping(ctx); err != nil {
		util.LoggerFromContext(r.Context()).Error("health check failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(r.Context(), token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	util.LoggerFromContext(r.Context()).Warn("rate limited", "path", r.URL.Path)
	w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

// writeAppError maps application errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 without detail.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrUserExists), errors.Is(err, app.ErrLabelExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNoteNotFound), errors.Is(err, app.ErrLabelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrReservedEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Debug("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
