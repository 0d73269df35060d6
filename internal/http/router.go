package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"loginguard/internal/config"
	"loginguard/internal/http/features/login"
	"loginguard/internal/http/features/token"
	"loginguard/internal/http/middleware"
	"loginguard/internal/httputil"
	"loginguard/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	Policy             *auth.LockoutPolicy
	SessionService     *auth.SessionService
	TokenService       *auth.TokenService
	RateLimit          config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimiter := middleware.NoRateLimit()
	if cfg.RateLimit.Enabled {
		authLimiter = middleware.RateLimit(middleware.RateLimitConfig{
			Requests: cfg.RateLimit.RequestsPerMin,
			Window:   time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
			Logger:   cfg.Logger,
		})
	}

	// Web login routes
	loginHandler := login.NewHandler(cfg.Logger, cfg.Policy, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)
		r.Post("/v1/auth/login", loginHandler.Login)
	})
	r.Post("/v1/auth/logout", loginHandler.Logout)
	r.Get("/v1/auth/session", loginHandler.Session)

	// API token routes
	tokenHandler := token.NewHandler(cfg.Logger, cfg.Policy, cfg.TokenService)
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)
		r.Post("/v1/auth/token/login", tokenHandler.Login)
	})
	r.With(middleware.BearerAuth(cfg.TokenService)).Post("/v1/auth/token/logout", tokenHandler.Logout)

	return r
}
