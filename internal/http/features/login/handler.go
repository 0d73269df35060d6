// Package login implements the web login flow: evaluate the lockout
// policy, then set or clear the session cookie.
package login

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"loginguard/internal/httputil"
	"loginguard/pkg/auth"
	"loginguard/pkg/domain"
)

// Handler handles web login endpoints.
type Handler struct {
	logger         *slog.Logger
	policy         *auth.LockoutPolicy
	sessionService *auth.SessionService
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new login handler.
func NewHandler(logger *slog.Logger, policy *auth.LockoutPolicy, sessionService *auth.SessionService) *Handler {
	return &Handler{
		logger:         logger,
		policy:         policy,
		sessionService: sessionService,
		cookieConfig:   httputil.DefaultCookieConfig(),
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// Login handles web login.
// POST /v1/auth/login
//
// On success, sets an HttpOnly session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.policy.EvaluateLogin(r.Context(), req.Email, httputil.RemoteIP(r), req.Password)
	if err != nil {
		h.logger.Error("login evaluation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	if result.Outcome != domain.OutcomeAllowed {
		WriteRejection(w, result)
		return
	}

	token, err := h.sessionService.IssueSession(r.Context(), result.User, httputil.RemoteIP(r), r.UserAgent())
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", result.User.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	httputil.SetSessionCookie(w, token, h.sessionService.TTL(), h.cookieConfig)
	h.logger.Info("login successful", "user_id", result.User.ID)

	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "logged in"})
}

// Logout handles web logout.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := httputil.GetSessionToken(r); ok {
		if err := h.sessionService.RevokeSession(r.Context(), token); err != nil {
			h.logger.Error("failed to revoke session", "error", err)
		}
	}
	httputil.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// Session reports whether the caller holds a valid session cookie.
// GET /v1/auth/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.GetSessionToken(r)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "no session")
		return
	}
	if _, err := h.sessionService.ValidateSession(r.Context(), token); err != nil {
		httputil.Error(w, http.StatusUnauthorized, "session expired or revoked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WriteRejection maps a rejection outcome to its HTTP status. Shared
// with the token flow so both surfaces reject consistently.
func WriteRejection(w http.ResponseWriter, result *domain.LoginResult) {
	switch result.Outcome {
	case domain.OutcomeBadCredentials:
		httputil.Error(w, http.StatusUnauthorized, result.Message)
	case domain.OutcomeLockedOut:
		httputil.Error(w, http.StatusTooManyRequests, result.Message)
	case domain.OutcomeSuspended:
		httputil.Error(w, http.StatusForbidden, result.Message)
	default:
		httputil.Error(w, http.StatusInternalServerError, "authentication failed")
	}
}
