// Package token implements the API login flow: bearer tokens subject to
// the active-device limit.
package token

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"loginguard/internal/http/features/login"
	"loginguard/internal/http/middleware"
	"loginguard/internal/httputil"
	"loginguard/pkg/auth"
	"loginguard/pkg/domain"
)

// Handler handles API token endpoints.
type Handler struct {
	logger       *slog.Logger
	policy       *auth.LockoutPolicy
	tokenService *auth.TokenService
}

// NewHandler creates a new token handler.
func NewHandler(logger *slog.Logger, policy *auth.LockoutPolicy, tokenService *auth.TokenService) *Handler {
	return &Handler{
		logger:       logger,
		policy:       policy,
		tokenService: tokenService,
	}
}

// LoginRequest represents an API login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse represents an issued bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// Login handles API login.
// POST /v1/auth/token/login
//
// Runs the same lockout policy as the web flow, then issues a bearer
// token unless the account already holds the maximum number of live
// tokens.
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
		login.WriteRejection(w, result)
		return
	}

	token, err := h.tokenService.Issue(r.Context(), result.User)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyActiveDevices) {
			httputil.Error(w, http.StatusUnauthorized, "you are already logged in from two devices")
			return
		}
		h.logger.Error("failed to issue token", "error", err, "user_id", result.User.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.logger.Info("token issued", "user_id", result.User.ID)

	httputil.JSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		TokenType: "Bearer",
	})
}

// Logout handles API logout: revokes every live token for the account.
// POST /v1/auth/token/logout (bearer-authenticated)
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	if err := h.tokenService.RevokeAll(r.Context(), userID); err != nil {
		h.logger.Error("failed to revoke tokens", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to revoke tokens")
		return
	}

	h.logger.Info("all tokens revoked", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
