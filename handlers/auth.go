package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"showtrackr/api"
	"showtrackr/internal/auth"
	"showtrackr/services/accounts"
	"showtrackr/services/sessions"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	accounts *accounts.Service
	sessions *sessions.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc *accounts.Service, sessionsSvc *sessions.Service) *AuthHandler {
	return &AuthHandler{
		accounts: accountsSvc,
		sessions: sessionsSvc,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	IsMaster  bool   `json:"isMaster"`
}

// AccountResponse represents account info in API responses.
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsMaster bool   `json:"isMaster"`
}

// Login authenticates a user and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	account, err := h.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	session, err := h.sessions.Create(account.ID, account.IsMaster, r.Header.Get("User-Agent"), api.GetClientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session_failed", "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		AccountID: account.ID,
		Username:  account.Username,
		IsMaster:  account.IsMaster,
	})
}

// Logout invalidates the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "no_session", "no session token")
		return
	}

	if err := h.sessions.Revoke(token); err != nil && err != sessions.ErrSessionNotFound {
		writeError(w, http.StatusInternalServerError, "revoke_failed", "failed to revoke session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the current authenticated account info.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID := auth.GetAccountID(r)
	account, ok := h.accounts.Get(accountID)
	if !ok {
		writeError(w, http.StatusNotFound, "account_not_found", "account not found")
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		ID:       account.ID,
		Username: account.Username,
		IsMaster: account.IsMaster,
	})
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword changes the current account's password and revokes the
// account's other sessions.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	accountID := auth.GetAccountID(r)
	account, ok := h.accounts.Get(accountID)
	if !ok {
		writeError(w, http.StatusNotFound, "account_not_found", "account not found")
		return
	}

	if _, err := h.accounts.Authenticate(account.Username, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		return
	}

	if err := h.accounts.UpdatePassword(account.ID, req.NewPassword); err != nil {
		if err == accounts.ErrPasswordRequired {
			writeError(w, http.StatusBadRequest, "password_required", "new password is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "update_failed", "failed to update password")
		return
	}

	h.sessions.RevokeAllForAccount(account.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
