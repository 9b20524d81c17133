package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"showtrackr/internal/auth"
	"showtrackr/services/credentials"
	"showtrackr/utils"
)

// CredentialsHandler manages per-user TVDB subscriber credentials.
type CredentialsHandler struct {
	creds *credentials.Service
}

// NewCredentialsHandler creates a new credentials handler.
func NewCredentialsHandler(credsSvc *credentials.Service) *CredentialsHandler {
	return &CredentialsHandler{creds: credsSvc}
}

// SavePINRequest carries the subscriber PIN to store.
type SavePINRequest struct {
	PIN string `json:"pin"`
}

// SavePIN stores the caller's subscriber PIN. Saving a PIN clears any
// cached upstream token so the next request logs in fresh.
// POST /api/tvdb/pin
func (h *CredentialsHandler) SavePIN(w http.ResponseWriter, r *http.Request) {
	var req SavePINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	pin := strings.TrimSpace(req.PIN)
	if pin == "" {
		writeError(w, http.StatusBadRequest, "pin_required", "pin is required")
		return
	}
	if !utils.ValidateSubscriberPIN(pin) {
		writeError(w, http.StatusBadRequest, "invalid_pin", "pin must be 4-16 alphanumeric characters")
		return
	}

	userID := auth.GetAccountID(r)
	if err := h.creds.SavePIN(userID, pin); err != nil {
		if errors.Is(err, credentials.ErrPINRequired) {
			writeError(w, http.StatusBadRequest, "pin_required", "pin is required")
			return
		}
		log.Printf("[credentials] save pin for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "save_pin_failed", "failed to save pin")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Status reports whether the caller has a stored PIN and a live token.
// GET /api/tvdb/status
func (h *CredentialsHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetAccountID(r)

	cred, err := h.creds.GetUserAuth(userID)
	if err != nil {
		log.Printf("[credentials] status for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "status_failed", "failed to load credential status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hasPin":        cred.HasPIN(),
		"hasValidToken": cred.Token != "" && !credentials.IsExpired(cred.TokenExpiresAt),
		"lastRefreshAt": cred.LastRefreshAt,
		"lastTrigger":   cred.LastTrigger,
	})
}
