package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"showtrackr/config"
	"showtrackr/internal/auth"
	"showtrackr/models"
	"showtrackr/services/credentials"
	"showtrackr/services/refresh"
)

// RefreshHandler serves manual metadata refresh requests.
type RefreshHandler struct {
	cfg     *config.Manager
	creds   *credentials.Service
	refresh *refresh.Service
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(cfg *config.Manager, credsSvc *credentials.Service, refreshSvc *refresh.Service) *RefreshHandler {
	return &RefreshHandler{
		cfg:     cfg,
		creds:   credsSvc,
		refresh: refreshSvc,
	}
}

// RefreshRequest optionally carries a PIN override for this run.
type RefreshRequest struct {
	PIN string `json:"pin"`
}

// Refresh runs a metadata refresh of the caller's library. Manual refreshes
// are throttled per user; inside the cooldown window the handler answers
// 429 with a Retry-After header.
// POST /api/refresh
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors on an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	userID := auth.GetAccountID(r)

	settings, err := h.cfg.Load()
	if err != nil {
		log.Printf("[refresh] load settings failed: %v", err)
		writeError(w, http.StatusInternalServerError, "refresh_failed", "failed to load settings")
		return
	}
	cooldown := time.Duration(settings.Refresh.ManualCooldownMinutes) * time.Minute

	last, err := h.creds.LastManualRefresh(userID)
	if err != nil {
		log.Printf("[refresh] read last manual refresh for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "refresh_failed", "failed to check refresh cooldown")
		return
	}
	if last != nil {
		remaining := cooldown - time.Since(*last)
		if remaining > 0 {
			seconds := int(math.Ceil(remaining.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "refresh_cooldown",
				"manual refresh is rate limited, try again in "+strconv.Itoa(seconds)+" seconds")
			return
		}
	}

	summary, err := h.refresh.RefreshUser(r.Context(), userID, req.PIN, models.TriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrMissingPIN):
			writeError(w, http.StatusBadRequest, "pin_required", "a TVDB subscriber PIN is required")
		case errors.Is(err, refresh.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "not_configured", "TVDB API key is not configured")
		default:
			log.Printf("[refresh] manual refresh for %s failed: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "refresh_failed", "refresh failed")
		}
		return
	}

	// Cooldown starts only once a refresh actually ran; a rejected
	// request must not lock the user out for the full window.
	if err := h.creds.SetLastManualRefresh(userID, time.Now().UTC()); err != nil {
		log.Printf("[refresh] stamp manual refresh for %s failed: %v", userID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": fmt.Sprintf("refreshed %d shows", summary.UpdatedShows),
		"result":  summary,
	})
}
