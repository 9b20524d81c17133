package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"showtrackr/internal/auth"
	"showtrackr/internal/database"
	"showtrackr/models"
	"showtrackr/services/library"
	"showtrackr/services/refresh"
	"showtrackr/services/tvdb"
)

const minSearchQueryLength = 2

// ShowsHandler serves show search and the per-user library.
type ShowsHandler struct {
	library *library.Service
	cache   *database.ShowCacheRepository
	refresh *refresh.Service
}

// NewShowsHandler creates a new shows handler.
func NewShowsHandler(librarySvc *library.Service, cache *database.ShowCacheRepository, refreshSvc *refresh.Service) *ShowsHandler {
	return &ShowsHandler{
		library: librarySvc,
		cache:   cache,
		refresh: refreshSvc,
	}
}

// Search proxies a show search to the metadata provider. The query can
// arrive as ?query= or the short alias ?q=.
// GET /api/shows/search?query=
func (h *ShowsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		query = strings.TrimSpace(r.URL.Query().Get("q"))
	}
	if utf8.RuneCountInString(query) < minSearchQueryLength {
		writeError(w, http.StatusBadRequest, "query_required", "search query must be at least 2 characters")
		return
	}

	userID := auth.GetAccountID(r)
	client, err := h.refresh.PrepareClientForUser(r.Context(), userID, "")
	if err != nil {
		writeUpstreamError(w, err, "search_failed", "search failed")
		return
	}

	results, err := client.SearchShows(r.Context(), query, 20)
	if err != nil {
		log.Printf("[shows] search %q failed: %v", query, err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed")
		return
	}
	if results == nil {
		results = []tvdb.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// AddShowRequest is the add-to-library request body.
type AddShowRequest struct {
	TVDBID string `json:"tvdbId"`
}

// AddShowResponse is the new library entry plus its identifier. Shows are
// keyed by their TVDB id throughout the API, so id mirrors tvdbId.
type AddShowResponse struct {
	models.UserShow
	ID string `json:"id"`
}

// Add fetches show metadata, caches it, and adds the show to the user's
// library.
// POST /api/shows
func (h *ShowsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	tvdbID := strings.TrimSpace(req.TVDBID)
	if tvdbID == "" {
		writeError(w, http.StatusBadRequest, "tvdb_id_required", "tvdbId is required")
		return
	}

	userID := auth.GetAccountID(r)
	client, err := h.refresh.PrepareClientForUser(r.Context(), userID, "")
	if err != nil {
		writeUpstreamError(w, err, "add_show_failed", "failed to add show")
		return
	}

	extended, err := client.FetchShowExtended(r.Context(), tvdbID)
	if err != nil {
		log.Printf("[shows] fetch show %s failed: %v", tvdbID, err)
		writeError(w, http.StatusInternalServerError, "add_show_failed", "failed to fetch show metadata")
		return
	}

	cached := models.CachedShow{
		TVDBID:      tvdbID,
		Title:       extended.Title,
		Poster:      extended.Poster,
		Overview:    extended.Overview,
		FirstAired:  extended.FirstAired,
		LastAired:   extended.LastAired,
		Status:      extended.Status,
		Network:     extended.Network,
		SeasonCount: extended.SeasonCount,
	}
	if err := h.cache.UpsertShow(cached); err != nil {
		log.Printf("[shows] cache show %s failed: %v", tvdbID, err)
		writeError(w, http.StatusInternalServerError, "add_show_failed", "failed to cache show metadata")
		return
	}

	show, err := h.library.AddShow(userID, cached)
	if err != nil {
		log.Printf("[shows] add show %s for %s failed: %v", tvdbID, userID, err)
		writeError(w, http.StatusInternalServerError, "add_show_failed", "failed to add show")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"show": AddShowResponse{UserShow: show, ID: show.TVDBID},
	})
}

// List returns the user's tracked shows, newest first.
// GET /api/shows
func (h *ShowsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetAccountID(r)

	shows, err := h.library.ListShows(userID)
	if err != nil {
		log.Printf("[shows] list for %s failed: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list shows")
		return
	}
	if shows == nil {
		shows = []models.UserShow{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"shows": shows})
}

// Remove deletes a show from the user's library along with its watch
// records.
// DELETE /api/shows/{tvdbId}
func (h *ShowsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	tvdbID := mux.Vars(r)["tvdbId"]
	userID := auth.GetAccountID(r)

	if err := h.library.RemoveShow(userID, tvdbID); err != nil {
		if errors.Is(err, library.ErrShowNotTracked) {
			writeError(w, http.StatusNotFound, "show_not_found", "show is not in your library")
			return
		}
		log.Printf("[shows] remove %s for %s failed: %v", tvdbID, userID, err)
		writeError(w, http.StatusInternalServerError, "remove_failed", "failed to remove show")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// writeUpstreamError maps client-preparation errors onto API error codes.
func writeUpstreamError(w http.ResponseWriter, err error, fallbackCode, fallbackMessage string) {
	switch {
	case errors.Is(err, refresh.ErrMissingPIN):
		writeError(w, http.StatusBadRequest, "pin_required", "a TVDB subscriber PIN is required")
	case errors.Is(err, refresh.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "not_configured", "TVDB API key is not configured")
	default:
		log.Printf("[shows] upstream client error: %v", err)
		writeError(w, http.StatusInternalServerError, fallbackCode, fallbackMessage)
	}
}
