package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"showtrackr/config"
	"showtrackr/internal/auth"
	"showtrackr/internal/database"
	"showtrackr/models"
	"showtrackr/services/library"
	"showtrackr/services/refresh"
)

// EpisodesHandler serves episode listings and per-user watch state.
type EpisodesHandler struct {
	cfg     *config.Manager
	library *library.Service
	cache   *database.ShowCacheRepository
	refresh *refresh.Service
}

// NewEpisodesHandler creates a new episodes handler.
func NewEpisodesHandler(cfg *config.Manager, librarySvc *library.Service, cache *database.ShowCacheRepository, refreshSvc *refresh.Service) *EpisodesHandler {
	return &EpisodesHandler{
		cfg:     cfg,
		library: librarySvc,
		cache:   cache,
		refresh: refreshSvc,
	}
}

// EpisodeResponse is a cached episode plus the caller's watch state.
type EpisodeResponse struct {
	models.CachedEpisode
	Watched bool `json:"watched"`
}

// Get lists episodes for a show, serving from the shared cache when the
// full set is already cached and fetching from upstream otherwise.
// GET /api/episodes?tvdbId=&season=
func (h *EpisodesHandler) Get(w http.ResponseWriter, r *http.Request) {
	tvdbID := strings.TrimSpace(r.URL.Query().Get("tvdbId"))
	if tvdbID == "" {
		writeError(w, http.StatusBadRequest, "tvdb_id_required", "tvdbId is required")
		return
	}

	season := -1
	if raw := strings.TrimSpace(r.URL.Query().Get("season")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_season", "season must be a non-negative number")
			return
		}
		season = parsed
	}

	userID := auth.GetAccountID(r)

	complete, err := h.cache.HasAllEpisodes(tvdbID)
	if err != nil {
		log.Printf("[episodes] cache check for %s failed: %v", tvdbID, err)
		writeError(w, http.StatusInternalServerError, "get_episodes_failed", "failed to load episodes")
		return
	}

	if !complete {
		if err := h.fetchAndCache(r, userID, tvdbID); err != nil {
			writeUpstreamError(w, err, "get_episodes_failed", "failed to fetch episodes")
			return
		}
	}

	episodes, err := h.cache.ListEpisodes(tvdbID, season)
	if err != nil {
		log.Printf("[episodes] list for %s failed: %v", tvdbID, err)
		writeError(w, http.StatusInternalServerError, "get_episodes_failed", "failed to load episodes")
		return
	}

	watched, err := h.library.WatchedEpisodes(userID, tvdbID)
	if err != nil {
		log.Printf("[episodes] watch state for %s failed: %v", tvdbID, err)
		writeError(w, http.StatusInternalServerError, "get_episodes_failed", "failed to load watch state")
		return
	}
	watchedSet := make(map[string]bool, len(watched))
	for _, ew := range watched {
		watchedSet[ew.EpisodeID] = true
	}

	resp := make([]EpisodeResponse, 0, len(episodes))
	for _, ep := range episodes {
		resp = append(resp, EpisodeResponse{CachedEpisode: ep, Watched: watchedSet[ep.EpisodeID]})
	}

	writeJSON(w, http.StatusOK, map[string]any{"episodes": resp})
}

// fetchAndCache pulls the full episode list from upstream and stores it in
// the shared cache.
func (h *EpisodesHandler) fetchAndCache(r *http.Request, userID, tvdbID string) error {
	client, err := h.refresh.PrepareClientForUser(r.Context(), userID, "")
	if err != nil {
		return err
	}

	settings, err := h.cfg.Load()
	if err != nil {
		return err
	}

	episodes, err := client.FetchAllEpisodes(r.Context(), tvdbID, settings.Refresh.MaxEpisodePages)
	if err != nil {
		return err
	}

	cached := make([]models.CachedEpisode, 0, len(episodes))
	for _, ep := range episodes {
		cached = append(cached, models.CachedEpisode{
			TVDBID:         tvdbID,
			EpisodeID:      ep.ID,
			Title:          ep.Title,
			SeasonNumber:   ep.SeasonNumber,
			EpisodeNumber:  ep.EpisodeNumber,
			AirDate:        ep.AirDate,
			AbsoluteNumber: ep.AbsoluteNumber,
			Overview:       ep.Overview,
		})
	}

	if err := h.cache.UpsertEpisodesBatch(tvdbID, cached); err != nil {
		return err
	}
	return h.cache.MarkEpisodesComplete(tvdbID)
}

// WatchRequest identifies one episode of a tracked show.
type WatchRequest struct {
	TVDBID        string `json:"tvdbId"`
	EpisodeID     string `json:"episodeId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
}

// Watch marks an episode as watched.
// POST /api/episodes/watch
func (h *EpisodesHandler) Watch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if strings.TrimSpace(req.TVDBID) == "" || strings.TrimSpace(req.EpisodeID) == "" {
		writeError(w, http.StatusBadRequest, "episode_required", "tvdbId and episodeId are required")
		return
	}

	userID := auth.GetAccountID(r)
	watch := models.EpisodeWatch{
		UserID:        userID,
		TVDBID:        req.TVDBID,
		EpisodeID:     req.EpisodeID,
		SeasonNumber:  req.SeasonNumber,
		EpisodeNumber: req.EpisodeNumber,
		WatchedAt:     time.Now().UTC(),
	}

	if err := h.library.MarkWatched(userID, watch); err != nil {
		if errors.Is(err, library.ErrShowNotTracked) {
			writeError(w, http.StatusNotFound, "show_not_found", "show is not in your library")
			return
		}
		log.Printf("[episodes] mark watched %s/%s failed: %v", req.TVDBID, req.EpisodeID, err)
		writeError(w, http.StatusInternalServerError, "watch_failed", "failed to mark episode watched")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "watched"})
}

// Unwatch removes the watched mark from an episode. Unwatching an episode
// that was never watched is a no-op.
// DELETE /api/episodes/watch
func (h *EpisodesHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if strings.TrimSpace(req.TVDBID) == "" || strings.TrimSpace(req.EpisodeID) == "" {
		writeError(w, http.StatusBadRequest, "episode_required", "tvdbId and episodeId are required")
		return
	}

	userID := auth.GetAccountID(r)
	if err := h.library.MarkUnwatched(userID, req.TVDBID, req.EpisodeID); err != nil {
		log.Printf("[episodes] mark unwatched %s/%s failed: %v", req.TVDBID, req.EpisodeID, err)
		writeError(w, http.StatusInternalServerError, "unwatch_failed", "failed to mark episode unwatched")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unwatched"})
}
