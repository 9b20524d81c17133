package library

import (
	"database/sql"
	"errors"
	"time"

	"showtrackr/internal/database"
	"showtrackr/models"
)

var (
	ErrShowNotTracked = errors.New("show is not in the library")
)

// Service manages a user's tracked shows and episode watch state, keeping
// each show's attention state in step with watch actions.
type Service struct {
	shows *database.LibraryRepository
	cache *database.ShowCacheRepository
}

// NewService creates a library service.
func NewService(shows *database.LibraryRepository, cache *database.ShowCacheRepository) *Service {
	return &Service{shows: shows, cache: cache}
}

// AddShow tracks a show for a user. New shows start as new-unwatched.
func (s *Service) AddShow(userID string, cached models.CachedShow) (models.UserShow, error) {
	show := models.UserShow{
		UserID:      userID,
		TVDBID:      cached.TVDBID,
		Title:       cached.Title,
		AddedAt:     time.Now().UTC(),
		SeasonCount: cached.SeasonCount,
		Attention:   models.AttentionNewUnwatched,
	}
	if err := s.shows.AddShow(&show); err != nil {
		return models.UserShow{}, err
	}
	return show, nil
}

// RemoveShow drops a show from the user's library, cascading to its watch
// records.
func (s *Service) RemoveShow(userID, tvdbID string) error {
	err := s.shows.RemoveShow(userID, tvdbID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrShowNotTracked
	}
	return err
}

// ListShows returns the user's library, newest first.
func (s *Service) ListShows(userID string) ([]models.UserShow, error) {
	return s.shows.ListShows(userID)
}

// GetShow returns one tracked show, or nil when not tracked.
func (s *Service) GetShow(userID, tvdbID string) (*models.UserShow, error) {
	return s.shows.GetShow(userID, tvdbID)
}

// MarkWatched records an episode as watched and updates the show's
// attention state.
func (s *Service) MarkWatched(userID string, watch models.EpisodeWatch) error {
	tracked, err := s.shows.GetShow(userID, watch.TVDBID)
	if err != nil {
		return err
	}
	if tracked == nil {
		return ErrShowNotTracked
	}
	watch.UserID = userID
	if err := s.shows.MarkWatched(&watch); err != nil {
		return err
	}
	return s.reclassify(userID, watch.TVDBID)
}

// MarkUnwatched removes the watch record for an episode and updates the
// show's attention state. Unwatching an already-unwatched episode is a
// no-op.
func (s *Service) MarkUnwatched(userID, tvdbID, episodeID string) error {
	removed, err := s.shows.MarkUnwatched(userID, episodeID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	return s.reclassify(userID, tvdbID)
}

// WatchedEpisodes lists the user's watch records for one show.
func (s *Service) WatchedEpisodes(userID, tvdbID string) ([]models.EpisodeWatch, error) {
	return s.shows.WatchedEpisodes(userID, tvdbID)
}

// reclassify recomputes a show's attention state from the watch counts.
// A show with every cached episode watched is "watched"; anything else
// with at least one watch action in its history is "unwatched". The
// "new-unwatched" state only exists between add and the first watch.
func (s *Service) reclassify(userID, tvdbID string) error {
	watched, err := s.shows.WatchedCount(userID, tvdbID)
	if err != nil {
		return err
	}
	total, err := s.cache.EpisodeCount(tvdbID)
	if err != nil {
		return err
	}

	state := models.AttentionUnwatched
	if total > 0 && watched >= total {
		state = models.AttentionWatched
	}
	return s.shows.SetAttention(userID, tvdbID, state)
}
