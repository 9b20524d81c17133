package database

import (
	"database/sql"
	"fmt"
	"time"

	"showtrackr/models"
)

// LibraryRepository persists per-user tracked shows and episode watch
// state. Watch state is existence-based: a row in episode_watches means
// "watched", no row means "unwatched".
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a library repository.
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// AddShow inserts a tracked show for a user. Re-adding an existing show is
// a no-op that keeps the original addedAt and attention state.
func (r *LibraryRepository) AddShow(show *models.UserShow) error {
	if show.AddedAt.IsZero() {
		show.AddedAt = time.Now().UTC()
	}
	if show.Attention == "" {
		show.Attention = models.AttentionNewUnwatched
	}
	_, err := r.db.Exec(`
		INSERT INTO user_shows (user_id, tvdb_id, title, added_at, season_count, attention_state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tvdb_id) DO UPDATE SET
			title = excluded.title,
			season_count = excluded.season_count`,
		show.UserID, show.TVDBID, show.Title, show.AddedAt.UTC(), show.SeasonCount, string(show.Attention))
	if err != nil {
		return fmt.Errorf("add show: %w", err)
	}
	return nil
}

// GetShow returns one tracked show, or nil when the user does not track it.
func (r *LibraryRepository) GetShow(userID, tvdbID string) (*models.UserShow, error) {
	row := r.db.QueryRow(`
		SELECT user_id, tvdb_id, title, added_at, season_count, attention_state, last_refresh_at
		FROM user_shows WHERE user_id = ? AND tvdb_id = ?`, userID, tvdbID)
	show, err := scanUserShow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	return show, nil
}

// ListShows returns all shows tracked by a user, newest first.
func (r *LibraryRepository) ListShows(userID string) ([]models.UserShow, error) {
	rows, err := r.db.Query(`
		SELECT user_id, tvdb_id, title, added_at, season_count, attention_state, last_refresh_at
		FROM user_shows WHERE user_id = ? ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []models.UserShow
	for rows.Next() {
		show, err := scanUserShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		shows = append(shows, *show)
	}
	return shows, rows.Err()
}

// RemoveShow deletes a tracked show and cascades to its watch records.
func (r *LibraryRepository) RemoveShow(userID, tvdbID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin remove show: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM user_shows WHERE user_id = ? AND tvdb_id = ?`, userID, tvdbID)
	if err != nil {
		return fmt.Errorf("remove show: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.Exec(`DELETE FROM episode_watches WHERE user_id = ? AND tvdb_id = ?`, userID, tvdbID); err != nil {
		return fmt.Errorf("remove watch state: %w", err)
	}
	return tx.Commit()
}

// StampRefresh records when a tracked show was last refreshed.
func (r *LibraryRepository) StampRefresh(userID, tvdbID string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE user_shows SET last_refresh_at = ? WHERE user_id = ? AND tvdb_id = ?`,
		at.UTC(), userID, tvdbID)
	if err != nil {
		return fmt.Errorf("stamp show refresh: %w", err)
	}
	return nil
}

// SetAttention updates the attention state of a tracked show.
func (r *LibraryRepository) SetAttention(userID, tvdbID string, state models.AttentionState) error {
	_, err := r.db.Exec(`
		UPDATE user_shows SET attention_state = ? WHERE user_id = ? AND tvdb_id = ?`,
		string(state), userID, tvdbID)
	if err != nil {
		return fmt.Errorf("set attention state: %w", err)
	}
	return nil
}

// MarkWatched records an episode as watched. Marking twice is idempotent.
func (r *LibraryRepository) MarkWatched(watch *models.EpisodeWatch) error {
	if watch.WatchedAt.IsZero() {
		watch.WatchedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO episode_watches (user_id, tvdb_id, episode_id, season_number, episode_number, watched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, episode_id) DO UPDATE SET watched_at = excluded.watched_at`,
		watch.UserID, watch.TVDBID, watch.EpisodeID, watch.SeasonNumber, watch.EpisodeNumber, watch.WatchedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark watched: %w", err)
	}
	return nil
}

// MarkUnwatched deletes the watch record for an episode, returning whether
// a record existed.
func (r *LibraryRepository) MarkUnwatched(userID, episodeID string) (bool, error) {
	res, err := r.db.Exec(`
		DELETE FROM episode_watches WHERE user_id = ? AND episode_id = ?`, userID, episodeID)
	if err != nil {
		return false, fmt.Errorf("mark unwatched: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// WatchedEpisodes lists the watch records for one show.
func (r *LibraryRepository) WatchedEpisodes(userID, tvdbID string) ([]models.EpisodeWatch, error) {
	rows, err := r.db.Query(`
		SELECT user_id, tvdb_id, episode_id, season_number, episode_number, watched_at
		FROM episode_watches WHERE user_id = ? AND tvdb_id = ?
		ORDER BY season_number, episode_number`, userID, tvdbID)
	if err != nil {
		return nil, fmt.Errorf("list watched: %w", err)
	}
	defer rows.Close()

	var watches []models.EpisodeWatch
	for rows.Next() {
		var w models.EpisodeWatch
		if err := rows.Scan(&w.UserID, &w.TVDBID, &w.EpisodeID, &w.SeasonNumber, &w.EpisodeNumber, &w.WatchedAt); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// WatchedCount returns how many episodes of a show the user has watched.
func (r *LibraryRepository) WatchedCount(userID, tvdbID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM episode_watches WHERE user_id = ? AND tvdb_id = ?`,
		userID, tvdbID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count watched: %w", err)
	}
	return count, nil
}

// ListUserIDs returns the distinct users that track at least one show.
func (r *LibraryRepository) ListUserIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT user_id FROM user_shows ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserShow(row rowScanner) (*models.UserShow, error) {
	var show models.UserShow
	var attention string
	var lastRefresh sql.NullTime
	if err := row.Scan(&show.UserID, &show.TVDBID, &show.Title, &show.AddedAt,
		&show.SeasonCount, &attention, &lastRefresh); err != nil {
		return nil, err
	}
	show.Attention = models.AttentionState(attention)
	show.LastRefreshAt = nullTimePtr(lastRefresh)
	return &show, nil
}
