package database

import (
	"database/sql"
	"fmt"
	"time"

	"showtrackr/models"
)

// episodeBatchSize is the number of episode rows written per transaction.
// Carried over from the original store's 400-writes-per-batch limit.
const episodeBatchSize = 400

// ShowCacheRepository writes the shared show/episode metadata cache. The
// cache is owned by the backend; every write is a merge-upsert so callers
// never clobber fields they did not supply.
type ShowCacheRepository struct {
	db *sql.DB
}

// NewShowCacheRepository creates a show cache repository.
func NewShowCacheRepository(db *sql.DB) *ShowCacheRepository {
	return &ShowCacheRepository{db: db}
}

// UpsertShow merges the populated fields of show into the cache row.
// Empty fields are treated as "unspecified" and leave existing values
// intact. HasAllEpisodes is owned by MarkEpisodesComplete and is never
// touched here.
func (r *ShowCacheRepository) UpsertShow(show models.CachedShow) error {
	if show.TVDBID == "" {
		return fmt.Errorf("tvdb id is required")
	}
	_, err := r.db.Exec(`
		INSERT INTO show_cache (tvdb_id, title, poster, overview, first_aired, last_aired,
			status, network, season_count, latest_air_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tvdb_id) DO UPDATE SET
			title           = CASE WHEN excluded.title           <> '' THEN excluded.title           ELSE show_cache.title           END,
			poster          = CASE WHEN excluded.poster          <> '' THEN excluded.poster          ELSE show_cache.poster          END,
			overview        = CASE WHEN excluded.overview        <> '' THEN excluded.overview        ELSE show_cache.overview        END,
			first_aired     = CASE WHEN excluded.first_aired     <> '' THEN excluded.first_aired     ELSE show_cache.first_aired     END,
			last_aired      = CASE WHEN excluded.last_aired      <> '' THEN excluded.last_aired      ELSE show_cache.last_aired      END,
			status          = CASE WHEN excluded.status          <> '' THEN excluded.status          ELSE show_cache.status          END,
			network         = CASE WHEN excluded.network         <> '' THEN excluded.network         ELSE show_cache.network         END,
			season_count    = CASE WHEN excluded.season_count    >  0  THEN excluded.season_count    ELSE show_cache.season_count    END,
			latest_air_date = CASE WHEN excluded.latest_air_date <> '' THEN excluded.latest_air_date ELSE show_cache.latest_air_date END,
			updated_at      = excluded.updated_at`,
		show.TVDBID, show.Title, show.Poster, show.Overview, show.FirstAired, show.LastAired,
		show.Status, show.Network, show.SeasonCount, show.LatestAirDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert show cache: %w", err)
	}
	return nil
}

// GetShow returns the cached show, or nil when not cached.
func (r *ShowCacheRepository) GetShow(tvdbID string) (*models.CachedShow, error) {
	row := r.db.QueryRow(`
		SELECT tvdb_id, title, poster, overview, first_aired, last_aired, status, network,
			season_count, latest_air_date, has_all_episodes, episodes_updated_at, updated_at
		FROM show_cache WHERE tvdb_id = ?`, tvdbID)

	var show models.CachedShow
	var hasAll int
	var episodesUpdated sql.NullTime
	err := row.Scan(&show.TVDBID, &show.Title, &show.Poster, &show.Overview, &show.FirstAired,
		&show.LastAired, &show.Status, &show.Network, &show.SeasonCount, &show.LatestAirDate,
		&hasAll, &episodesUpdated, &show.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get show cache: %w", err)
	}
	show.HasAllEpisodes = hasAll != 0
	show.EpisodesUpdatedAt = nullTimePtr(episodesUpdated)
	return &show, nil
}

// UpsertEpisodesBatch writes episodes to the cache in fixed-size batches,
// one transaction per batch. Each row is a merge-upsert keyed by the
// upstream episode id.
func (r *ShowCacheRepository) UpsertEpisodesBatch(tvdbID string, episodes []models.CachedEpisode) error {
	now := time.Now().UTC()
	for start := 0; start < len(episodes); start += episodeBatchSize {
		end := start + episodeBatchSize
		if end > len(episodes) {
			end = len(episodes)
		}
		if err := r.upsertEpisodeChunk(tvdbID, episodes[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (r *ShowCacheRepository) upsertEpisodeChunk(tvdbID string, episodes []models.CachedEpisode, now time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin episode batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO episode_cache (tvdb_id, episode_id, title, season_number, episode_number,
			air_date, absolute_number, overview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tvdb_id, episode_id) DO UPDATE SET
			title           = CASE WHEN excluded.title    <> '' THEN excluded.title    ELSE episode_cache.title    END,
			season_number   = excluded.season_number,
			episode_number  = excluded.episode_number,
			air_date        = CASE WHEN excluded.air_date <> '' THEN excluded.air_date ELSE episode_cache.air_date END,
			absolute_number = CASE WHEN excluded.absolute_number > 0 THEN excluded.absolute_number ELSE episode_cache.absolute_number END,
			overview        = CASE WHEN excluded.overview <> '' THEN excluded.overview ELSE episode_cache.overview END,
			updated_at      = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare episode upsert: %w", err)
	}
	defer stmt.Close()

	for _, ep := range episodes {
		if ep.EpisodeID == "" {
			continue
		}
		if _, err := stmt.Exec(tvdbID, ep.EpisodeID, ep.Title, ep.SeasonNumber, ep.EpisodeNumber,
			ep.AirDate, ep.AbsoluteNumber, ep.Overview, now); err != nil {
			return fmt.Errorf("upsert episode %s: %w", ep.EpisodeID, err)
		}
	}
	return tx.Commit()
}

// MarkEpisodesComplete flags the episode cache for a show as a complete
// mirror of the upstream episode list. Subsequent episode reads can skip
// the upstream API entirely.
func (r *ShowCacheRepository) MarkEpisodesComplete(tvdbID string) error {
	_, err := r.db.Exec(`
		UPDATE show_cache SET has_all_episodes = 1, episodes_updated_at = ?, updated_at = ?
		WHERE tvdb_id = ?`, time.Now().UTC(), time.Now().UTC(), tvdbID)
	if err != nil {
		return fmt.Errorf("mark episodes complete: %w", err)
	}
	return nil
}

// HasAllEpisodes reports whether the episode cache for a show is complete.
func (r *ShowCacheRepository) HasAllEpisodes(tvdbID string) (bool, error) {
	var hasAll int
	err := r.db.QueryRow(`SELECT has_all_episodes FROM show_cache WHERE tvdb_id = ?`, tvdbID).Scan(&hasAll)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check episode cache: %w", err)
	}
	return hasAll != 0, nil
}

// ListEpisodes returns cached episodes for a show, ordered by season and
// episode number. Pass season < 0 for all seasons.
func (r *ShowCacheRepository) ListEpisodes(tvdbID string, season int) ([]models.CachedEpisode, error) {
	query := `
		SELECT tvdb_id, episode_id, title, season_number, episode_number,
			air_date, absolute_number, overview, updated_at
		FROM episode_cache WHERE tvdb_id = ?`
	args := []any{tvdbID}
	if season >= 0 {
		query += ` AND season_number = ?`
		args = append(args, season)
	}
	query += ` ORDER BY season_number, episode_number`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cached episodes: %w", err)
	}
	defer rows.Close()

	var episodes []models.CachedEpisode
	for rows.Next() {
		var ep models.CachedEpisode
		if err := rows.Scan(&ep.TVDBID, &ep.EpisodeID, &ep.Title, &ep.SeasonNumber, &ep.EpisodeNumber,
			&ep.AirDate, &ep.AbsoluteNumber, &ep.Overview, &ep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cached episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// EpisodeCount returns how many episodes of a show are cached.
func (r *ShowCacheRepository) EpisodeCount(tvdbID string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM episode_cache WHERE tvdb_id = ?`, tvdbID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached episodes: %w", err)
	}
	return count, nil
}
