package models

import "time"

// AttentionState classifies a tracked show for UI ordering priority.
type AttentionState string

const (
	// AttentionNewUnwatched marks a show that was just added and has no
	// watched episodes yet.
	AttentionNewUnwatched AttentionState = "new-unwatched"
	// AttentionUnwatched marks a show with at least one unwatched episode.
	AttentionUnwatched AttentionState = "unwatched"
	// AttentionWatched marks a show whose cached episodes are all watched.
	AttentionWatched AttentionState = "watched"
)

// UserShow is one entry in a user's tracked-show library.
type UserShow struct {
	UserID        string         `json:"-"`
	TVDBID        string         `json:"tvdbId"`
	Title         string         `json:"title"`
	AddedAt       time.Time      `json:"addedAt"`
	SeasonCount   int            `json:"seasonCount,omitempty"`
	Attention     AttentionState `json:"attentionState"`
	LastRefreshAt *time.Time     `json:"lastRefreshAt,omitempty"`
}

// EpisodeWatch records that a user watched one episode. Row existence is
// the watched signal; removing the row marks the episode unwatched again.
type EpisodeWatch struct {
	UserID        string    `json:"-"`
	TVDBID        string    `json:"tvdbId"`
	EpisodeID     string    `json:"episodeId"`
	SeasonNumber  int       `json:"seasonNumber"`
	EpisodeNumber int       `json:"episodeNumber"`
	WatchedAt     time.Time `json:"watchedAt"`
}

// CachedShow is show metadata shared across all users. Written only by the
// backend; clients are read-only observers.
type CachedShow struct {
	TVDBID            string     `json:"tvdbId"`
	Title             string     `json:"title"`
	Poster            string     `json:"poster,omitempty"`
	Overview          string     `json:"overview,omitempty"`
	FirstAired        string     `json:"firstAired,omitempty"`
	LastAired         string     `json:"lastAired,omitempty"`
	Status            string     `json:"status,omitempty"`
	Network           string     `json:"network,omitempty"`
	SeasonCount       int        `json:"seasonCount,omitempty"`
	LatestAirDate     string     `json:"latestAirDate,omitempty"`
	HasAllEpisodes    bool       `json:"hasAllEpisodes"`
	EpisodesUpdatedAt *time.Time `json:"episodesUpdatedAt,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// CachedEpisode is episode metadata shared across all users.
type CachedEpisode struct {
	TVDBID         string    `json:"tvdbId"`
	EpisodeID      string    `json:"episodeId"`
	Title          string    `json:"title"`
	SeasonNumber   int       `json:"seasonNumber"`
	EpisodeNumber  int       `json:"episodeNumber"`
	AirDate        string    `json:"airDate,omitempty"`
	AbsoluteNumber int       `json:"absoluteNumber,omitempty"`
	Overview       string    `json:"overview,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RefreshTrigger tags what initiated a refresh. Used only for timestamp
// bookkeeping on the credential record.
type RefreshTrigger string

const (
	TriggerManual    RefreshTrigger = "manual"
	TriggerScheduled RefreshTrigger = "scheduled"
)

// RefreshSummary aggregates the outcome of a refresh run. Failures are
// counted, not itemized; per-item detail goes to the log only.
type RefreshSummary struct {
	UpdatedShows    int `json:"updatedShows"`
	UpdatedEpisodes int `json:"updatedEpisodes"`
	Failures        int `json:"failures"`
}

// Add folds another summary into this one.
func (s *RefreshSummary) Add(other RefreshSummary) {
	s.UpdatedShows += other.UpdatedShows
	s.UpdatedEpisodes += other.UpdatedEpisodes
	s.Failures += other.Failures
}
