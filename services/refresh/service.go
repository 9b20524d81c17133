package refresh

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"showtrackr/config"
	"showtrackr/internal/database"
	"showtrackr/models"
	"showtrackr/services/credentials"
	"showtrackr/services/tvdb"
)

var (
	// ErrMissingPIN means the user has no stored PIN and none was supplied
	// with the request. Mapped to a 400-class response; every other
	// refresh failure maps to a 500-class one.
	ErrMissingPIN = errors.New("no tvdb pin available for user")

	// ErrNotConfigured means the upstream API key is absent, which
	// disables all metadata-dependent operations.
	ErrNotConfigured = errors.New("tvdb api key is not configured")
)

// Upstream is the slice of the metadata client the orchestrator relies on.
// *tvdb.Client satisfies it; tests substitute fakes.
type Upstream interface {
	Login(ctx context.Context) error
	Token() string
	SetToken(token string)
	FetchShowExtended(ctx context.Context, id string) (tvdb.ShowExtended, error)
	FetchAllEpisodes(ctx context.Context, id string, maxPages int) ([]tvdb.Episode, error)
	SearchShows(ctx context.Context, query string, limit int) ([]tvdb.SearchResult, error)
}

// accountLister enumerates the accounts to refresh.
type accountLister interface {
	List() []models.Account
}

// Service orchestrates metadata refreshes: it produces ready-to-use
// clients for users and applies refresh to one or all of them, strictly
// sequentially.
type Service struct {
	cfg      *config.Manager
	creds    *credentials.Service
	library  *database.LibraryRepository
	cache    *database.ShowCacheRepository
	accounts accountLister

	// NewClient builds an upstream client for an API key and PIN. Tests
	// override it to avoid the network.
	NewClient func(apiKey, pin string) Upstream
}

// NewService creates a refresh orchestrator.
func NewService(cfg *config.Manager, creds *credentials.Service, library *database.LibraryRepository,
	cache *database.ShowCacheRepository, accounts accountLister) *Service {
	return &Service{
		cfg:      cfg,
		creds:    creds,
		library:  library,
		cache:    cache,
		accounts: accounts,
		NewClient: func(apiKey, pin string) Upstream {
			return tvdb.NewClient(apiKey, pin, &http.Client{Timeout: 15 * time.Second})
		},
	}
}

// PrepareClientForUser loads the user's credentials and returns a client
// holding a valid token. A PIN supplied with the request wins over the
// stored one and always forces a fresh login, since a changed PIN makes a
// previously issued token untrustworthy.
func (s *Service) PrepareClientForUser(ctx context.Context, userID, pinOverride string) (Upstream, error) {
	apiKey := s.cfg.TVDBAPIKey()
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	auth, err := s.creds.GetUserAuth(userID)
	if err != nil {
		return nil, err
	}

	pin := pinOverride
	if pin == "" {
		pin = auth.PIN
	}
	if pin == "" {
		return nil, ErrMissingPIN
	}

	client := s.NewClient(apiKey, pin)

	if pinOverride == "" && auth.Token != "" && !credentials.IsExpired(auth.TokenExpiresAt) {
		client.SetToken(auth.Token)
		return client, nil
	}

	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	if err := s.creds.PersistAuth(userID, pin, client.Token()); err != nil {
		return nil, err
	}
	return client, nil
}

// RefreshUserShows walks the user's tracked shows in order, fetching
// current metadata and the full episode list for each, and upserting the
// shared cache. One show's failure is logged and counted; it never aborts
// the rest of the batch.
func (s *Service) RefreshUserShows(ctx context.Context, userID string, client Upstream) models.RefreshSummary {
	var summary models.RefreshSummary

	shows, err := s.library.ListShows(userID)
	if err != nil {
		log.Printf("[refresh] list shows for user %s: %v", userID, err)
		summary.Failures++
		return summary
	}

	maxPages := 20
	if settings, err := s.cfg.Load(); err == nil {
		maxPages = settings.Refresh.MaxEpisodePages
	}

	for _, show := range shows {
		if err := s.refreshOneShow(ctx, userID, show.TVDBID, client, maxPages, &summary); err != nil {
			log.Printf("[refresh] show %s for user %s: %v", show.TVDBID, userID, err)
			summary.Failures++
		}
	}
	return summary
}

func (s *Service) refreshOneShow(ctx context.Context, userID, tvdbID string, client Upstream,
	maxPages int, summary *models.RefreshSummary) error {
	extended, err := client.FetchShowExtended(ctx, tvdbID)
	if err != nil {
		return err
	}
	episodes, err := client.FetchAllEpisodes(ctx, tvdbID, maxPages)
	if err != nil {
		return err
	}

	cached := models.CachedShow{
		TVDBID:        tvdbID,
		Title:         extended.Title,
		Poster:        extended.Poster,
		Overview:      extended.Overview,
		FirstAired:    extended.FirstAired,
		LastAired:     extended.LastAired,
		Status:        extended.Status,
		Network:       extended.Network,
		SeasonCount:   extended.SeasonCount,
		LatestAirDate: latestAirDate(episodes),
	}
	if err := s.cache.UpsertShow(cached); err != nil {
		return err
	}
	if err := s.cache.UpsertEpisodesBatch(tvdbID, toCachedEpisodes(tvdbID, episodes)); err != nil {
		return err
	}
	if err := s.cache.MarkEpisodesComplete(tvdbID); err != nil {
		return err
	}
	if err := s.library.StampRefresh(userID, tvdbID, time.Now().UTC()); err != nil {
		return err
	}

	summary.UpdatedShows++
	summary.UpdatedEpisodes += len(episodes)
	return nil
}

// RefreshUser prepares a client for the user, refreshes their shows, and
// stamps a trigger-tagged refresh timestamp.
func (s *Service) RefreshUser(ctx context.Context, userID, pin string, trigger models.RefreshTrigger) (models.RefreshSummary, error) {
	client, err := s.PrepareClientForUser(ctx, userID, pin)
	if err != nil {
		return models.RefreshSummary{}, err
	}

	summary := s.RefreshUserShows(ctx, userID, client)

	if err := s.creds.SetLastRefresh(userID, trigger, time.Now().UTC()); err != nil {
		log.Printf("[refresh] stamp refresh for user %s: %v", userID, err)
	}
	return summary, nil
}

// RefreshAllUsers refreshes every account in sequence. A user without a
// PIN is skipped with a warning and counted as a failure; any other
// per-user failure is also counted, and neither stops the run.
func (s *Service) RefreshAllUsers(ctx context.Context) models.RefreshSummary {
	var total models.RefreshSummary

	for _, account := range s.accounts.List() {
		summary, err := s.RefreshUser(ctx, account.ID, "", models.TriggerScheduled)
		if err != nil {
			if errors.Is(err, ErrMissingPIN) {
				log.Printf("[refresh] MISSING_PIN: skipping user %s", account.ID)
			} else {
				log.Printf("[refresh] user %s failed: %v", account.ID, err)
			}
			total.Failures++
			continue
		}
		total.Add(summary)
	}
	return total
}

// latestAirDate returns the maximum air date across the fetched episodes.
// Dates are provider-format YYYY-MM-DD, so lexical comparison is ordering.
func latestAirDate(episodes []tvdb.Episode) string {
	latest := ""
	for _, ep := range episodes {
		if ep.AirDate > latest {
			latest = ep.AirDate
		}
	}
	return latest
}

func toCachedEpisodes(tvdbID string, episodes []tvdb.Episode) []models.CachedEpisode {
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
	return cached
}
