package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"showtrackr/config"
	"showtrackr/internal/auth"
	"showtrackr/internal/database"
	"showtrackr/models"
	"showtrackr/services/credentials"
	"showtrackr/services/library"
	"showtrackr/services/refresh"
	"showtrackr/services/tvdb"
)

// fakeUpstream satisfies refresh.Upstream without the network.
type fakeUpstream struct {
	token    string
	shows    map[string]tvdb.ShowExtended
	episodes map[string][]tvdb.Episode
	results  []tvdb.SearchResult
}

func (f *fakeUpstream) Login(ctx context.Context) error {
	f.token = "test-token"
	return nil
}

func (f *fakeUpstream) Token() string         { return f.token }
func (f *fakeUpstream) SetToken(token string) { f.token = token }

func (f *fakeUpstream) FetchShowExtended(ctx context.Context, id string) (tvdb.ShowExtended, error) {
	show, ok := f.shows[id]
	if !ok {
		return tvdb.ShowExtended{}, &tvdb.UpstreamError{Status: http.StatusNotFound, Path: "/series/" + id}
	}
	return show, nil
}

func (f *fakeUpstream) FetchAllEpisodes(ctx context.Context, id string, maxPages int) ([]tvdb.Episode, error) {
	return f.episodes[id], nil
}

func (f *fakeUpstream) SearchShows(ctx context.Context, query string, limit int) ([]tvdb.SearchResult, error) {
	return f.results, nil
}

type fakeAccounts struct{ accounts []models.Account }

func (f *fakeAccounts) List() []models.Account { return f.accounts }

// handlerEnv wires real services over a temp database with a fake upstream.
type handlerEnv struct {
	cfg      *config.Manager
	creds    *credentials.Service
	library  *library.Service
	cache    *database.ShowCacheRepository
	refresh  *refresh.Service
	upstream *fakeUpstream
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	t.Setenv(config.EnvTVDBAPIKey, "test-api-key")

	dir := t.TempDir()
	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.NewManager(filepath.Join(dir, "settings.json"))
	credsSvc := credentials.NewService(database.NewCredentialRepository(db.Connection()))
	libraryRepo := database.NewLibraryRepository(db.Connection())
	cacheRepo := database.NewShowCacheRepository(db.Connection())
	librarySvc := library.NewService(libraryRepo, cacheRepo)

	upstream := &fakeUpstream{
		shows:    make(map[string]tvdb.ShowExtended),
		episodes: make(map[string][]tvdb.Episode),
	}
	refreshSvc := refresh.NewService(cfg, credsSvc, libraryRepo, cacheRepo, &fakeAccounts{})
	refreshSvc.NewClient = func(apiKey, pin string) refresh.Upstream { return upstream }

	return &handlerEnv{
		cfg:      cfg,
		creds:    credsSvc,
		library:  librarySvc,
		cache:    cacheRepo,
		refresh:  refreshSvc,
		upstream: upstream,
	}
}

// authedRequest builds a request carrying an authenticated account context.
func authedRequest(method, target, userID string, body *bytes.Buffer) *http.Request {
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, body)
	}
	ctx := context.WithValue(r.Context(), auth.ContextKeyAccountID, userID)
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return buf
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}
