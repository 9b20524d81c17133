package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"showtrackr/models"
	"showtrackr/services/tvdb"
)

func TestRefresh_HappyPath(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	if err := env.creds.SavePIN("user-1", "PIN99"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}
	if _, err := env.library.AddShow("user-1", models.CachedShow{TVDBID: "100", Title: "Show"}); err != nil {
		t.Fatalf("AddShow failed: %v", err)
	}
	env.upstream.shows["100"] = tvdb.ShowExtended{Show: tvdb.Show{ID: "100", Title: "Show"}}
	env.upstream.episodes["100"] = []tvdb.Episode{{ID: "ep-1", Title: "Pilot", SeasonNumber: 1, EpisodeNumber: 1}}

	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", jsonBody(t, map[string]string{})))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		OK      bool                   `json:"ok"`
		Message string                 `json:"message"`
		Result  *models.RefreshSummary `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.OK || body.Message == "" {
		t.Errorf("expected ok with message, got %+v", body)
	}
	if body.Result == nil || body.Result.UpdatedShows != 1 || body.Result.UpdatedEpisodes != 1 {
		t.Errorf("unexpected result: %+v", body.Result)
	}
}

func TestRefresh_CooldownReturns429WithRetryAfter(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	if err := env.creds.SavePIN("user-1", "PIN99"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}

	// Last manual refresh 5 minutes ago; 15 minute cooldown leaves ~10 left
	fiveAgo := time.Now().UTC().Add(-5 * time.Minute)
	if err := env.creds.SetLastManualRefresh("user-1", fiveAgo); err != nil {
		t.Fatalf("SetLastManualRefresh failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != "refresh_cooldown" {
		t.Errorf("expected refresh_cooldown, got %q", code)
	}

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("expected numeric Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	// ~10 minutes remain; allow slack for test execution time
	if retryAfter < 9*60 || retryAfter > 10*60 {
		t.Errorf("expected Retry-After near 600s, got %d", retryAfter)
	}
}

func TestRefresh_CooldownExpiredAllowsRefresh(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	if err := env.creds.SavePIN("user-1", "PIN99"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}
	longAgo := time.Now().UTC().Add(-16 * time.Minute)
	if err := env.creds.SetLastManualRefresh("user-1", longAgo); err != nil {
		t.Fatalf("SetLastManualRefresh failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after cooldown, got %d: %s", rec.Code, rec.Body.String())
	}

	// Cooldown stamp must be bumped for the next call
	last, _ := env.creds.LastManualRefresh("user-1")
	if last == nil || !last.After(longAgo) {
		t.Errorf("expected new cooldown stamp, got %v", last)
	}
}

func TestRefresh_MissingPIN(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != "pin_required" {
		t.Errorf("expected pin_required, got %q", code)
	}
}

func TestRefresh_FailedRunDoesNotStartCooldown(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	// No stored PIN: the first attempt is rejected
	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	last, err := env.creds.LastManualRefresh("user-1")
	if err != nil {
		t.Fatalf("LastManualRefresh failed: %v", err)
	}
	if last != nil {
		t.Fatalf("rejected refresh must not stamp the cooldown, got %v", last)
	}

	// Saving a PIN and retrying right away must succeed, not 429
	if err := env.creds.SavePIN("user-1", "PIN99"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}
	rec = httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d: %s", rec.Code, rec.Body.String())
	}

	last, _ = env.creds.LastManualRefresh("user-1")
	if last == nil {
		t.Error("successful refresh must stamp the cooldown")
	}
}

func TestRefresh_NotConfigured(t *testing.T) {
	env := setupHandlerEnv(t)
	t.Setenv("TVDB_API_KEY", "")
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	if err := env.creds.SavePIN("user-1", "PIN99"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != "not_configured" {
		t.Errorf("expected not_configured, got %q", code)
	}
}

func TestRefresh_PINOverride(t *testing.T) {
	env := setupHandlerEnv(t)
	h := NewRefreshHandler(env.cfg, env.creds, env.refresh)

	// No stored PIN; the request body supplies one
	rec := httptest.NewRecorder()
	h.Refresh(rec, authedRequest(http.MethodPost, "/api/refresh", "user-1", jsonBody(t, map[string]string{"pin": "OVERRIDE1"})))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with pin override, got %d: %s", rec.Code, rec.Body.String())
	}

	cred, _ := env.creds.GetUserAuth("user-1")
	if cred.PIN != "OVERRIDE1" {
		t.Errorf("expected override pin persisted, got %q", cred.PIN)
	}
}
