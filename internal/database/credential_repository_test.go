package database

import (
	"testing"
	"time"

	"showtrackr/models"
)

func TestCredentialRepository_GetMissingUser(t *testing.T) {
	repo := NewCredentialRepository(setupTestDB(t).Connection())

	cred, err := repo.Get("nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cred.UserID != "nobody" || cred.HasPIN() || cred.Token != "" {
		t.Errorf("expected zero-value credential, got %+v", cred)
	}
	if cred.TokenExpiresAt != nil {
		t.Error("expected nil expiry for missing user")
	}
}

func TestCredentialRepository_UpsertAuthRoundTrip(t *testing.T) {
	repo := NewCredentialRepository(setupTestDB(t).Connection())

	expires := time.Now().UTC().Add(27 * 24 * time.Hour).Truncate(time.Second)
	if err := repo.UpsertAuth("user-1", "PIN123", "tok-abc", expires); err != nil {
		t.Fatalf("UpsertAuth failed: %v", err)
	}

	cred, err := repo.Get("user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cred.PIN != "PIN123" || cred.Token != "tok-abc" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if cred.TokenExpiresAt == nil || !cred.TokenExpiresAt.Equal(expires) {
		t.Errorf("expected expiry %v, got %v", expires, cred.TokenExpiresAt)
	}

	// Second upsert replaces token and expiry
	later := expires.Add(time.Hour)
	if err := repo.UpsertAuth("user-1", "PIN123", "tok-def", later); err != nil {
		t.Fatalf("second UpsertAuth failed: %v", err)
	}
	cred, _ = repo.Get("user-1")
	if cred.Token != "tok-def" || !cred.TokenExpiresAt.Equal(later) {
		t.Errorf("expected replaced token, got %+v", cred)
	}
}

func TestCredentialRepository_SavePINClearsToken(t *testing.T) {
	repo := NewCredentialRepository(setupTestDB(t).Connection())

	if err := repo.UpsertAuth("user-1", "OLDPIN", "tok-abc", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpsertAuth failed: %v", err)
	}

	if err := repo.SavePIN("user-1", "NEWPIN"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}

	cred, err := repo.Get("user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cred.PIN != "NEWPIN" {
		t.Errorf("expected new pin, got %q", cred.PIN)
	}
	if cred.Token != "" || cred.TokenExpiresAt != nil {
		t.Errorf("expected token cleared after PIN change, got %+v", cred)
	}
}

func TestCredentialRepository_RefreshStamps(t *testing.T) {
	repo := NewCredentialRepository(setupTestDB(t).Connection())

	manual := time.Now().UTC().Truncate(time.Second)
	if err := repo.SetLastManualRefresh("user-1", manual); err != nil {
		t.Fatalf("SetLastManualRefresh failed: %v", err)
	}
	if err := repo.SetLastRefresh("user-1", models.TriggerScheduled, manual.Add(time.Minute)); err != nil {
		t.Fatalf("SetLastRefresh failed: %v", err)
	}

	cred, err := repo.Get("user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cred.LastManualRefresh == nil || !cred.LastManualRefresh.Equal(manual) {
		t.Errorf("unexpected manual stamp: %v", cred.LastManualRefresh)
	}
	if cred.LastRefreshAt == nil || !cred.LastRefreshAt.Equal(manual.Add(time.Minute)) {
		t.Errorf("unexpected refresh stamp: %v", cred.LastRefreshAt)
	}
	if cred.LastTrigger != string(models.TriggerScheduled) {
		t.Errorf("expected scheduled trigger, got %q", cred.LastTrigger)
	}

	// Stamping timestamps must not disturb the stored PIN
	if err := repo.SavePIN("user-1", "KEEPME"); err != nil {
		t.Fatalf("SavePIN failed: %v", err)
	}
	if err := repo.SetLastManualRefresh("user-1", manual.Add(time.Hour)); err != nil {
		t.Fatalf("second SetLastManualRefresh failed: %v", err)
	}
	cred, _ = repo.Get("user-1")
	if cred.PIN != "KEEPME" {
		t.Errorf("expected pin to survive stamping, got %q", cred.PIN)
	}
}
