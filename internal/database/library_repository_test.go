package database

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"showtrackr/models"
)

func addTestShow(t *testing.T, repo *LibraryRepository, userID, tvdbID, title string) {
	t.Helper()
	err := repo.AddShow(&models.UserShow{
		UserID:    userID,
		TVDBID:    tvdbID,
		Title:     title,
		AddedAt:   time.Now().UTC(),
		Attention: models.AttentionNewUnwatched,
	})
	if err != nil {
		t.Fatalf("AddShow failed: %v", err)
	}
}

func TestLibraryRepository_AddAndGet(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "First Show")

	show, err := repo.GetShow("user-1", "100")
	if err != nil {
		t.Fatalf("GetShow failed: %v", err)
	}
	if show == nil {
		t.Fatal("expected show, got nil")
	}
	if show.Title != "First Show" || show.Attention != models.AttentionNewUnwatched {
		t.Errorf("unexpected show: %+v", show)
	}

	missing, err := repo.GetShow("user-1", "999")
	if err != nil {
		t.Fatalf("GetShow for missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for untracked show, got %+v", missing)
	}
}

func TestLibraryRepository_ReAddKeepsAttentionState(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "Original Title")
	if err := repo.SetAttention("user-1", "100", models.AttentionWatched); err != nil {
		t.Fatalf("SetAttention failed: %v", err)
	}

	// Re-adding refreshes metadata but must not reset watch progress
	err := repo.AddShow(&models.UserShow{
		UserID:    "user-1",
		TVDBID:    "100",
		Title:     "Updated Title",
		AddedAt:   time.Now().UTC(),
		Attention: models.AttentionNewUnwatched,
	})
	if err != nil {
		t.Fatalf("re-AddShow failed: %v", err)
	}

	show, _ := repo.GetShow("user-1", "100")
	if show.Title != "Updated Title" {
		t.Errorf("expected title updated, got %q", show.Title)
	}
	if show.Attention != models.AttentionWatched {
		t.Errorf("expected attention preserved, got %q", show.Attention)
	}
}

func TestLibraryRepository_ListIsolatedPerUser(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "Mine")
	addTestShow(t, repo, "user-2", "200", "Theirs")

	shows, err := repo.ListShows("user-1")
	if err != nil {
		t.Fatalf("ListShows failed: %v", err)
	}
	if len(shows) != 1 || shows[0].TVDBID != "100" {
		t.Errorf("expected only user-1's show, got %+v", shows)
	}
}

func TestLibraryRepository_RemoveCascadesWatches(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "Show")
	addTestShow(t, repo, "user-2", "100", "Show")

	watch := &models.EpisodeWatch{
		UserID: "user-1", TVDBID: "100", EpisodeID: "ep-1",
		SeasonNumber: 1, EpisodeNumber: 1, WatchedAt: time.Now().UTC(),
	}
	if err := repo.MarkWatched(watch); err != nil {
		t.Fatalf("MarkWatched failed: %v", err)
	}
	otherWatch := &models.EpisodeWatch{
		UserID: "user-2", TVDBID: "100", EpisodeID: "ep-1",
		SeasonNumber: 1, EpisodeNumber: 1, WatchedAt: time.Now().UTC(),
	}
	if err := repo.MarkWatched(otherWatch); err != nil {
		t.Fatalf("MarkWatched for user-2 failed: %v", err)
	}

	if err := repo.RemoveShow("user-1", "100"); err != nil {
		t.Fatalf("RemoveShow failed: %v", err)
	}

	if show, _ := repo.GetShow("user-1", "100"); show != nil {
		t.Error("expected show removed")
	}
	count, err := repo.WatchedCount("user-1", "100")
	if err != nil {
		t.Fatalf("WatchedCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected user-1's watches cascaded, got %d", count)
	}

	// Other users' watches are untouched
	otherCount, _ := repo.WatchedCount("user-2", "100")
	if otherCount != 1 {
		t.Errorf("expected user-2's watch to survive, got %d", otherCount)
	}
}

func TestLibraryRepository_RemoveMissingShow(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	err := repo.RemoveShow("user-1", "999")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestLibraryRepository_WatchUnwatch(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "Show")

	watch := &models.EpisodeWatch{
		UserID: "user-1", TVDBID: "100", EpisodeID: "ep-1",
		SeasonNumber: 1, EpisodeNumber: 1, WatchedAt: time.Now().UTC(),
	}
	if err := repo.MarkWatched(watch); err != nil {
		t.Fatalf("MarkWatched failed: %v", err)
	}
	// Watching twice is idempotent
	if err := repo.MarkWatched(watch); err != nil {
		t.Fatalf("second MarkWatched failed: %v", err)
	}

	count, _ := repo.WatchedCount("user-1", "100")
	if count != 1 {
		t.Errorf("expected 1 watched episode, got %d", count)
	}

	removed, err := repo.MarkUnwatched("user-1", "ep-1")
	if err != nil {
		t.Fatalf("MarkUnwatched failed: %v", err)
	}
	if !removed {
		t.Error("expected removal to be reported")
	}

	// Unwatching again is a no-op
	removed, err = repo.MarkUnwatched("user-1", "ep-1")
	if err != nil {
		t.Fatalf("second MarkUnwatched failed: %v", err)
	}
	if removed {
		t.Error("expected no-op for already-unwatched episode")
	}
}

func TestLibraryRepository_ListUserIDs(t *testing.T) {
	repo := NewLibraryRepository(setupTestDB(t).Connection())

	addTestShow(t, repo, "user-1", "100", "A")
	addTestShow(t, repo, "user-1", "200", "B")
	addTestShow(t, repo, "user-2", "100", "A")

	ids, err := repo.ListUserIDs()
	if err != nil {
		t.Fatalf("ListUserIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 distinct users, got %v", ids)
	}
}
