package database

import (
	"fmt"
	"testing"

	"showtrackr/models"
)

func TestShowCacheRepository_UpsertMergesFields(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	full := models.CachedShow{
		TVDBID:      "100",
		Title:       "Deep Space",
		Poster:      "http://img/poster.jpg",
		Overview:    "a show",
		Status:      "Continuing",
		Network:     "HBO",
		SeasonCount: 3,
	}
	if err := repo.UpsertShow(full); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}

	// A sparse update must not clobber fields it does not carry
	sparse := models.CachedShow{TVDBID: "100", LatestAirDate: "2024-06-01"}
	if err := repo.UpsertShow(sparse); err != nil {
		t.Fatalf("sparse UpsertShow failed: %v", err)
	}

	show, err := repo.GetShow("100")
	if err != nil {
		t.Fatalf("GetShow failed: %v", err)
	}
	if show.Title != "Deep Space" || show.Network != "HBO" || show.SeasonCount != 3 {
		t.Errorf("sparse upsert clobbered fields: %+v", show)
	}
	if show.LatestAirDate != "2024-06-01" {
		t.Errorf("expected latest air date updated, got %q", show.LatestAirDate)
	}
}

func TestShowCacheRepository_UpsertRequiresID(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	if err := repo.UpsertShow(models.CachedShow{Title: "No ID"}); err == nil {
		t.Fatal("expected error for missing tvdb id")
	}
}

func TestShowCacheRepository_GetMissingShow(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	show, err := repo.GetShow("999")
	if err != nil {
		t.Fatalf("GetShow failed: %v", err)
	}
	if show != nil {
		t.Errorf("expected nil for uncached show, got %+v", show)
	}
}

func TestShowCacheRepository_EpisodeBatchAcrossChunks(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	if err := repo.UpsertShow(models.CachedShow{TVDBID: "100", Title: "Big Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}

	// More episodes than one batch holds
	total := episodeBatchSize + 25
	episodes := make([]models.CachedEpisode, 0, total)
	for i := 0; i < total; i++ {
		episodes = append(episodes, models.CachedEpisode{
			TVDBID:        "100",
			EpisodeID:     fmt.Sprintf("ep-%d", i),
			Title:         fmt.Sprintf("Episode %d", i),
			SeasonNumber:  i/100 + 1,
			EpisodeNumber: i%100 + 1,
		})
	}
	if err := repo.UpsertEpisodesBatch("100", episodes); err != nil {
		t.Fatalf("UpsertEpisodesBatch failed: %v", err)
	}

	count, err := repo.EpisodeCount("100")
	if err != nil {
		t.Fatalf("EpisodeCount failed: %v", err)
	}
	if count != total {
		t.Errorf("expected %d episodes, got %d", total, count)
	}

	// Re-upserting the same list must not duplicate rows
	if err := repo.UpsertEpisodesBatch("100", episodes); err != nil {
		t.Fatalf("second UpsertEpisodesBatch failed: %v", err)
	}
	count, _ = repo.EpisodeCount("100")
	if count != total {
		t.Errorf("expected upsert to stay at %d episodes, got %d", total, count)
	}
}

func TestShowCacheRepository_EpisodeMergeKeepsFields(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	first := []models.CachedEpisode{{
		TVDBID: "100", EpisodeID: "ep-1", Title: "Pilot",
		SeasonNumber: 1, EpisodeNumber: 1, AirDate: "2024-01-01", Overview: "the start",
	}}
	if err := repo.UpsertEpisodesBatch("100", first); err != nil {
		t.Fatalf("UpsertEpisodesBatch failed: %v", err)
	}

	// Update with missing title/overview keeps the cached values
	sparse := []models.CachedEpisode{{
		TVDBID: "100", EpisodeID: "ep-1",
		SeasonNumber: 1, EpisodeNumber: 1,
	}}
	if err := repo.UpsertEpisodesBatch("100", sparse); err != nil {
		t.Fatalf("sparse UpsertEpisodesBatch failed: %v", err)
	}

	episodes, err := repo.ListEpisodes("100", -1)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	if episodes[0].Title != "Pilot" || episodes[0].AirDate != "2024-01-01" {
		t.Errorf("sparse upsert clobbered episode fields: %+v", episodes[0])
	}
}

func TestShowCacheRepository_HasAllEpisodesLifecycle(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	if err := repo.UpsertShow(models.CachedShow{TVDBID: "100", Title: "Show"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}

	complete, err := repo.HasAllEpisodes("100")
	if err != nil {
		t.Fatalf("HasAllEpisodes failed: %v", err)
	}
	if complete {
		t.Error("expected incomplete cache for new show")
	}
	// Uncached shows read as incomplete, not as an error
	if complete, _ := repo.HasAllEpisodes("999"); complete {
		t.Error("expected incomplete for uncached show")
	}

	if err := repo.MarkEpisodesComplete("100"); err != nil {
		t.Fatalf("MarkEpisodesComplete failed: %v", err)
	}
	complete, _ = repo.HasAllEpisodes("100")
	if !complete {
		t.Error("expected complete after MarkEpisodesComplete")
	}

	show, _ := repo.GetShow("100")
	if show.EpisodesUpdatedAt == nil {
		t.Error("expected episodes timestamp after completion")
	}

	// A later metadata upsert must not reset the completion flag
	if err := repo.UpsertShow(models.CachedShow{TVDBID: "100", Status: "Ended"}); err != nil {
		t.Fatalf("UpsertShow failed: %v", err)
	}
	complete, _ = repo.HasAllEpisodes("100")
	if !complete {
		t.Error("expected completion flag to survive metadata upsert")
	}
}

func TestShowCacheRepository_ListEpisodesBySeason(t *testing.T) {
	repo := NewShowCacheRepository(setupTestDB(t).Connection())

	episodes := []models.CachedEpisode{
		{TVDBID: "100", EpisodeID: "ep-3", SeasonNumber: 2, EpisodeNumber: 1, Title: "S2E1"},
		{TVDBID: "100", EpisodeID: "ep-2", SeasonNumber: 1, EpisodeNumber: 2, Title: "S1E2"},
		{TVDBID: "100", EpisodeID: "ep-1", SeasonNumber: 1, EpisodeNumber: 1, Title: "S1E1"},
	}
	if err := repo.UpsertEpisodesBatch("100", episodes); err != nil {
		t.Fatalf("UpsertEpisodesBatch failed: %v", err)
	}

	all, err := repo.ListEpisodes("100", -1)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(all))
	}
	// Ordered by season then episode number
	if all[0].Title != "S1E1" || all[1].Title != "S1E2" || all[2].Title != "S2E1" {
		t.Errorf("unexpected order: %+v", all)
	}

	season1, err := repo.ListEpisodes("100", 1)
	if err != nil {
		t.Fatalf("ListEpisodes season filter failed: %v", err)
	}
	if len(season1) != 2 {
		t.Errorf("expected 2 season-1 episodes, got %d", len(season1))
	}
}
