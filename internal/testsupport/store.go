package testsupport

import (
	"context"
	"testing"

	"voicecast/internal/config"
	"voicecast/internal/episodes"
	"voicecast/internal/jobs"
)

// MustOpenJobStore opens the job store for a test config, failing the test
// on error and closing it on cleanup.
func MustOpenJobStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenEpisodeStore opens the episode store for a test config, failing
// the test on error and closing it on cleanup.
func MustOpenEpisodeStore(t testing.TB, cfg *config.Config) *episodes.Store {
	t.Helper()

	store, err := episodes.Open(cfg)
	if err != nil {
		t.Fatalf("open episode store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedEpisode creates a head and an episode with the given lines of
// dialogue, all spoken by that head, and returns the episode.
func SeedEpisode(t testing.TB, store *episodes.Store, title string, lines ...string) *episodes.Episode {
	t.Helper()
	ctx := context.Background()

	head, err := store.HeadByName(ctx, "Narrator")
	if err != nil {
		t.Fatalf("look up head: %v", err)
	}
	if head == nil {
		head, err = store.CreateHead(ctx, &episodes.Head{Name: "Narrator", VoiceID: "alloy"})
		if err != nil {
			t.Fatalf("create head: %v", err)
		}
	}

	episode, err := store.CreateEpisode(ctx, title)
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	for _, line := range lines {
		if _, err := store.AddTurn(ctx, episode.ID, head.ID, line, 0); err != nil {
			t.Fatalf("add turn: %v", err)
		}
	}
	if err := store.SetStatus(ctx, episode.ID, episodes.StatusReady); err != nil {
		t.Fatalf("set episode status: %v", err)
	}

	episode, err = store.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("reload episode: %v", err)
	}
	return episode
}
