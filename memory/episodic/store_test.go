package episodic

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// axisEmbedder maps keyword families to fixed unit vectors so tests
// control similarity exactly: same axis scores 1.0, different axes 0.5.
type axisEmbedder struct{}

func (axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	switch {
	case strings.Contains(text, "files"):
		vec[0] = 1
	case strings.Contains(text, "email"):
		vec[1] = 1
	case strings.Contains(text, "weather"):
		vec[2] = 1
	default:
		vec[7] = 1
	}
	return vec, nil
}

func (axisEmbedder) Dimensions() int { return 8 }

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(axisEmbedder{})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestStoreAndFetchEpisode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	actions := []string{"list_files()", "write_file(plan.txt)"}
	metadata := map[string]any{
		"source":  "repl",
		"count":   2,
		"task":    "overwrite attempt", // reserved, must be ignored
		"ignored": []string{"not a scalar"},
	}

	id, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", actions, "Organized into folders", true, metadata)
	if err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if id == "" {
		t.Fatal("Expected non-empty episode ID")
	}

	ep, err := store.Episode(ctx, id)
	if err != nil {
		t.Fatalf("Failed to fetch episode: %v", err)
	}

	if ep.UserID != "alice" {
		t.Errorf("Expected user 'alice', got %q", ep.UserID)
	}
	if ep.Task != "Organize my files into folders" {
		t.Errorf("Task not preserved: %q", ep.Task)
	}
	if len(ep.Actions) != 2 || ep.Actions[0] != "list_files()" || ep.Actions[1] != "write_file(plan.txt)" {
		t.Errorf("Actions not preserved: %v", ep.Actions)
	}
	if ep.Outcome != "Organized into folders" {
		t.Errorf("Outcome not preserved: %q", ep.Outcome)
	}
	if !ep.Success {
		t.Error("Expected success to be preserved")
	}
	if ep.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}

	if ep.Metadata["source"] != "repl" {
		t.Errorf("Expected scalar metadata preserved, got %v", ep.Metadata)
	}
	if ep.Metadata["count"] != "2" {
		t.Errorf("Expected int metadata as string, got %q", ep.Metadata["count"])
	}
	if _, ok := ep.Metadata["ignored"]; ok {
		t.Error("Expected non-scalar metadata to be dropped")
	}
}

func TestStoreEpisodeNilActions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.StoreEpisode(ctx, "alice", "Just a chat", nil, "Done", true, nil)
	if err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	ep, err := store.Episode(ctx, id)
	if err != nil {
		t.Fatalf("Failed to fetch episode: %v", err)
	}
	if ep.Actions == nil || len(ep.Actions) != 0 {
		t.Errorf("Expected empty (non-nil) actions, got %v", ep.Actions)
	}
}

func TestEpisodeNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Episode(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecallSimilarRanking(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "alice", "Send an email to my boss", []string{"send_email(boss)"}, "Sent", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	recalled, err := store.RecallSimilar(ctx, "sort my files please", "alice", 2, 0)
	if err != nil {
		t.Fatalf("Failed to recall: %v", err)
	}
	if len(recalled) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(recalled))
	}

	if !strings.Contains(recalled[0].Task, "files") {
		t.Errorf("Expected files episode ranked first, got %q", recalled[0].Task)
	}
	if recalled[0].Similarity != 1.0 {
		t.Errorf("Expected exact match similarity 1.0, got %v", recalled[0].Similarity)
	}
	if recalled[1].Similarity != 0.5 {
		t.Errorf("Expected orthogonal similarity 0.5, got %v", recalled[1].Similarity)
	}
	if recalled[0].Similarity < recalled[1].Similarity {
		t.Error("Expected results ordered by similarity")
	}
}

func TestRecallSimilarThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "alice", "Send an email to my boss", []string{"send_email(boss)"}, "Sent", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	// 0.6 sits between the exact-match score (1.0) and the
	// orthogonal score (0.5).
	recalled, err := store.RecallSimilar(ctx, "sort my files please", "alice", 2, 0.6)
	if err != nil {
		t.Fatalf("Failed to recall: %v", err)
	}
	if len(recalled) != 1 {
		t.Fatalf("Expected threshold to drop the weak match, got %d results", len(recalled))
	}
	if !strings.Contains(recalled[0].Task, "files") {
		t.Errorf("Expected files episode to survive, got %q", recalled[0].Task)
	}
}

func TestRecallSimilarScopedByUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	recalled, err := store.RecallSimilar(ctx, "sort my files please", "bob", 3, 0)
	if err != nil {
		t.Fatalf("Failed to recall: %v", err)
	}
	if len(recalled) != 0 {
		t.Errorf("Expected no results for other user, got %d", len(recalled))
	}
}

func TestRecallSimilarEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	recalled, err := store.RecallSimilar(ctx, "anything with files", "alice", 3, 0)
	if err != nil {
		t.Fatalf("Recall on empty store returned error: %v", err)
	}
	if len(recalled) != 0 {
		t.Errorf("Expected no results from empty store, got %d", len(recalled))
	}
}

func TestRecallSimilarEmptyTask(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	recalled, err := store.RecallSimilar(ctx, "", "alice", 3, 0)
	if err != nil {
		t.Fatalf("Recall with empty task returned error: %v", err)
	}
	if recalled != nil {
		t.Errorf("Expected nil results for empty task, got %v", recalled)
	}
}

func TestUserEpisodes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StoreEpisode(ctx, "alice", "Check the weather in Boston", []string{"get_weather(Boston)"}, "Reported", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "alice", "Send an email to my boss", []string{"send_email(boss)"}, "SMTP refused", false, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "bob", "Check the weather in Denver", []string{"get_weather(Denver)"}, "Reported", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	episodes, err := store.UserEpisodes(ctx, "alice", 0, false)
	if err != nil {
		t.Fatalf("Failed to list episodes: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("Expected 3 episodes for alice, got %d", len(episodes))
	}
	if episodes[0].Task != "Organize my files into folders" {
		t.Errorf("Expected newest episode first, got %q", episodes[0].Task)
	}

	successes, err := store.UserEpisodes(ctx, "alice", 0, true)
	if err != nil {
		t.Fatalf("Failed to list successful episodes: %v", err)
	}
	if len(successes) != 2 {
		t.Errorf("Expected 2 successful episodes, got %d", len(successes))
	}
	for _, ep := range successes {
		if !ep.Success {
			t.Errorf("Expected only successful episodes, got %+v", ep)
		}
	}

	limited, err := store.UserEpisodes(ctx, "alice", 1, false)
	if err != nil {
		t.Fatalf("Failed to list limited episodes: %v", err)
	}
	if len(limited) != 1 || limited[0].Task != "Organize my files into folders" {
		t.Errorf("Expected newest episode only, got %v", limited)
	}
}

func TestDeleteEpisode(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.StoreEpisode(ctx, "alice", "Temporary files task", []string{"list_files()"}, "Done", true, nil)
	if err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	deleted, err := store.DeleteEpisode(ctx, id)
	if err != nil {
		t.Fatalf("Failed to delete episode: %v", err)
	}
	if !deleted {
		t.Error("Expected delete of existing episode to report true")
	}

	if _, err := store.Episode(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected episode gone after delete, got %v", err)
	}

	deleted, err = store.DeleteEpisode(ctx, id)
	if err != nil {
		t.Fatalf("Delete of missing episode returned error: %v", err)
	}
	if deleted {
		t.Error("Expected delete of missing episode to report false")
	}
}

func TestClearUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
			t.Fatalf("Failed to store episode: %v", err)
		}
	}
	if _, err := store.StoreEpisode(ctx, "bob", "Check the weather in Denver", []string{"get_weather(Denver)"}, "Reported", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	removed, err := store.ClearUser(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to clear user: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 episodes removed, got %d", removed)
	}

	stats, err := store.Stats(ctx, "bob")
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected bob's episode untouched, got %d", stats.Total)
	}

	removed, err = store.ClearUser(ctx, "alice")
	if err != nil {
		t.Fatalf("Second clear returned error: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected nothing left to remove, got %d", removed)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stats, err := store.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Total != 0 || stats.SuccessRate != 0 {
		t.Errorf("Expected zero stats for empty store, got %+v", stats)
	}

	if _, err := store.StoreEpisode(ctx, "alice", "Organize my files into folders", []string{"list_files()"}, "Organized", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "alice", "Send an email to my boss", []string{"send_email(boss)"}, "SMTP refused", false, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if _, err := store.StoreEpisode(ctx, "bob", "Check the weather in Denver", []string{"get_weather(Denver)"}, "Reported", true, nil); err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}

	stats, err = store.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Total != 2 || stats.Successful != 1 || stats.Failed != 1 {
		t.Errorf("Unexpected per-user stats: %+v", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("Expected success rate 0.5, got %v", stats.SuccessRate)
	}

	all, err := store.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get aggregate stats: %v", err)
	}
	if all.Total != 3 || all.Successful != 2 {
		t.Errorf("Unexpected aggregate stats: %+v", all)
	}
}
