package engine

import (
	"context"
	"testing"

	"github.com/mnemoworks/mnemo/memory/session"
)

func TestMaybeStoreEpisodeConsumesFlag(t *testing.T) {
	eps := &fakeEpisodes{}
	e := NewEngine(&scriptedClient{}, calculatorRegistry(), &fakeFacts{}, eps, session.NewHistory())

	st := newTurnState("alice", "add numbers", true)
	st.actions = []string{"calculator(add)"}

	id, err := e.maybeStoreEpisode(context.Background(), st)
	if err != nil {
		t.Fatalf("Failed to store episode: %v", err)
	}
	if id == "" || len(eps.stored) != 1 {
		t.Fatalf("Expected episode stored, got id=%q stored=%d", id, len(eps.stored))
	}
	if st.storeEpisode {
		t.Error("Expected flag consumed after store")
	}

	// A retry with the flag already consumed must not store a duplicate.
	id, err = e.maybeStoreEpisode(context.Background(), st)
	if err != nil {
		t.Fatalf("Second pass returned error: %v", err)
	}
	if id != "" || len(eps.stored) != 1 {
		t.Fatalf("Expected no duplicate store, got id=%q stored=%d", id, len(eps.stored))
	}
}

func TestMaybeStoreEpisodeFlagClearedWithoutStore(t *testing.T) {
	eps := &fakeEpisodes{}
	e := NewEngine(&scriptedClient{}, calculatorRegistry(), &fakeFacts{}, eps, session.NewHistory())

	st := newTurnState("alice", "just chat", true)

	id, err := e.maybeStoreEpisode(context.Background(), st)
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if id != "" || len(eps.stored) != 0 {
		t.Fatalf("Expected nothing stored without actions, got %v", eps.stored)
	}
	if st.storeEpisode {
		t.Error("Expected flag consumed even when nothing was stored")
	}
}
