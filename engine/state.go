package engine

import (
	"context"

	"github.com/mnemoworks/mnemo/memory/episodic"
)

// turnState carries one turn's working data through the phases:
// context load, episode recall, the reasoning loop, and the episode
// write.
type turnState struct {
	userID string

	// Long-term context loaded at the start of the turn.
	preferences map[string]string
	facts       []string

	// Episodes recalled for the current task.
	episodes []episodic.Recalled

	// Task tracking for the episode write.
	task         string
	actions      []string
	outcome      string
	storeEpisode bool
}

func newTurnState(userID, task string, storeEpisode bool) *turnState {
	return &turnState{
		userID:       userID,
		task:         task,
		storeEpisode: storeEpisode,
	}
}

// maybeStoreEpisode records the turn as an episode when it was flagged
// for storage and tool actions were actually taken. The flag is
// consumed either way.
func (e *Engine) maybeStoreEpisode(ctx context.Context, st *turnState) (string, error) {
	store := st.storeEpisode
	st.storeEpisode = false

	if !store || st.task == "" || len(st.actions) == 0 {
		return "", nil
	}

	outcome := st.outcome
	if outcome == "" {
		outcome = "Task completed"
	}

	return e.episodes.StoreEpisode(ctx, st.userID, st.task, st.actions, outcome, true, nil)
}
