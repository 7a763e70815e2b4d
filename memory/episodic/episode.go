// Package episodic is the task-memory tier: completed agent turns
// stored as episodes in an embedded vector index (chromem-go) and
// recalled by similarity to the current task.
//
// An episode records what the user asked for, which tool actions the
// agent took, and how it turned out. Episodes are namespaced by user
// ID and can optionally persist to disk.
package episodic

import (
	"fmt"
	"strings"
	"time"
)

// Episode is one completed task: what was asked, what the agent did,
// and how it ended.
type Episode struct {
	ID        string            `json:"episode_id"`
	UserID    string            `json:"user_id"`
	Task      string            `json:"task"`
	Actions   []string          `json:"actions"`
	Outcome   string            `json:"outcome"`
	Success   bool              `json:"success"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Recalled pairs an episode with its similarity to the query task,
// rounded to three decimals.
type Recalled struct {
	Episode
	Similarity float64 `json:"similarity"`
}

// Stats summarizes a user's episode history.
type Stats struct {
	Total       int     `json:"total_episodes"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// EmbeddingText renders the episode as the text that gets embedded
// and matched against future tasks.
func (e *Episode) EmbeddingText() string {
	return fmt.Sprintf("Task: %s\nActions: %s\nOutcome: %s",
		e.Task, strings.Join(e.Actions, ", "), e.Outcome)
}

// episodeID builds a document ID of the form
// user_20240115_093042_123456 (microsecond suffix keeps IDs unique
// within a second).
func episodeID(userID string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%06d", userID, t.Format("20060102_150405"), t.Nanosecond()/1000)
}
