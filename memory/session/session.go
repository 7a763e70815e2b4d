// Package session is the short-term memory tier: per-thread
// conversation history held in process memory.
//
// History lives only as long as the process. Starting a new thread or
// restarting drops it, while the facts and episodic tiers persist.
package session

import (
	"sort"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// History holds conversation turns keyed by thread ID.
// All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	threads map[string][]anthropic.MessageParam
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{threads: make(map[string][]anthropic.MessageParam)}
}

// Append adds turns to a thread, creating the thread if needed.
func (h *History) Append(threadID string, turns ...anthropic.MessageParam) {
	if len(turns) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threads[threadID] = append(h.threads[threadID], turns...)
}

// Get returns a copy of a thread's turns, oldest first.
func (h *History) Get(threadID string) []anthropic.MessageParam {
	h.mu.RLock()
	defer h.mu.RUnlock()

	turns := h.threads[threadID]
	if len(turns) == 0 {
		return nil
	}
	return append([]anthropic.MessageParam(nil), turns...)
}

// Len returns the number of turns in a thread.
func (h *History) Len(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// Reset drops a thread entirely.
func (h *History) Reset(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.threads, threadID)
}

// Threads returns the known thread IDs, sorted.
func (h *History) Threads() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.threads))
	for id := range h.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
