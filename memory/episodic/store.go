package episodic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemoworks/mnemo/memory"
)

// ErrNotFound is returned when an episode ID does not exist.
var ErrNotFound = errors.New("episode not found")

const (
	defaultRecallLimit  = 3
	defaultHistoryLimit = 10
)

// Reserved metadata keys used to encode the episode itself. Caller
// metadata cannot overwrite them.
const (
	metaUserID    = "user_id"
	metaTask      = "task"
	metaActions   = "actions"
	metaOutcome   = "outcome"
	metaSuccess   = "success"
	metaTimestamp = "timestamp"
)

// Store holds episodes in a chromem-go collection, embedded via the
// configured embedder. All methods are safe for concurrent use.
type Store struct {
	embedder memory.Embedder
	col      *chromem.Collection

	// mu serializes mutations so the count-based accounting in
	// ClearUser stays consistent. chromem handles its own read locking.
	mu sync.Mutex
}

// New creates an in-memory episode store.
func New(embedder memory.Embedder) (*Store, error) {
	return newStore(chromem.NewDB(), embedder)
}

// NewPersistent creates an episode store that persists under path.
func NewPersistent(path string, embedder memory.Embedder) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}
	return newStore(db, embedder)
}

func newStore(db *chromem.DB, embedder memory.Embedder) (*Store, error) {
	col, err := db.GetOrCreateCollection("episodes", nil, embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("create episode collection: %w", err)
	}
	return &Store{embedder: embedder, col: col}, nil
}

// StoreEpisode records a completed task and returns the episode ID.
// Extra metadata is limited to scalar values; reserved keys and
// non-scalar values are dropped.
func (s *Store) StoreEpisode(ctx context.Context, userID, task string, actions []string, outcome string, success bool, metadata map[string]any) (string, error) {
	if actions == nil {
		actions = []string{}
	}

	now := time.Now().UTC()
	ep := Episode{
		ID:        episodeID(userID, now),
		UserID:    userID,
		Task:      task,
		Actions:   actions,
		Outcome:   outcome,
		Success:   success,
		Timestamp: now,
	}

	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}

	meta := map[string]string{
		metaUserID:    userID,
		metaTask:      task,
		metaActions:   string(actionsJSON),
		metaOutcome:   outcome,
		metaSuccess:   strconv.FormatBool(success),
		metaTimestamp: now.Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		if _, reserved := meta[k]; reserved {
			continue
		}
		if str, ok := primitiveString(v); ok {
			meta[k] = str
		}
	}

	embedding, err := s.embedder.Embed(ctx, ep.EmbeddingText())
	if err != nil {
		return "", fmt.Errorf("embed episode: %w", err)
	}

	doc := chromem.Document{
		ID:        ep.ID,
		Content:   ep.EmbeddingText(),
		Embedding: embedding,
		Metadata:  meta,
	}

	s.mu.Lock()
	err = s.col.AddDocument(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("add episode: %w", err)
	}

	log.Printf("[EPISODIC] Stored episode: %s", ep.ID)
	return ep.ID, nil
}

// RecallSimilar returns up to k stored episodes ranked by similarity
// to the task text. An empty userID searches across all users.
// Results scoring below minSimilarity are dropped AFTER the top-k
// selection, so raising k can surface episodes a smaller k would not.
func (s *Store) RecallSimilar(ctx context.Context, task, userID string, k int, minSimilarity float64) ([]Recalled, error) {
	if task == "" {
		return nil, nil
	}
	if k <= 0 {
		k = defaultRecallLimit
	}

	var where map[string]string
	if userID != "" {
		where = map[string]string{metaUserID: userID}
	}

	results, err := shrinkQuery(k, func(n int) ([]chromem.Result, error) {
		return s.col.Query(ctx, task, n, where, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}

	recalled := make([]Recalled, 0, len(results))
	for i, res := range results {
		ep, err := episodeFromMetadata(res.ID, res.Metadata)
		if err != nil {
			log.Printf("[EPISODIC] Skipping result #%d: %v", i+1, err)
			continue
		}

		// chromem reports cosine similarity; scores are exposed as
		// 1/(1+distance), rounded to three decimals.
		distance := 1 - float64(res.Similarity)
		similarity := math.Round(1/(1+distance)*1000) / 1000

		if similarity < minSimilarity {
			continue
		}

		recalled = append(recalled, Recalled{Episode: ep, Similarity: similarity})
	}
	return recalled, nil
}

// UserEpisodes returns a user's episodes, newest first. limit <= 0
// means up to 10.
func (s *Store) UserEpisodes(ctx context.Context, userID string, limit int, successOnly bool) ([]Episode, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	where := map[string]string{metaUserID: userID}
	if successOnly {
		where[metaSuccess] = "true"
	}

	episodes, err := s.listUser(ctx, where)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Timestamp.After(episodes[j].Timestamp)
	})
	if len(episodes) > limit {
		episodes = episodes[:limit]
	}
	return episodes, nil
}

// Episode fetches one episode by ID. Missing IDs return ErrNotFound.
func (s *Store) Episode(ctx context.Context, id string) (Episode, error) {
	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return Episode{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return episodeFromMetadata(doc.ID, doc.Metadata)
}

// DeleteEpisode removes one episode by ID. It reports whether the
// episode existed.
func (s *Store) DeleteEpisode(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.col.GetByID(ctx, id); err != nil {
		return false, nil
	}
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	return true, nil
}

// ClearUser removes every episode belonging to a user and returns how
// many were removed.
func (s *Store) ClearUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.col.Count()
	if before == 0 {
		return 0, nil
	}

	if err := s.col.Delete(ctx, map[string]string{metaUserID: userID}, nil); err != nil {
		return 0, fmt.Errorf("clear episodes: %w", err)
	}

	removed := before - s.col.Count()
	log.Printf("[EPISODIC] Cleared %d episodes for user %s", removed, userID)
	return removed, nil
}

// Stats summarizes stored episodes. An empty userID aggregates across
// all users.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	var where map[string]string
	if userID != "" {
		where = map[string]string{metaUserID: userID}
	}

	episodes, err := s.listUser(ctx, where)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: len(episodes)}
	for _, ep := range episodes {
		if ep.Success {
			st.Successful++
		}
	}
	st.Failed = st.Total - st.Successful
	if st.Total > 0 {
		st.SuccessRate = float64(st.Successful) / float64(st.Total)
	}
	return st, nil
}

// listUser enumerates episodes matching the metadata filter. chromem
// has no scan API, so probe with a fixed unit vector and ask for every
// document, letting the filter trim the set.
func (s *Store) listUser(ctx context.Context, where map[string]string) ([]Episode, error) {
	total := s.col.Count()
	if total == 0 {
		return nil, nil
	}

	probe := make([]float32, s.embedder.Dimensions())
	probe[0] = 1

	results, err := shrinkQuery(total, func(n int) ([]chromem.Result, error) {
		return s.col.QueryEmbedding(ctx, probe, n, where, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	episodes := make([]Episode, 0, len(results))
	for i, res := range results {
		ep, err := episodeFromMetadata(res.ID, res.Metadata)
		if err != nil {
			log.Printf("[EPISODIC] Skipping episode #%d: %v", i+1, err)
			continue
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// shrinkQuery retries run with progressively smaller limits. chromem
// rejects nResults larger than the collection size, so a query against
// a small or empty collection shrinks until it fits (or returns
// nothing).
func shrinkQuery(limit int, run func(n int) ([]chromem.Result, error)) ([]chromem.Result, error) {
	for n := limit; n >= 1; n-- {
		results, err := run(n)
		if err == nil {
			return results, nil
		}
		if !isTooManyResultsError(err) {
			return nil, err
		}
	}
	return nil, nil
}

func isTooManyResultsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nResults must be")
}

// episodeFromMetadata rebuilds an episode from its stored metadata.
func episodeFromMetadata(id string, meta map[string]string) (Episode, error) {
	var actions []string
	if raw := meta[metaActions]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &actions); err != nil {
			return Episode{}, fmt.Errorf("parse actions: %w", err)
		}
	}
	if actions == nil {
		actions = []string{}
	}

	ep := Episode{
		ID:      id,
		UserID:  meta[metaUserID],
		Task:    meta[metaTask],
		Actions: actions,
		Outcome: meta[metaOutcome],
		Success: meta[metaSuccess] == "true",
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaTimestamp]); err == nil {
		ep.Timestamp = ts
	}

	for k, v := range meta {
		switch k {
		case metaUserID, metaTask, metaActions, metaOutcome, metaSuccess, metaTimestamp:
		default:
			if ep.Metadata == nil {
				ep.Metadata = make(map[string]string)
			}
			ep.Metadata[k] = v
		}
	}
	return ep, nil
}

// primitiveString renders scalar metadata values. chromem metadata is
// string-valued, so everything else is dropped.
func primitiveString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}
