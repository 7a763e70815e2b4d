// Package facts is the long-term memory tier: user preferences and
// discrete facts persisted in SQLite.
//
// Preferences are key-value pairs with last-write-wins semantics.
// Facts are append-only statements with a type, confidence, and
// provenance. Both are namespaced by user ID and survive restarts.
//
// UserContext snapshots (everything the prompt builder needs for one
// user) are cached in-process and invalidated on every write.
package facts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"
)

// Fact is one stored statement about a user.
type Fact struct {
	ID         int64
	UserID     string
	FactType   string
	Content    string
	Confidence float64
	Source     string
	CreatedAt  time.Time
}

// UserContext is the long-term memory snapshot injected into the
// system prompt. Cached copies are shared; callers must not mutate.
type UserContext struct {
	// Preferences maps preference key to its current value.
	Preferences map[string]string

	// Facts holds fact contents, newest first.
	Facts []string

	// FactDetails carries the full rows behind Facts, same order.
	FactDetails []Fact
}

// Store persists preferences and facts for all users.
// All methods are safe for concurrent use.
type Store struct {
	db    *sql.DB
	cache *ristretto.Cache
}

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (user_id, key)
);

CREATE TABLE IF NOT EXISTS facts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	fact_type  TEXT NOT NULL,
	content    TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,
	source     TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id);
`

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init context cache: %w", err)
	}

	return &Store{db: db, cache: cache}, nil
}

// Close releases the cache and the database handle.
func (s *Store) Close() error {
	s.cache.Close()
	return s.db.Close()
}

// SetPreference stores or overwrites one preference for a user.
func (s *Store) SetPreference(ctx context.Context, userID, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)`,
		userID, key, value, now)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	s.invalidate(userID)
	return nil
}

// GetPreference returns the stored value for key, or fallback when the
// user has no such preference.
func (s *Store) GetPreference(ctx context.Context, userID, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`,
		userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference: %w", err)
	}
	return value, nil
}

// AllPreferences returns every preference for a user.
func (s *Store) AllPreferences(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("list preferences: %w", err)
		}
		prefs[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// AddFact appends a fact and returns its row ID. Confidence values at
// or below zero default to 1.0; an empty source is stored as NULL.
func (s *Store) AddFact(ctx context.Context, userID, factType, content string, confidence float64, source string) (int64, error) {
	if confidence <= 0 {
		confidence = 1.0
	}
	src := sql.NullString{String: source, Valid: source != ""}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (user_id, fact_type, content, confidence, source, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, factType, content, confidence, src, now)
	if err != nil {
		return 0, fmt.Errorf("add fact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add fact: %w", err)
	}
	s.invalidate(userID)
	return id, nil
}

// Facts returns a user's facts, newest first. An empty factType
// matches all types; limit <= 0 means up to 50 rows.
func (s *Store) Facts(ctx context.Context, userID, factType string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, fact_type, content, confidence, source, created_at FROM facts WHERE user_id = ?`
	args := []interface{}{userID}
	if factType != "" {
		query += ` AND fact_type = ?`
		args = append(args, factType)
	}
	// Timestamps have second precision, so break ties by insertion order.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// DeleteFact removes a fact by ID. It reports whether a row existed.
func (s *Store) DeleteFact(ctx context.Context, id int64) (bool, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM facts WHERE id = ? RETURNING user_id`, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete fact: %w", err)
	}
	s.invalidate(userID)
	return true, nil
}

// ClearUser removes all preferences and facts for a user in one
// transaction.
func (s *Store) ClearUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	s.invalidate(userID)
	return nil
}

// UserContext assembles (or returns the cached) long-term snapshot
// for one user: all preferences plus all facts, newest first.
func (s *Store) UserContext(ctx context.Context, userID string) (UserContext, error) {
	if cached, ok := s.cache.Get(userID); ok {
		if uc, ok := cached.(UserContext); ok {
			return uc, nil
		}
	}

	prefs, err := s.AllPreferences(ctx, userID)
	if err != nil {
		return UserContext{}, err
	}
	facts, err := s.Facts(ctx, userID, "", 0)
	if err != nil {
		return UserContext{}, err
	}

	contents := make([]string, len(facts))
	for i, f := range facts {
		contents[i] = f.Content
	}

	uc := UserContext{Preferences: prefs, Facts: contents, FactDetails: facts}
	s.cache.Set(userID, uc, 1)
	return uc, nil
}

// invalidate drops the cached context for a user. Wait flushes the
// cache's buffers so a follow-up Get cannot observe the stale entry.
func (s *Store) invalidate(userID string) {
	s.cache.Del(userID)
	s.cache.Wait()
}

// scanFacts reads fact rows, converting NULL sources and parsing
// stored timestamps.
func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var facts []Fact
	for rows.Next() {
		var (
			f         Fact
			source    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&f.ID, &f.UserID, &f.FactType, &f.Content, &f.Confidence, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("query facts: %w", err)
		}
		f.Source = source.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			f.CreatedAt = t
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	return facts, nil
}
