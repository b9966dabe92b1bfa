// Package localstore persists the query cache snapshot and UI preferences in a
// local SQLite file.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tarcizioo/portal-animes-V2-sub001/querycache"
)

// SnapshotMaxAge is how long a persisted cache entry stays usable
const SnapshotMaxAge = 24 * time.Hour

const prefsKey = "ui"

// Prefs are the persisted UI preferences
type Prefs struct {
	Theme            string   `json:"theme"`
	SidebarCollapsed bool     `json:"sidebarCollapsed"`
	KnownBadges      []string `json:"knownBadges"`
}

// Store wraps *sql.DB backed by modernc.org/sqlite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and migrates it. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
            key TEXT PRIMARY KEY,
            body BLOB NOT NULL,
            fetched_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS prefs (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// SaveSnapshot replaces the persisted cache with entries
func (s *Store) SaveSnapshot(ctx context.Context, entries []querycache.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `INSERT INTO cache_entries(key, body, fetched_at) VALUES(?,?,?)
            ON CONFLICT(key) DO UPDATE SET body=excluded.body, fetched_at=excluded.fetched_at`,
			e.Key, e.Body, e.FetchedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert cache entry %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns persisted entries younger than maxAge, oldest first,
// and deletes the expired rows
func (s *Store) LoadSnapshot(ctx context.Context, maxAge time.Duration) ([]querycache.Entry, error) {
	cutoff := s.now().Add(-maxAge).UnixNano()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fetched_at <= ?`, cutoff); err != nil {
		return nil, fmt.Errorf("expire cache entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, body, fetched_at FROM cache_entries ORDER BY fetched_at`)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	var out []querycache.Entry
	for rows.Next() {
		var e querycache.Entry
		var fetchedAt int64
		if err := rows.Scan(&e.Key, &e.Body, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.FetchedAt = time.Unix(0, fetchedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return out, nil
}

// ClearSnapshot deletes every persisted cache entry
func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	return nil
}

// Prefs returns the stored preferences, or defaults when none are saved
func (s *Store) Prefs(ctx context.Context) (Prefs, error) {
	p := Prefs{Theme: "dark"}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, prefsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("query prefs: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, fmt.Errorf("decode prefs: %w", err)
	}
	return p, nil
}

// SavePrefs stores p
func (s *Store) SavePrefs(ctx context.Context, p Prefs) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO prefs(key, value) VALUES(?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`, prefsKey, string(raw))
	if err != nil {
		return fmt.Errorf("upsert prefs: %w", err)
	}
	return nil
}

// MarkBadgesKnown adds ids to the known badge set and returns the ids that
// were not known before
func (s *Store) MarkBadgesKnown(ctx context.Context, ids []string) ([]string, error) {
	p, err := s.Prefs(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(p.KnownBadges))
	for _, id := range p.KnownBadges {
		known[id] = struct{}{}
	}

	var added []string
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil, nil
	}

	p.KnownBadges = p.KnownBadges[:0]
	for id := range known {
		p.KnownBadges = append(p.KnownBadges, id)
	}
	sort.Strings(p.KnownBadges)

	if err := s.SavePrefs(ctx, p); err != nil {
		return nil, err
	}
	return added, nil
}
