package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence.
// Counters survive process restarts, which keeps daily and monthly quotas
// honest across deploys. Suitable for single-instance deployments.
//
// Increments are atomic at the SQL level via an upsert, so concurrent
// callers never lose updates.
type SQLiteStore struct {
	db        *sql.DB
	closeOnce sync.Once

	// now is the clock used for expiry checks. Overridable for tests.
	now func() time.Time
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Use ":memory:" for an ephemeral database.
	Path string

	// Now overrides the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS counters (
	key        TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_counters_expires ON counters(expires_at) WHERE expires_at > 0;
`

// NewSQLiteStore opens (creating if necessary) a SQLite-backed counter store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", cfg.Path, err)
	}

	// SQLite only supports a single writer. Pin the pool to one
	// connection so writes serialize instead of racing into
	// SQLITE_BUSY, and so the pragmas below apply to every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL improves concurrent read/write behavior; busy_timeout avoids
	// immediate SQLITE_BUSY under writer contention.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: create schema: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SQLiteStore{db: db, now: now}, nil
}

// Get returns the current value for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.nowMillis(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite store: get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with an optional TTL.
func (s *SQLiteStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.nowMillis() + ttl.Milliseconds()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO counters (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: set %s: %w", key, err)
	}
	return nil
}

// Incr atomically increments key and returns the new value.
// An expired row restarts the counter at 1 and clears its expiry.
func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	nowMs := s.nowMillis()
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO counters (key, value, expires_at) VALUES (?1, 1, 0)
		 ON CONFLICT(key) DO UPDATE SET
			value = CASE WHEN counters.expires_at > 0 AND counters.expires_at <= ?2 THEN 1 ELSE counters.value + 1 END,
			expires_at = CASE WHEN counters.expires_at > 0 AND counters.expires_at <= ?2 THEN 0 ELSE counters.expires_at END
		 RETURNING value`,
		key, nowMs,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: incr %s: %w", key, err)
	}
	return value, nil
}

// Expire sets the TTL for an existing, unexpired key.
func (s *SQLiteStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.nowMillis() + ttl.Milliseconds()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE counters SET expires_at = ? WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		expiresAt, key, s.nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: expire %s: %w", key, err)
	}
	return nil
}

// Del removes a key.
func (s *SQLiteStore) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM counters WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite store: del %s: %w", key, err)
	}
	return nil
}

// Keys returns all live keys matching pattern ('*' wildcard).
func (s *SQLiteStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	like := strings.ReplaceAll(pattern, "*", "%")
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM counters WHERE key LIKE ? AND (expires_at = 0 OR expires_at > ?)`,
		like, s.nowMillis(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: keys %s: %w", pattern, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite store: keys %s: %w", pattern, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Cleanup removes expired rows.
func (s *SQLiteStore) Cleanup(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM counters WHERE expires_at > 0 AND expires_at <= ?`, s.nowMillis(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}
