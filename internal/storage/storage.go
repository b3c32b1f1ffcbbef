package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     2,
		Description: "create passes table",
		SQL: `
CREATE TABLE passes (
    id          INTEGER PRIMARY KEY,
    pass_id     TEXT UNIQUE NOT NULL,
    source      TEXT NOT NULL,
    window_id   INTEGER NOT NULL,
    tab_count   INTEGER NOT NULL DEFAULT 0,
    group_count INTEGER NOT NULL DEFAULT 0,
    closed      INTEGER NOT NULL DEFAULT 0,
    failures    INTEGER NOT NULL DEFAULT 0,
    started_at  DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_passes_started ON passes(started_at);`,
	},
}

// OpenDB opens (or creates) a SQLite database at the given path.
// It creates parent directories if needed, enables foreign keys and WAL mode,
// and runs any pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// The popup and the daemon may write concurrently.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and applies any
// pending migrations in order.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/tabheinzel/tabheinzel.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabheinzel", "tabheinzel.db"), nil
}

// KV is a string-list key-value store backed by the kv table. Values are
// stored as JSON arrays; Set replaces the value wholesale.
type KV struct {
	db *sql.DB
}

// NewKV wraps db.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Strings returns the list stored under key, or an empty list if unset.
func (s *KV) Strings(ctx context.Context, key string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query key %q: %w", key, err)
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode key %q: %w", key, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// SetStrings replaces the list stored under key.
func (s *KV) SetStrings(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode key %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("store key %q: %w", key, err)
	}
	return nil
}

// Pass is one recorded reorganization pass.
type Pass struct {
	ID        int64
	PassID    string
	Trigger   string // "debounce", "manual"
	WindowID  int
	Tabs      int
	Groups    int
	Closed    int
	Failures  int
	StartedAt time.Time
	Duration  time.Duration
}

// RecordPass inserts a pass into the history.
func RecordPass(ctx context.Context, db *sql.DB, p Pass) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO passes (pass_id, source, window_id, tab_count, group_count, closed, failures, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PassID, p.Trigger, p.WindowID, p.Tabs, p.Groups, p.Closed, p.Failures,
		p.StartedAt.UTC(), p.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

// ListPasses returns the most recent passes, newest first. limit <= 0
// returns all passes.
func ListPasses(ctx context.Context, db *sql.DB, limit int) ([]Pass, error) {
	query := `SELECT id, pass_id, source, window_id, tab_count, group_count, closed, failures, started_at, duration_ms
		FROM passes ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var result []Pass
	for rows.Next() {
		var p Pass
		var ms int64
		if err := rows.Scan(&p.ID, &p.PassID, &p.Trigger, &p.WindowID, &p.Tabs, &p.Groups,
			&p.Closed, &p.Failures, &p.StartedAt, &ms); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.Duration = time.Duration(ms) * time.Millisecond
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return result, nil
}

// History records passes into db.
type History struct {
	db *sql.DB
}

// NewHistory wraps db.
func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// RecordPass implements the organizer's recorder.
func (h *History) RecordPass(ctx context.Context, p Pass) error {
	return RecordPass(ctx, h.db, p)
}
