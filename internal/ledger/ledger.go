// Package ledger provides the durable sync bookkeeping database.
//
// Two small tables live here: the per-(host, query-pattern) cursor
// watermarks that make pulls incremental, and the per-host field-alias
// cache the reconciler consults when mapping user-facing field names to
// remote field ids. The database is embedded SQLite with WAL mode so a
// watch process can read while a pull writes.
package ledger

import (
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNoCursor is returned when a pattern has never completed a pull.
var ErrNoCursor = errors.New("no cursor recorded for pattern")

// Ledger wraps the bookkeeping database connection.
type Ledger struct {
	conn *sql.DB
	path string
}

// CursorEntry is one stored watermark, for listings and resets.
type CursorEntry struct {
	Host      string
	Pattern   string
	HighWater time.Time
	UpdatedAt time.Time
}

// PatternHash derives the stable key for a query pattern.
func PatternHash(jql string) string {
	sum := sha1.Sum([]byte(jql))
	return hex.EncodeToString(sum[:])
}

// Open creates the ledger database at the given path, creating parent
// directories and the schema as needed. The caller must Close it.
func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	l := &Ledger{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := l.conn.Exec(pragma); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := l.initSchema(); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// Close checkpoints the WAL and closes the connection.
func (l *Ledger) Close() error {
	if l.conn == nil {
		return nil
	}
	if _, err := l.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	err := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close ledger database: %w", err)
	}
	return nil
}

// initSchema is idempotent, safe to run on every open.
func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cursors (
		host TEXT NOT NULL,
		pattern_hash TEXT NOT NULL,
		jql TEXT NOT NULL,
		high_water TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (host, pattern_hash)
	);

	CREATE TABLE IF NOT EXISTS field_aliases (
		host TEXT NOT NULL,
		alias TEXT NOT NULL,
		field_id TEXT NOT NULL,
		PRIMARY KEY (host, alias)
	);

	CREATE INDEX IF NOT EXISTS idx_cursors_host ON cursors(host);
	`
	if _, err := l.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// Cursor returns the stored watermark for a (host, pattern) pair.
// Returns ErrNoCursor when the pattern has never been pulled.
func (l *Ledger) Cursor(host, jql string) (time.Time, error) {
	var raw string
	err := l.conn.QueryRow(
		"SELECT high_water FROM cursors WHERE host = ? AND pattern_hash = ?",
		host, PatternHash(jql),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNoCursor, jql)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read cursor: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt cursor value %q: %w", raw, err)
	}
	return t, nil
}

// Advance records a new watermark for a (host, pattern) pair. Cursors are
// monotonic: an advance below the stored value is silently ignored, so
// clock skew between pull runs can never regress a cursor.
func (l *Ledger) Advance(host, jql string, highWater time.Time) error {
	existing, err := l.Cursor(host, jql)
	if err != nil && !errors.Is(err, ErrNoCursor) {
		return err
	}
	if err == nil && !highWater.After(existing) {
		return nil
	}

	_, err = l.conn.Exec(`
		INSERT INTO cursors (host, pattern_hash, jql, high_water, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (host, pattern_hash) DO UPDATE SET
			high_water = excluded.high_water,
			updated_at = excluded.updated_at`,
		host, PatternHash(jql), jql,
		highWater.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	return nil
}

// Reset deletes the watermark for one (host, pattern) pair, forcing the
// next pull of that pattern to be a full fetch.
func (l *Ledger) Reset(host, jql string) error {
	if _, err := l.conn.Exec(
		"DELETE FROM cursors WHERE host = ? AND pattern_hash = ?",
		host, PatternHash(jql),
	); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return nil
}

// ResetHost deletes every watermark for a host.
func (l *Ledger) ResetHost(host string) error {
	if _, err := l.conn.Exec("DELETE FROM cursors WHERE host = ?", host); err != nil {
		return fmt.Errorf("failed to reset host cursors: %w", err)
	}
	return nil
}

// List returns every stored cursor, ordered by host then pattern.
func (l *Ledger) List() ([]CursorEntry, error) {
	rows, err := l.conn.Query(
		"SELECT host, jql, high_water, updated_at FROM cursors ORDER BY host, jql")
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	var entries []CursorEntry
	for rows.Next() {
		var e CursorEntry
		var hw, up string
		if err := rows.Scan(&e.Host, &e.Pattern, &hw, &up); err != nil {
			return nil, fmt.Errorf("failed to scan cursor row: %w", err)
		}
		if e.HighWater, err = time.Parse(time.RFC3339Nano, hw); err != nil {
			return nil, fmt.Errorf("corrupt cursor value %q: %w", hw, err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, up); err != nil {
			return nil, fmt.Errorf("corrupt cursor timestamp %q: %w", up, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FieldAlias looks up the remote field id for a user-facing alias.
// The second return is false when the alias is not cached; callers
// pass the alias through unmapped in that case.
func (l *Ledger) FieldAlias(host, alias string) (string, bool, error) {
	var fieldID string
	err := l.conn.QueryRow(
		"SELECT field_id FROM field_aliases WHERE host = ? AND alias = ?",
		host, alias,
	).Scan(&fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read field alias: %w", err)
	}
	return fieldID, true, nil
}

// ReplaceFieldAliases swaps in a freshly fetched alias map for a host.
func (l *Ledger) ReplaceFieldAliases(host string, aliases map[string]string) error {
	tx, err := l.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin alias update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM field_aliases WHERE host = ?", host); err != nil {
		return fmt.Errorf("failed to clear field aliases: %w", err)
	}
	for alias, fieldID := range aliases {
		if _, err := tx.Exec(
			"INSERT INTO field_aliases (host, alias, field_id) VALUES (?, ?, ?)",
			host, alias, fieldID,
		); err != nil {
			return fmt.Errorf("failed to insert field alias %q: %w", alias, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alias update: %w", err)
	}
	return nil
}

// AliasCount returns the number of cached aliases for a host.
func (l *Ledger) AliasCount(host string) (int, error) {
	var n int
	err := l.conn.QueryRow(
		"SELECT COUNT(*) FROM field_aliases WHERE host = ?", host).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count field aliases: %w", err)
	}
	return n, nil
}
