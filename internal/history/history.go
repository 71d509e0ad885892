// Package history keeps a SQLite journal of update cycles so that past
// outcomes can be listed with --history.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	// FileName is the journal database file name.
	FileName = "history.db"
	// DirName is the directory under the user config dir holding the journal.
	DirName = "ffxiv-gametime"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id       TEXT NOT NULL UNIQUE,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	local_version  TEXT NOT NULL DEFAULT '',
	remote_version TEXT NOT NULL DEFAULT '',
	outcome        TEXT NOT NULL,
	updated        INTEGER NOT NULL DEFAULT 0,
	launched       INTEGER NOT NULL DEFAULT 0,
	exit_code      INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT ''
)`

// Entry is one recorded update cycle.
type Entry struct {
	CycleID       string
	StartedAt     time.Time
	FinishedAt    time.Time
	LocalVersion  string
	RemoteVersion string
	Outcome       string
	Updated       bool
	Launched      bool
	ExitCode      int
	Error         string
}

// Duration is how long the cycle took, launch wait included.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal is an open history database.
type Journal struct {
	db   *sql.DB
	path string
}

// DefaultPath returns <UserConfigDir>/ffxiv-gametime/history.db.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

// buildDSN creates a read-write DSN with a busy timeout for the given path.
// A drive-letter path gets a leading slash so it stays out of the URI authority.
func buildDSN(dbPath string) string {
	p := filepath.ToSlash(dbPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme: "file",
		Path:   p,
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	trimmed, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	//nolint:gosec // G301: user data directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", buildDSN(trimmed))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Journal{db: db, path: trimmed}, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Record appends one cycle.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles (
			cycle_id, started_at, finished_at, local_version, remote_version,
			outcome, updated, launched, exit_code, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CycleID,
		e.StartedAt.UTC().Format(timeLayout),
		e.FinishedAt.UTC().Format(timeLayout),
		e.LocalVersion,
		e.RemoteVersion,
		e.Outcome,
		boolToInt(e.Updated),
		boolToInt(e.Launched),
		e.ExitCode,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("record cycle %s: %w", e.CycleID, err)
	}
	return nil
}

// Recent returns up to n cycles, newest first. n <= 0 returns all of them.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	query := `
		SELECT cycle_id, started_at, finished_at, local_version, remote_version,
		       outcome, updated, launched, exit_code, error
		FROM cycles
		ORDER BY id DESC`
	var args []any
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
			updated, launched int
		)
		if err := rows.Scan(
			&e.CycleID, &started, &finished, &e.LocalVersion, &e.RemoteVersion,
			&e.Outcome, &updated, &launched, &e.ExitCode, &e.Error,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		e.StartedAt = parseTime(started)
		e.FinishedAt = parseTime(finished)
		e.Updated = updated != 0
		e.Launched = launched != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
