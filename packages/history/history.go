// Package history records pipeline calls in a SQLite database so past
// requests can be listed from the command line.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	kind        TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_created_at ON calls (created_at);
`

// Entry is one recorded call. Kind is empty for successful calls.
type Entry struct {
	ID        int64
	Method    string
	URL       string
	Status    int
	Kind      string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Failed reports whether the call ended in a pipeline error.
func (e Entry) Failed() bool {
	return e.Kind != ""
}

// Store is a pipeline Logger that writes one row per completed call.
// Write failures are reported through slog and never reach the caller.
type Store struct {
	db           *sql.DB
	path         string
	writeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Open opens or creates the history database at path. The path may carry
// a sqlite:// or sqlite: prefix.
func Open(path string) (*Store, error) {
	dsn := parsePath(path)
	if dsn == "" {
		return nil, fmt.Errorf("history path is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{
		db:           db,
		path:         dsn,
		writeTimeout: 5 * time.Second,
		logger:       slog.Default().With("subsystem", "history"),
		now:          time.Now,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) LogRequest(context.Context, http.RequestEvent) {}

func (s *Store) LogResponse(ctx context.Context, e http.ResponseEvent) {
	s.insert(ctx, Entry{
		Method:   e.Method,
		URL:      e.URL,
		Status:   e.StatusCode,
		Duration: e.Duration,
	})
}

func (s *Store) LogFailure(ctx context.Context, e http.FailureEvent) {
	entry := Entry{
		Method:   e.Method,
		URL:      e.URL,
		Status:   e.StatusCode,
		Kind:     e.Kind.String(),
		Duration: e.Duration,
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}
	s.insert(ctx, entry)
}

// Record writes an entry directly.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	// The call's own context may already be done when a failure is logged.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (method, url, status, kind, error, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Method, e.URL, e.Status, e.Kind, e.Error, e.Duration.Milliseconds(), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}
	return nil
}

func (s *Store) insert(ctx context.Context, e Entry) {
	if err := s.Record(ctx, e); err != nil {
		s.logger.Warn("history write failed", "error", err)
	}
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, url, status, kind, error, duration_ms, created_at FROM calls ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e         Entry
			durMs     int64
			createdMs int64
		)
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &e.Status, &e.Kind, &e.Error, &durMs, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdMs)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Stats summarises the stored calls by outcome kind. Successful calls are
// counted under "ok".
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM calls GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if kind == "" {
			kind = "ok"
		}
		stats[kind] = count
	}
	return stats, rows.Err()
}

func parsePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	return strings.TrimPrefix(path, "sqlite:")
}
