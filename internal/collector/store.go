// Package collector stores audit records forwarded by workers and answers
// the console's log and statistics queries.
//
// Records live in a single SQLite database accessed through a connection
// pool. Timestamps are stored as UTC "YYYY-MM-DD HH:MM:SS" text so SQLite's
// date functions can group them.
package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/xdg/telecommand/internal/clog"
)

// PageSize is the number of records per List page.
const PageSize = 50

const timeLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned by Get for an unknown record ID.
var ErrNotFound = errors.New("log record not found")

// Options configures Open.
type Options struct {
	Path     string
	PoolSize int              // zero picks a default from the CPU count
	Now      func() time.Time // for tests; defaults to time.Now
}

// Store is a pooled SQLite audit store. It is safe for concurrent use.
type Store struct {
	pool *sqlitex.Pool
	path string
	now  func() time.Time
}

// Open opens or creates the database at opts.Path and applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("collector: database path is required")
	}
	size := opts.PoolSize
	if size <= 0 {
		size = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(opts.Path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("collector: opening %s: %w", opts.Path, err)
	}

	s := &Store{pool: pool, path: opts.Path, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	clog.Debug("collector: opened %s (pool size %d)", opts.Path, size)
	return s, nil
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("collector: closing %s: %w", s.path, err)
	}
	return nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("collector: %s: %w", pragma, err)
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS command_logs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id       TEXT NOT NULL DEFAULT '',
	event          TEXT NOT NULL DEFAULT '',
	principal_id   INTEGER NOT NULL,
	principal_name TEXT NOT NULL DEFAULT '',
	command        TEXT NOT NULL,
	output         TEXT NOT NULL DEFAULT '',
	success        INTEGER NOT NULL DEFAULT 0,
	executed_at    TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS command_logs_entry_id
	ON command_logs (entry_id) WHERE entry_id <> '';
CREATE INDEX IF NOT EXISTS command_logs_executed_at
	ON command_logs (executed_at);

CREATE TABLE IF NOT EXISTS principals (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	first_seen TEXT NOT NULL,
	last_seen  TEXT NOT NULL,
	commands   INTEGER NOT NULL DEFAULT 0
);
`

func (s *Store) migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("collector: migrate: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("collector: applying schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		clog.Debug("collector: bad timestamp %q: %v", s, err)
		return time.Time{}
	}
	return t
}
