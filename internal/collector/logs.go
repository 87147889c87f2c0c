package collector

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Log is one stored audit record.
type Log struct {
	ID            int64     `json:"id"`
	EntryID       string    `json:"entry_id,omitempty"`
	Event         string    `json:"event,omitempty"`
	PrincipalID   int64     `json:"principal_id"`
	PrincipalName string    `json:"principal_name,omitempty"`
	Command       string    `json:"command"`
	Output        string    `json:"output"`
	Success       bool      `json:"success"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// Page is one page of List results, newest first.
type Page struct {
	Logs       []Log `json:"logs"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int   `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Insert stores l and updates its principal's last-seen time. A zero
// ExecutedAt is stamped with the current time. Records whose EntryID was
// already stored are not duplicated; the existing ID is returned.
func (s *Store) Insert(ctx context.Context, l Log) (id int64, err error) {
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = s.now()
	}
	at := formatTime(l.ExecutedAt)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("collector: insert: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("collector: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT OR IGNORE INTO command_logs
			(entry_id, event, principal_id, principal_name, command, output, success, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{l.EntryID, l.Event, l.PrincipalID, l.PrincipalName, l.Command, l.Output, l.Success, at},
		})
	if err != nil {
		return 0, fmt.Errorf("collector: insert log: %w", err)
	}

	if conn.Changes() == 0 {
		err = sqlitex.Execute(conn, "SELECT id FROM command_logs WHERE entry_id = ?", &sqlitex.ExecOptions{
			Args: []any{l.EntryID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				return nil
			},
		})
		if err != nil {
			return 0, fmt.Errorf("collector: find duplicate: %w", err)
		}
		return id, nil
	}
	id = conn.LastInsertRowID()

	err = sqlitex.Execute(conn, `
		INSERT INTO principals (id, name, first_seen, last_seen, commands)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE name END,
			last_seen = MAX(last_seen, excluded.last_seen),
			commands = commands + 1`,
		&sqlitex.ExecOptions{
			Args: []any{l.PrincipalID, l.PrincipalName, at, at},
		})
	if err != nil {
		return 0, fmt.Errorf("collector: update principal: %w", err)
	}
	return id, nil
}

const logColumns = "id, entry_id, event, principal_id, principal_name, command, output, success, executed_at"

func scanLog(stmt *sqlite.Stmt) Log {
	return Log{
		ID:            stmt.ColumnInt64(0),
		EntryID:       stmt.ColumnText(1),
		Event:         stmt.ColumnText(2),
		PrincipalID:   stmt.ColumnInt64(3),
		PrincipalName: stmt.ColumnText(4),
		Command:       stmt.ColumnText(5),
		Output:        stmt.ColumnText(6),
		Success:       stmt.ColumnBool(7),
		ExecutedAt:    parseTime(stmt.ColumnText(8)),
	}
}

// List returns page n (1-based) of records, newest first. Pages below 1
// are treated as 1.
func (s *Store) List(ctx context.Context, n int) (Page, error) {
	if n < 1 {
		n = 1
	}
	page := Page{Logs: []Log{}, Page: n, PerPage: PageSize}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return page, fmt.Errorf("collector: list: %w", err)
	}
	defer s.pool.Put(conn)

	total, err := count(conn, "SELECT COUNT(*) FROM command_logs")
	if err != nil {
		return page, err
	}
	page.Total = total
	page.TotalPages = (total + PageSize - 1) / PageSize

	err = sqlitex.Execute(conn,
		"SELECT "+logColumns+" FROM command_logs ORDER BY executed_at DESC, id DESC LIMIT ? OFFSET ?",
		&sqlitex.ExecOptions{
			Args: []any{PageSize, (n - 1) * PageSize},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				page.Logs = append(page.Logs, scanLog(stmt))
				return nil
			},
		})
	if err != nil {
		return page, fmt.Errorf("collector: list: %w", err)
	}
	return page, nil
}

// Get returns the record with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Log, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Log{}, fmt.Errorf("collector: get: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		l     Log
		found bool
	)
	err = sqlitex.Execute(conn, "SELECT "+logColumns+" FROM command_logs WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			l = scanLog(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Log{}, fmt.Errorf("collector: get %d: %w", id, err)
	}
	if !found {
		return Log{}, fmt.Errorf("log %d: %w", id, ErrNotFound)
	}
	return l, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("collector: count: %w", err)
	}
	defer s.pool.Put(conn)
	return count(conn, "SELECT COUNT(*) FROM command_logs")
}

func count(conn *sqlite.Conn, query string, args ...any) (int, error) {
	var n int
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("collector: %s: %w", query, err)
	}
	return n, nil
}
