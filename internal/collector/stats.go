package collector

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// StatsDays is the length of the daily activity window.
const StatsDays = 7

// TopCommandsLimit caps Stats.TopCommands.
const TopCommandsLimit = 10

// DayCount is the number of records on one UTC day.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// CommandCount is how often a command string was recorded.
type CommandCount struct {
	Command string `json:"command"`
	Count   int    `json:"count"`
}

// Stats summarizes recent activity.
type Stats struct {
	Total       int            `json:"total"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	Principals  int            `json:"principals"`
	Daily       []DayCount     `json:"daily"`
	TopCommands []CommandCount `json:"top_commands"`
}

// Principal is a chat user seen in forwarded records.
type Principal struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Commands  int       `json:"commands"`
}

// Stats returns totals, per-day counts since midnight UTC StatsDays days
// ago (days without records are omitted), and the most frequent commands
// excluding /start and /help.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Daily: []DayCount{}, TopCommands: []CommandCount{}}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return st, fmt.Errorf("collector: stats: %w", err)
	}
	defer s.pool.Put(conn)

	if st.Total, err = count(conn, "SELECT COUNT(*) FROM command_logs"); err != nil {
		return st, err
	}
	if st.Successful, err = count(conn, "SELECT COUNT(*) FROM command_logs WHERE success = 1"); err != nil {
		return st, err
	}
	st.Failed = st.Total - st.Successful
	if st.Principals, err = count(conn, "SELECT COUNT(*) FROM principals"); err != nil {
		return st, err
	}

	now := s.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -StatsDays)
	err = sqlitex.Execute(conn, `
		SELECT DATE(executed_at) AS day, COUNT(*)
		FROM command_logs
		WHERE executed_at >= ?
		GROUP BY day
		ORDER BY day`,
		&sqlitex.ExecOptions{
			Args: []any{formatTime(cutoff)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st.Daily = append(st.Daily, DayCount{Date: stmt.ColumnText(0), Count: stmt.ColumnInt(1)})
				return nil
			},
		})
	if err != nil {
		return st, fmt.Errorf("collector: daily stats: %w", err)
	}

	err = sqlitex.Execute(conn, `
		SELECT command, COUNT(*) AS n
		FROM command_logs
		WHERE command NOT LIKE '/start%' AND command NOT LIKE '/help%'
		GROUP BY command
		ORDER BY n DESC, command
		LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{TopCommandsLimit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st.TopCommands = append(st.TopCommands, CommandCount{Command: stmt.ColumnText(0), Count: stmt.ColumnInt(1)})
				return nil
			},
		})
	if err != nil {
		return st, fmt.Errorf("collector: top commands: %w", err)
	}
	return st, nil
}

// Principals lists every principal seen, most recently active first.
func (s *Store) Principals(ctx context.Context) ([]Principal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector: principals: %w", err)
	}
	defer s.pool.Put(conn)

	out := []Principal{}
	err = sqlitex.Execute(conn,
		"SELECT id, name, first_seen, last_seen, commands FROM principals ORDER BY last_seen DESC, id",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, Principal{
					ID:        stmt.ColumnInt64(0),
					Name:      stmt.ColumnText(1),
					FirstSeen: parseTime(stmt.ColumnText(2)),
					LastSeen:  parseTime(stmt.ColumnText(3)),
					Commands:  stmt.ColumnInt(4),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("collector: principals: %w", err)
	}
	return out, nil
}
