// Package synclog keeps an append-only record of every sync attempt so
// users can see why a connection last failed and operators can audit
// import volume. Kept on raw database/sql: the table is write-mostly
// and the queries are two fixed statements.
package synclog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one sync attempt for one connection.
type Record struct {
	ID           int64     `json:"id"`
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	Broker       string    `json:"broker"`
	Success      bool      `json:"success"`
	Imported     int       `json:"imported"`
	Skipped      int       `json:"skipped"`
	Errors       []string  `json:"errors,omitempty"`
	DurationMS   int64     `json:"durationMs"`
	StartedAt    time.Time `json:"startedAt"`
}

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sync log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sync_attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	connection_id TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	broker        TEXT NOT NULL,
	success       INTEGER NOT NULL,
	imported      INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	errors_json   TEXT NOT NULL DEFAULT '[]',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	started_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_attempts_connection ON sync_attempts(connection_id, started_at DESC);
`
	_, err := db.Exec(ddl)
	return err
}

// Append records one attempt. Failures here are the caller's to log;
// the sync itself must not fail because its audit write did.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return nil
	}
	errsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		errsJSON = []byte("[]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sync_attempts (connection_id, user_id, broker, success, imported, skipped, errors_json, duration_ms, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ConnectionID, rec.UserID, rec.Broker, boolToInt(rec.Success),
		rec.Imported, rec.Skipped, string(errsJSON), rec.DurationMS, rec.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("append sync attempt: %w", err)
	}
	return nil
}

// History returns the most recent attempts for a connection, newest
// first.
func (s *Store) History(ctx context.Context, connectionID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, connection_id, user_id, broker, success, imported, skipped, errors_json, duration_ms, started_at
FROM sync_attempts
WHERE connection_id = ?
ORDER BY started_at DESC, id DESC
LIMIT ?`, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec      Record
			success  int
			errsJSON string
			started  int64
		)
		if err := rows.Scan(&rec.ID, &rec.ConnectionID, &rec.UserID, &rec.Broker, &success,
			&rec.Imported, &rec.Skipped, &errsJSON, &rec.DurationMS, &started); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		rec.StartedAt = time.Unix(started, 0)
		if errsJSON != "" && errsJSON != "[]" {
			_ = json.Unmarshal([]byte(errsJSON), &rec.Errors)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
