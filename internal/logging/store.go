package logging

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS predictor_trace (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	predictor   TEXT,
	level       TEXT NOT NULL,
	message     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trace_session ON predictor_trace(session_id);
`

// #endregion schema

// #region types
// TraceEntry is a single row in the predictor_trace table.
type TraceEntry struct {
	SessionID string
	Sequence  int
	Predictor string
	Level     string
	Message   string
	CreatedAt time.Time
}

// TraceStore persists predictor log events in SQLite.
type TraceStore struct {
	db *sql.DB
}

// #endregion types

// #region constructor
// OpenTrace opens (or creates) a trace database at path.
func OpenTrace(path string) (*TraceStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	return NewTraceStore(db)
}

// NewTraceStore runs migrations on an existing connection.
func NewTraceStore(db *sql.DB) (*TraceStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("trace schema: %w", err)
	}
	return &TraceStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *TraceStore) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region append
// Append writes one trace row.
func (s *TraceStore) Append(e TraceEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO predictor_trace (session_id, sequence, predictor, level, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Sequence, nullIfEmpty(e.Predictor), e.Level, e.Message,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append trace: %w", err)
	}
	return nil
}

// #endregion append

// #region recent
// Recent returns the most recent trace rows, newest first.
func (s *TraceStore) Recent(limit int) ([]TraceEntry, error) {
	rows, err := s.db.Query(
		`SELECT session_id, sequence, predictor, level, message, created_at
		 FROM predictor_trace ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list trace: %w", err)
	}
	defer rows.Close()

	var entries []TraceEntry
	for rows.Next() {
		var e TraceEntry
		var predictor sql.NullString
		var createdStr string
		if err := rows.Scan(&e.SessionID, &e.Sequence, &predictor, &e.Level, &e.Message, &createdStr); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		if predictor.Valid {
			e.Predictor = predictor.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
