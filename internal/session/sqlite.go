package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cropwise/plantclinic/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// SQLiteStore persists sessions in a local SQLite database, one JSON blob
// per session with an updated_at column driving the TTL.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	slog.Debug("NewSQLiteStore: store ready", "dsn", dsn)
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Load reads the session row, treating expired rows as absent.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*models.WorkflowState, error) {
	var blob string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT state, updated_at FROM sessions WHERE session_id = ?", sessionID,
	).Scan(&blob, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if s.now().Sub(updatedAt) > TTL {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID)
		return nil, ErrNotFound
	}

	var state models.WorkflowState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save upserts the session row.
func (s *SQLiteStore) Save(ctx context.Context, state *models.WorkflowState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		state.SessionID, string(blob), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

// Delete removes the session row.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List returns all unexpired sessions.
func (s *SQLiteStore) List(ctx context.Context) ([]*models.WorkflowState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT state FROM sessions WHERE updated_at >= ?", s.now().UTC().Add(-TTL))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var states []*models.WorkflowState
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var state models.WorkflowState
		if err := json.Unmarshal([]byte(blob), &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// Cleanup deletes expired rows.
func (s *SQLiteStore) Cleanup(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE updated_at < ?", s.now().UTC().Add(-TTL))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
