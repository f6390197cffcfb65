package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/cropwise/plantclinic/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// PostgresStore persists sessions in Postgres, one JSONB row per session
// with an updated_at column driving the TTL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	slog.Debug("NewPostgresStore: store ready")
	return &PostgresStore{db: db, now: time.Now}, nil
}

// Load reads the session row, treating expired rows as absent.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*models.WorkflowState, error) {
	var blob []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT state, updated_at FROM sessions WHERE session_id = $1", sessionID,
	).Scan(&blob, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if s.now().Sub(updatedAt) > TTL {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = $1", sessionID)
		return nil, ErrNotFound
	}

	var state models.WorkflowState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save upserts the session row.
func (s *PostgresStore) Save(ctx context.Context, state *models.WorkflowState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, state, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		state.SessionID, blob, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

// Delete removes the session row.
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = $1", sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List returns all unexpired sessions.
func (s *PostgresStore) List(ctx context.Context) ([]*models.WorkflowState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT state FROM sessions WHERE updated_at >= $1", s.now().UTC().Add(-TTL))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var states []*models.WorkflowState
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var state models.WorkflowState
		if err := json.Unmarshal(blob, &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// Cleanup deletes expired rows.
func (s *PostgresStore) Cleanup(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE updated_at < $1", s.now().UTC().Add(-TTL))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database.
func (s *PostgresStore) Close() error { return s.db.Close() }
