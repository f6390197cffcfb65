package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cropwise/plantclinic/internal/models"
)

// FileStore keeps one JSON file per session under a directory, with the
// file's mtime as the TTL clock. The default store.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID != filepath.Base(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

// Load reads the session file, treating expired files as absent.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*models.WorkflowState, error) {
	p, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat session file: %w", err)
	}
	if s.now().Sub(info.ModTime()) > TTL {
		slog.Debug("FileStore.Load: session expired", "session_id", sessionID)
		_ = os.Remove(p)
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var state models.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save writes the session atomically (temp file + rename).
func (s *FileStore) Save(ctx context.Context, state *models.WorkflowState) error {
	p, err := s.path(state.SessionID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Delete removes the session file; deleting an absent session is not an
// error.
func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List returns all unexpired sessions in the directory.
func (s *FileStore) List(ctx context.Context) ([]*models.WorkflowState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}
	var states []*models.WorkflowState
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		state, err := s.Load(ctx, id)
		if err != nil {
			// Expired or unreadable entries are skipped, not fatal.
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// Cleanup removes expired session files.
func (s *FileStore) Cleanup(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list session directory: %w", err)
	}
	removed := 0
	cutoff := s.now().Add(-TTL)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		slog.Debug("FileStore.Cleanup: purged expired sessions", "removed", removed)
	}
	return removed, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
