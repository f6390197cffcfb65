// Package session provides durable per-session workflow state: a Store
// interface with file, SQLite, Postgres, and Redis backends, and a Manager
// that layers the get-or-create merge rules and per-session serialization
// on top.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cropwise/plantclinic/internal/metrics"
	"github.com/cropwise/plantclinic/internal/models"
)

// TTL is the session inactivity window. Entries older than this are treated
// as absent and purged.
const TTL = 24 * time.Hour

// ErrNotFound is returned by Load when no live session exists for the id.
var ErrNotFound = errors.New("session not found")

// Store persists workflow state keyed by session id. Expired entries behave
// as absent.
type Store interface {
	Load(ctx context.Context, sessionID string) (*models.WorkflowState, error)
	Save(ctx context.Context, state *models.WorkflowState) error
	Delete(ctx context.Context, sessionID string) error
	// List returns all live sessions. Used for stats and inspection.
	List(ctx context.Context) ([]*models.WorkflowState, error)
	// Cleanup purges expired entries and reports how many were removed.
	// Backends with native expiry may report zero.
	Cleanup(ctx context.Context) (int, error)
	Close() error
}

// Manager wraps a Store with the per-turn merge rules and the per-session
// mutual exclusion that keeps concurrent requests for one session from
// producing lost updates.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a session manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the session's mutex and returns the release func. Callers
// hold it across the whole load→run→save cycle.
func (m *Manager) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// GetOrCreate loads the session or creates a fresh one, applying the
// per-turn merge rules: the new message is appended exactly once, a new
// image replaces the sticky one while absence keeps it, and caller-supplied
// context overrides inferred values. An empty sessionID gets a generated id.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, message, image string, userCtx *models.UserContext) (*models.WorkflowState, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	metrics.SessionOps.WithLabelValues("get_or_create").Inc()

	state, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		var uc models.UserContext
		if userCtx != nil {
			uc = *userCtx
		}
		slog.Debug("Manager.GetOrCreate: creating session", "session_id", sessionID)
		return models.NewWorkflowState(sessionID, message, image, uc), nil
	}
	if err != nil {
		return nil, err
	}

	if message != "" {
		state.UserMessage = message
		if !lastUserMessageIs(state, message) {
			state.AddMessage(models.RoleUser, message)
		}
	}
	if image != "" {
		state.UserImage = image
	}
	if userCtx != nil {
		state.UserContext.Override(*userCtx)
	}
	state.RequiresUserInput = false
	state.AssistantResponse = ""
	slog.Debug("Manager.GetOrCreate: resuming session", "session_id", sessionID, "current_node", state.CurrentNode)
	return state, nil
}

// Get loads a live session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.WorkflowState, error) {
	metrics.SessionOps.WithLabelValues("load").Inc()
	return m.store.Load(ctx, sessionID)
}

// Save persists the session.
func (m *Manager) Save(ctx context.Context, state *models.WorkflowState) error {
	metrics.SessionOps.WithLabelValues("save").Inc()
	return m.store.Save(ctx, state)
}

// Delete removes the session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	metrics.SessionOps.WithLabelValues("delete").Inc()
	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
	return m.store.Delete(ctx, sessionID)
}

// Cleanup purges expired sessions.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	metrics.SessionOps.WithLabelValues("cleanup").Inc()
	return m.store.Cleanup(ctx)
}

// Stats summarizes the live session population.
func (m *Manager) Stats(ctx context.Context) (*models.StatsResponse, error) {
	states, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.StatsResponse{
		ActiveSessions:   len(states),
		NodeDistribution: make(map[string]int),
	}
	for _, s := range states {
		stats.NodeDistribution[s.CurrentNode]++
	}
	metrics.ActiveSessions.Set(float64(len(states)))
	return stats, nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// lastUserMessageIs reports whether the most recent transcript entry is the
// given user message. Guards GetOrCreate idempotence.
func lastUserMessageIs(state *models.WorkflowState, message string) bool {
	if len(state.Messages) == 0 {
		return false
	}
	last := state.Messages[len(state.Messages)-1]
	return last.Role == models.RoleUser && last.Content == message
}
