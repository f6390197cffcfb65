package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cropwise/plantclinic/internal/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStoreRoundtrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	state := models.NewWorkflowState("abc123", "hello", "img", models.UserContext{PlantType: "tomato"})
	state.ClassificationResults = &models.ClassificationResult{DiseaseName: "early_blight", Confidence: 0.9}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SessionID != "abc123" || loaded.UserImage != "img" {
		t.Errorf("roundtrip mismatch: %+v", loaded)
	}
	if loaded.ClassificationResults == nil || loaded.ClassificationResults.DiseaseName != "early_blight" {
		t.Errorf("nested payload lost: %+v", loaded.ClassificationResults)
	}
	if loaded.TranscriptLen() != 1 {
		t.Errorf("transcript lost: %d entries", loaded.TranscriptLen())
	}
}

func TestFileStoreMissingSession(t *testing.T) {
	store := newTestFileStore(t)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	store := newTestFileStore(t)
	if _, err := store.Load(context.Background(), "../etc/passwd"); errors.Is(err, ErrNotFound) || err == nil {
		t.Errorf("expected a validation error for traversal ids, got %v", err)
	}
}

func TestFileStoreTTLExpiry(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	state := models.NewWorkflowState("old-session", "hello", "", models.UserContext{})
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	store.now = func() time.Time { return time.Now().Add(TTL + time.Hour) }
	if _, err := store.Load(ctx, "old-session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session must behave as absent, got %v", err)
	}
}

func TestFileStoreCleanup(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Save(ctx, models.NewWorkflowState(id, "hi", "", models.UserContext{})); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	store.now = func() time.Time { return time.Now().Add(TTL + time.Hour) }
	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}
	states, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("expected empty store after cleanup, got %d", len(states))
	}
}

func TestManagerGetOrCreateIdempotent(t *testing.T) {
	m := NewManager(newTestFileStore(t))
	ctx := context.Background()

	state, err := m.GetOrCreate(ctx, "s1", "first message", "", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := m.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Same (session, message) pair again: no duplicate transcript entry.
	again, err := m.GetOrCreate(ctx, "s1", "first message", "", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.TranscriptLen() != 1 {
		t.Errorf("expected 1 transcript entry, got %d", again.TranscriptLen())
	}
}

func TestManagerStickyImage(t *testing.T) {
	m := NewManager(newTestFileStore(t))
	ctx := context.Background()

	state, err := m.GetOrCreate(ctx, "s1", "here's my plant", "image-x", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := m.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	next, err := m.GetOrCreate(ctx, "s1", "any update?", "", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if next.UserImage != "image-x" {
		t.Errorf("image must stick across turns, got %q", next.UserImage)
	}

	replaced, err := m.GetOrCreate(ctx, "s1", "fresh photo", "image-y", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if replaced.UserImage != "image-y" {
		t.Errorf("new image must replace the sticky one, got %q", replaced.UserImage)
	}
}

func TestManagerCallerContextWins(t *testing.T) {
	m := NewManager(newTestFileStore(t))
	ctx := context.Background()

	state, err := m.GetOrCreate(ctx, "s1", "hello", "", &models.UserContext{PlantType: "rose"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	state.UserContext.Location = "inferred-town"
	if err := m.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	next, err := m.GetOrCreate(ctx, "s1", "update", "", &models.UserContext{PlantType: "tomato"})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if next.UserContext.PlantType != "tomato" {
		t.Errorf("caller context must override, got %q", next.UserContext.PlantType)
	}
	if next.UserContext.Location != "inferred-town" {
		t.Errorf("absent caller fields must not clobber stored values, got %q", next.UserContext.Location)
	}
}

func TestManagerAppendsNewTurn(t *testing.T) {
	m := NewManager(newTestFileStore(t))
	ctx := context.Background()

	state, _ := m.GetOrCreate(ctx, "s1", "turn one", "", nil)
	state.AddMessage(models.RoleAssistant, "reply one")
	if err := m.Save(ctx, state); err != nil {
		t.Fatalf("Save: %v", err)
	}

	next, err := m.GetOrCreate(ctx, "s1", "turn two", "", nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if next.TranscriptLen() != 3 {
		t.Errorf("expected 3 transcript entries, got %d", next.TranscriptLen())
	}
	if next.RequiresUserInput {
		t.Errorf("a new turn must clear requires_user_input")
	}
}

func TestManagerStats(t *testing.T) {
	m := NewManager(newTestFileStore(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		s := models.NewWorkflowState(id, "hi", "", models.UserContext{})
		s.CurrentNode = models.NodeFollowup
		if err := m.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ActiveSessions != 2 || stats.NodeDistribution[models.NodeFollowup] != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManagerLockSerializesAccess(t *testing.T) {
	m := NewManager(newTestFileStore(t))

	unlock := m.Lock("s1")
	done := make(chan struct{})
	go func() {
		u := m.Lock("s1")
		u()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}
