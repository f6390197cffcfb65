package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/session"
	"github.com/cropwise/plantclinic/internal/tools"
	"github.com/cropwise/plantclinic/internal/workflow"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, in tools.ClassifyInput) (*models.ClassificationResult, error) {
	return &models.ClassificationResult{DiseaseName: "early_blight", Confidence: 0.91, AttentionOverlay: "overlay-bytes"}, nil
}

type stubPrescriber struct{}

func (stubPrescriber) Prescribe(ctx context.Context, in tools.PrescribeInput) (*models.PrescriptionData, error) {
	return &models.PrescriptionData{Treatments: []models.Treatment{{Name: "Copper fungicide", Dosage: "2g per litre"}}}, nil
}

type stubIntent struct{ intent models.UserIntent }

func (s stubIntent) Analyze(ctx context.Context, userMessage string) (*models.UserIntent, error) {
	intent := s.intent
	return &intent, nil
}

type stubContext struct{}

func (stubContext) Extract(ctx context.Context, userMessage string) (models.UserContext, error) {
	return models.UserContext{}, nil
}

type stubFollowup struct{}

func (stubFollowup) AnalyzeFollowup(ctx context.Context, fc tools.FollowupContext) (*models.FollowupIntent, error) {
	return tools.FallbackFollowup(fc), nil
}

type stubGoodbye struct{}

func (stubGoodbye) IsGoodbye(ctx context.Context, userMessage string) bool {
	return tools.FallbackGoodbye(userMessage)
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	manager := session.NewManager(store)
	ts := tools.Toolset{
		Classifier: stubClassifier{},
		Prescriber: stubPrescriber{},
		Vendors:    tools.NewCatalogVendorLocator(),
		Context:    stubContext{},
		Intent:     stubIntent{intent: models.UserIntent{WantsClassification: true}},
		Followup:   stubFollowup{},
		Goodbye:    stubGoodbye{},
	}
	engine := workflow.NewEngine(ts, workflow.WithPersistence(manager.Save))
	srv := NewServer(manager, engine)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return hs, manager
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	blob, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestChatEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)

	resp := postJSON(t, hs.URL+"/api/v1/chat", models.ChatRequest{
		Message:  "What's wrong with my plant?",
		ImageB64: "img-bytes",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var chat models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !chat.Success || chat.SessionID == "" {
		t.Fatalf("unexpected response: %+v", chat)
	}
	if chat.ClassificationResults == nil || chat.ClassificationResults.DiseaseName != "early_blight" {
		t.Errorf("expected classification in response, got %+v", chat.ClassificationResults)
	}
	if chat.State != models.NodeCompleted {
		t.Errorf("expected completed state, got %q", chat.State)
	}
}

func TestChatEndpointRejectsEmptyRequest(t *testing.T) {
	hs, _ := newTestServer(t)
	resp := postJSON(t, hs.URL+"/api/v1/chat", models.ChatRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSessionInspectionEndpoints(t *testing.T) {
	hs, _ := newTestServer(t)

	resp := postJSON(t, hs.URL+"/api/v1/chat", models.ChatRequest{
		SessionID: "inspect-me",
		Message:   "diagnose this plant",
		ImageB64:  "img-bytes",
	})
	resp.Body.Close()

	get := func(path string) (*http.Response, models.APIResponse) {
		t.Helper()
		r, err := http.Get(hs.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var env models.APIResponse
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		r.Body.Close()
		return r, env
	}

	r, env := get("/api/v1/session/inspect-me")
	if r.StatusCode != http.StatusOK || env.Status != models.APIStatusOK {
		t.Fatalf("session info failed: %d %+v", r.StatusCode, env)
	}
	info, _ := env.Result.(map[string]any)
	if info["session_id"] != "inspect-me" || info["has_classification"] != true {
		t.Errorf("unexpected session info: %v", env.Result)
	}

	r, _ = get("/api/v1/session/inspect-me/history")
	if r.StatusCode != http.StatusOK {
		t.Errorf("history failed: %d", r.StatusCode)
	}
	r, env = get("/api/v1/session/inspect-me/classification")
	if r.StatusCode != http.StatusOK {
		t.Errorf("classification failed: %d", r.StatusCode)
	}
	if cr, _ := env.Result.(map[string]any); cr["attention_overlay"] != "overlay-bytes" {
		t.Errorf("overlay must be retrievable from the classification endpoint, got %v", env.Result)
	}

	r, _ = get("/api/v1/session/ghost")
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", r.StatusCode)
	}
}

func TestSessionDeleteEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)

	resp := postJSON(t, hs.URL+"/api/v1/chat", models.ChatRequest{
		SessionID: "doomed",
		Message:   "diagnose this",
		ImageB64:  "img-bytes",
	})
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, hs.URL+"/api/v1/session/doomed", nil)
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("delete failed: %d", r.StatusCode)
	}

	r, err = http.Get(hs.URL + "/api/v1/session/doomed")
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", r.StatusCode)
	}
}

func TestStatsAndCleanupEndpoints(t *testing.T) {
	hs, _ := newTestServer(t)

	resp := postJSON(t, hs.URL+"/api/v1/chat", models.ChatRequest{
		SessionID: "stat-me",
		Message:   "diagnose this",
		ImageB64:  "img-bytes",
	})
	resp.Body.Close()

	r, err := http.Get(hs.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	var env models.APIResponse
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	r.Body.Close()
	stats, _ := env.Result.(map[string]any)
	if stats["active_sessions"] != float64(1) {
		t.Errorf("expected 1 active session, got %v", env.Result)
	}

	resp = postJSON(t, hs.URL+"/api/v1/cleanup", struct{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cleanup failed: %d", resp.StatusCode)
	}
}

func TestChatStreamEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)

	resp := postJSON(t, hs.URL+"/api/v1/chat-stream", models.ChatRequest{
		Message:  "What's wrong with my plant?",
		ImageB64: "img-bytes",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var events []models.StreamEvent
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev models.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, ev)
	}

	if len(events) < 3 {
		t.Fatalf("expected session_start, state updates and done, got %d events", len(events))
	}
	if events[0].Type != models.StreamEventSessionStart {
		t.Errorf("first event must be session_start, got %q", events[0].Type)
	}
	if events[len(events)-1].Type != models.StreamEventDone {
		t.Errorf("last event must be done, got %q", events[len(events)-1].Type)
	}

	sawUpdate := false
	for _, ev := range events {
		if ev.Type == models.StreamEventStateUpdate {
			sawUpdate = true
			if _, ok := ev.Data["user_image"]; ok {
				t.Errorf("state_update must never carry the raw image")
			}
			if _, ok := ev.Data["messages"]; ok {
				t.Errorf("state_update must never carry the transcript")
			}
		}
	}
	if !sawUpdate {
		t.Errorf("expected at least one state_update event")
	}
}

func TestHealthEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)
	r, err := http.Get(hs.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", r.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	hs, _ := newTestServer(t)
	r, err := http.Get(hs.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", r.StatusCode)
	}
}
