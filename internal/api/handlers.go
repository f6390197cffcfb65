// Package api provides HTTP handlers for PlantClinic endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cropwise/plantclinic/internal/models"
	"github.com/cropwise/plantclinic/internal/session"
	"github.com/cropwise/plantclinic/internal/stream"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// chatHandler handles POST /api/v1/chat: one synchronous workflow turn.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" && req.ImageB64 == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message or image required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	ctx := r.Context()
	state, err := s.sessions.GetOrCreate(ctx, req.SessionID, req.Message, req.ImageB64, req.Context)
	if err != nil {
		slog.Error("Server.chatHandler: failed to load session", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	if err := s.engine.Run(ctx, state); err != nil {
		slog.Error("Server.chatHandler: workflow run failed", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.ChatResponse{
			Success:   false,
			SessionID: req.SessionID,
			Error:     "Workflow processing failed",
		})
		return
	}
	if err := s.sessions.Save(ctx, state); err != nil {
		slog.Error("Server.chatHandler: failed to save session", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	writeJSONResponse(w, http.StatusOK, chatResponse(state))
}

// chatStreamHandler handles POST /api/v1/chat-stream: the same turn as
// chatHandler, emitted as SSE with one state_update delta per node.
func (s *Server) chatStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatStreamHandler: processing stream request", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatStreamHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" && req.ImageB64 == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Message or image required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming not supported"))
		return
	}

	isNew := req.SessionID == ""
	if isNew {
		req.SessionID = uuid.NewString()
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	ctx := r.Context()
	if !isNew {
		if _, err := s.sessions.Get(ctx, req.SessionID); errors.Is(err, session.ErrNotFound) {
			isNew = true
		}
	}

	state, err := s.sessions.GetOrCreate(ctx, req.SessionID, req.Message, req.ImageB64, req.Context)
	if err != nil {
		slog.Error("Server.chatStreamHandler: failed to load session", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if isNew {
		writeSSE(w, flusher, models.StreamEvent{
			Type:      models.StreamEventSessionStart,
			SessionID: req.SessionID,
			Data:      map[string]any{"session_id": req.SessionID},
		})
	}

	streamer := stream.NewStreamer()
	runErr := s.engine.StreamRun(ctx, state, func(st *models.WorkflowState) error {
		delta, err := streamer.Delta(st)
		if err != nil {
			return err
		}
		writeSSE(w, flusher, models.StreamEvent{
			Type:      models.StreamEventStateUpdate,
			SessionID: req.SessionID,
			Data:      delta,
		})
		return nil
	})
	if runErr != nil {
		slog.Error("Server.chatStreamHandler: workflow run failed", "error", runErr, "session_id", req.SessionID)
		writeSSE(w, flusher, models.StreamEvent{
			Type:      models.StreamEventError,
			SessionID: req.SessionID,
			Error:     "Workflow processing failed",
		})
		return
	}

	if err := s.sessions.Save(ctx, state); err != nil {
		slog.Error("Server.chatStreamHandler: failed to save session", "error", err, "session_id", req.SessionID)
	}
	writeSSE(w, flusher, models.StreamEvent{Type: models.StreamEventDone, SessionID: req.SessionID})
}

// writeSSE emits one server-sent event and flushes it to the client.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event models.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Server.writeSSE: failed to marshal event", "error", err, "type", event.Type)
		return
	}
	if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		slog.Debug("Server.writeSSE: client gone", "error", err)
		return
	}
	flusher.Flush()
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*models.WorkflowState, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	state, err := s.sessions.Get(r.Context(), sessionID)
	if errors.Is(err, session.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return nil, false
	}
	if err != nil {
		slog.Error("Server.loadSession: failed to load session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return nil, false
	}
	return state, true
}

// sessionInfoHandler handles GET /api/v1/session/{sessionID}.
func (s *Server) sessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionInfo(state)))
}

// sessionHistoryHandler handles GET /api/v1/session/{sessionID}/history.
func (s *Server) sessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state.Messages))
}

// sessionClassificationHandler handles GET
// /api/v1/session/{sessionID}/classification. This is also where the
// attention overlay, which is never streamed, can be retrieved.
func (s *Server) sessionClassificationHandler(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if state.ClassificationResults == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No classification available"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state.ClassificationResults))
}

// sessionPrescriptionHandler handles GET /api/v1/session/{sessionID}/prescription.
func (s *Server) sessionPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	state, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if state.PrescriptionData == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No prescription available"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state.PrescriptionData))
}

// sessionDeleteHandler handles DELETE /api/v1/session/{sessionID}.
func (s *Server) sessionDeleteHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		slog.Error("Server.sessionDeleteHandler: failed to delete session", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// cleanupHandler handles POST /api/v1/cleanup: purge expired sessions.
func (s *Server) cleanupHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := s.sessions.Cleanup(r.Context())
	if err != nil {
		slog.Error("Server.cleanupHandler: cleanup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Cleanup failed"))
		return
	}
	slog.Info("Server.cleanupHandler: cleanup complete", "removed", removed)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Cleanup complete", map[string]int{"removed": removed}))
}

// statsHandler handles GET /api/v1/stats.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sessions.Stats(r.Context())
	if err != nil {
		slog.Error("Server.statsHandler: failed to compute stats", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// chatResponse projects the post-run state into the synchronous reply.
func chatResponse(state *models.WorkflowState) models.ChatResponse {
	return models.ChatResponse{
		Success:               true,
		SessionID:             state.SessionID,
		Messages:              state.Messages,
		State:                 state.CurrentNode,
		IsComplete:            state.IsComplete,
		RequiresUserInput:     state.RequiresUserInput,
		AssistantResponse:     state.AssistantResponse,
		ClassificationResults: state.ClassificationResults,
		PrescriptionData:      state.PrescriptionData,
		VendorOptions:         state.VendorOptions,
		OrderDetails:          state.OrderDetails,
	}
}

// sessionInfo projects the state into the inspection DTO.
func sessionInfo(state *models.WorkflowState) models.SessionInfo {
	return models.SessionInfo{
		SessionID:         state.SessionID,
		CurrentNode:       state.CurrentNode,
		PreviousNode:      state.PreviousNode,
		IsComplete:        state.IsComplete,
		RequiresUserInput: state.RequiresUserInput,
		MessageCount:      state.TranscriptLen(),
		HasClassification: state.ClassificationResults != nil,
		HasPrescription:   state.PrescriptionData != nil,
		StartedAt:         state.WorkflowStartTime.Format(time.RFC3339),
		LastUpdatedAt:     state.LastUpdateTime.Format(time.RFC3339),
	}
}
