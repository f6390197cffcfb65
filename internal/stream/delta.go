// Package stream computes the incremental state projection sent to clients
// after every workflow step, so an ever-growing transcript and raw image
// payloads are never resent.
package stream

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cropwise/plantclinic/internal/models"
)

// Keys never streamed: raw payloads ride the session record only, and
// transcript changes are conveyed via assistant_response.
var excludedKeys = map[string]bool{
	"user_image":       true,
	"messages":         true,
	"last_update_time": true,
}

// Streamer tracks the previously emitted snapshot of one run and yields the
// changed-only projection per step. Not safe for concurrent use; create one
// per run.
type Streamer struct {
	prev map[string]any
}

// NewStreamer creates a delta streamer for a single run.
func NewStreamer() *Streamer { return &Streamer{} }

// Delta returns the keys whose value changed since the last call. The first
// call returns the full snapshot minus excluded fields. A key that
// disappeared is reported with an explicit nil.
func (s *Streamer) Delta(state *models.WorkflowState) (map[string]any, error) {
	snap, err := project(state)
	if err != nil {
		return nil, err
	}

	delta := make(map[string]any)
	for k, v := range snap {
		if s.prev == nil || !reflect.DeepEqual(s.prev[k], v) {
			delta[k] = v
		}
	}
	for k := range s.prev {
		if _, ok := snap[k]; !ok {
			delta[k] = nil
		}
	}
	s.prev = snap
	return delta, nil
}

// project renders the state as a generic JSON map with excluded fields
// removed. Comparison over the JSON projection makes change detection
// structural rather than identity-based.
func project(state *models.WorkflowState) (map[string]any, error) {
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, fmt.Errorf("failed to project state: %w", err)
	}
	for k := range excludedKeys {
		delete(m, k)
	}
	if cr, ok := m["classification_results"].(map[string]any); ok {
		delete(cr, "attention_overlay")
	}
	return m, nil
}
