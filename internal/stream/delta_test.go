package stream

import (
	"reflect"
	"testing"
	"time"

	"github.com/cropwise/plantclinic/internal/models"
)

func syntheticStates() []*models.WorkflowState {
	s1 := models.NewWorkflowState("s1", "what's wrong with my plant?", "raw-image-bytes", models.UserContext{PlantType: "tomato"})
	s1.CurrentNode = models.NodeClassifying

	s2 := *s1
	s2.ClassificationResults = &models.ClassificationResult{
		DiseaseName:      "early_blight",
		Confidence:       0.91,
		AttentionOverlay: "raw-overlay-bytes",
	}
	s2.AssistantResponse = "Diagnosis: early blight"
	s2.CurrentNode = models.NodePrescribing
	s2.PreviousNode = models.NodeClassifying

	s3 := s2
	s3.PrescriptionData = &models.PrescriptionData{
		Treatments: []models.Treatment{{Name: "Copper fungicide"}},
	}
	s3.AssistantResponse = "Treatment plan ready"
	s3.CurrentNode = models.NodeCompleted
	s3.PreviousNode = models.NodePrescribing

	return []*models.WorkflowState{s1, &s2, &s3}
}

func collectDeltas(t *testing.T, states []*models.WorkflowState) []map[string]any {
	t.Helper()
	streamer := NewStreamer()
	var deltas []map[string]any
	for _, s := range states {
		d, err := streamer.Delta(s)
		if err != nil {
			t.Fatalf("Delta returned error: %v", err)
		}
		deltas = append(deltas, d)
	}
	return deltas
}

func TestDeltaExcludesVolatileAndBinaryFields(t *testing.T) {
	for _, d := range collectDeltas(t, syntheticStates()) {
		for _, key := range []string{"user_image", "messages", "last_update_time"} {
			if _, ok := d[key]; ok {
				t.Errorf("delta must never contain %q", key)
			}
		}
		if cr, ok := d["classification_results"].(map[string]any); ok {
			if _, ok := cr["attention_overlay"]; ok {
				t.Errorf("delta must never contain the attention overlay")
			}
		}
	}
}

func TestDeltaFirstEmissionIsFullSnapshot(t *testing.T) {
	deltas := collectDeltas(t, syntheticStates())
	first := deltas[0]
	if first["session_id"] != "s1" || first["current_node"] != models.NodeClassifying {
		t.Errorf("first delta must be the full snapshot, got %v", first)
	}
}

func TestDeltaOnlyChangedKeys(t *testing.T) {
	deltas := collectDeltas(t, syntheticStates())
	second := deltas[1]
	if _, ok := second["session_id"]; ok {
		t.Errorf("unchanged session_id must not be re-emitted")
	}
	if _, ok := second["classification_results"]; !ok {
		t.Errorf("new classification must appear in the delta")
	}
	if second["assistant_response"] != "Diagnosis: early blight" {
		t.Errorf("assistant_response delta missing, got %v", second["assistant_response"])
	}
}

func TestDeltaDeterminism(t *testing.T) {
	a := collectDeltas(t, syntheticStates())
	b := collectDeltas(t, syntheticStates())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same state sequence must yield identical delta sequences")
	}
}

func TestDeltaUnionReconstructsFinalState(t *testing.T) {
	states := syntheticStates()
	deltas := collectDeltas(t, states)

	union := map[string]any{}
	for _, d := range deltas {
		for k, v := range d {
			if v == nil {
				delete(union, k)
				continue
			}
			union[k] = v
		}
	}

	final, err := project(states[len(states)-1])
	if err != nil {
		t.Fatalf("project returned error: %v", err)
	}
	if !reflect.DeepEqual(union, final) {
		t.Errorf("union of deltas does not reconstruct the final projection\nunion: %v\nfinal: %v", union, final)
	}
}

func TestDeltaReportsRemovedKeys(t *testing.T) {
	s := models.NewWorkflowState("s1", "msg", "", models.UserContext{})
	s.ErrorMessage = "transient"
	streamer := NewStreamer()
	if _, err := streamer.Delta(s); err != nil {
		t.Fatalf("Delta returned error: %v", err)
	}

	s.ErrorMessage = ""
	s.LastUpdateTime = s.LastUpdateTime.Add(time.Second)
	d, err := streamer.Delta(s)
	if err != nil {
		t.Fatalf("Delta returned error: %v", err)
	}
	v, ok := d["error_message"]
	if !ok || v != nil {
		t.Errorf("cleared field must be reported as explicit nil, got %v (present=%t)", v, ok)
	}
}
