package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cropwise/plantclinic/internal/models"
)

func TestInitialGeneralQuestionCompletes(t *testing.T) {
	ts := testToolset(&models.UserIntent{IsGeneralQuestion: true, GeneralAnswer: "Water tomatoes at the base, early in the morning."})
	engine := NewEngine(ts)
	state := models.NewWorkflowState("s1", "how should I water tomatoes?", "", models.UserContext{})

	if err := engine.Run(context.Background(), state); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.CurrentNode != models.NodeCompleted {
		t.Errorf("expected completed, got %q", state.CurrentNode)
	}
	found := false
	for _, m := range state.Messages {
		if m.Role == models.RoleAssistant && strings.Contains(m.Content, "Water tomatoes at the base") {
			found = true
		}
	}
	if !found {
		t.Errorf("general answer not delivered; transcript: %+v", state.Messages)
	}
}

func TestInitialRequestsImageWhenMissing(t *testing.T) {
	ts := testToolset(&models.UserIntent{WantsClassification: true})
	engine := NewEngine(ts)
	state := models.NewWorkflowState("s1", "identify my plant's disease", "", models.UserContext{})

	if err := engine.Run(context.Background(), state); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !state.RequiresUserInput {
		t.Fatal("expected pause waiting for the image")
	}
	if state.CurrentNode != models.NodeFollowup {
		t.Errorf("expected re-entry at followup, got %q", state.CurrentNode)
	}
	if !strings.Contains(state.AssistantResponse, "photo") {
		t.Errorf("expected an image request, got %q", state.AssistantResponse)
	}
}

func TestInitialMergesInferredContextWithoutClobbering(t *testing.T) {
	ts := testToolset(&models.UserIntent{WantsClassification: true})
	ts.Context = &fakeContextExtractor{uc: models.UserContext{PlantType: "rose", Location: "Pune"}}
	engine := NewEngine(ts)

	// Caller already supplied the plant type; inference may only fill gaps.
	state := models.NewWorkflowState("s1", "my rose looks sick", "img-bytes", models.UserContext{PlantType: "tomato"})
	if err := engine.Run(context.Background(), state); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.UserContext.PlantType != "tomato" {
		t.Errorf("caller-supplied plant type was clobbered: %q", state.UserContext.PlantType)
	}
	if state.UserContext.Location != "Pune" {
		t.Errorf("inferred location not filled: %q", state.UserContext.Location)
	}
}

func TestVendorQueryReplies(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"yes, show me", models.NodeShowVendors},
		{"no, not now", models.NodeCompleted},
		{"how bad is the disease?", models.NodeFollowup},
	}
	for _, c := range cases {
		node := NewVendorQueryNode()
		state := models.NewWorkflowState("s1", c.reply, "", models.UserContext{})
		state.CurrentNode = models.NodeVendorQuery
		state.NextAction = models.ActionAwaitVendorResponse

		if err := node.Execute(context.Background(), state); err != nil {
			t.Fatalf("Execute(%q) returned error: %v", c.reply, err)
		}
		if got := routeVendorQuery(state); got != c.want {
			t.Errorf("reply %q routed to %q, want %q", c.reply, got, c.want)
		}
	}
}

func TestShowVendorsDegradesOnLookupFailure(t *testing.T) {
	ts := testToolset(&models.UserIntent{WantsVendors: true})
	ts.Vendors = &fakeVendors{err: errors.New("marketplace down")}
	engine := NewEngine(ts)

	state := models.NewWorkflowState("s1", "yes", "", models.UserContext{})
	state.ClassificationResults = testClassification()
	state.PrescriptionData = testPrescription()
	state.CurrentNode = models.NodeShowVendors

	if err := engine.Run(context.Background(), state); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state.ErrorMessage != "" {
		t.Errorf("vendor failure must not reach the error node, got %q", state.ErrorMessage)
	}
	if state.CurrentNode != models.NodeCompleted {
		t.Errorf("expected completion after degradation, got %q", state.CurrentNode)
	}
	found := false
	for _, m := range state.Messages {
		if strings.Contains(m.Content, "local agricultural supply") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected local-suppliers advice in transcript")
	}
}

func TestFollowupDosageShortcut(t *testing.T) {
	node := NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionPrescribe}}, &fakeGoodbye{})
	state := models.NewWorkflowState("s1", "what dosage should I use?", "", models.UserContext{})
	state.ClassificationResults = testClassification()
	state.PrescriptionData = testPrescription()
	state.CurrentNode = models.NodeFollowup

	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !strings.Contains(state.AssistantResponse, "2g per litre") {
		t.Errorf("expected dosage answered from stored data, got %q", state.AssistantResponse)
	}
	if routeFollowup(state) != models.NodeFollowup {
		t.Errorf("dosage answer must keep the session in followup")
	}
}

func TestFollowupPrescribeWithoutPrescriptionRunsPrescriber(t *testing.T) {
	// With a diagnosis but no stored plan, a dosage question must go to the
	// prescriber rather than being answered in place.
	node := NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionPrescribe}}, &fakeGoodbye{})
	state := models.NewWorkflowState("s1", "give me dosage", "", models.UserContext{})
	state.ClassificationResults = testClassification()
	state.CurrentNode = models.NodeFollowup

	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if state.NextAction != models.ActionPrescribe {
		t.Errorf("expected prescribe action, got %q", state.NextAction)
	}
	if routeFollowup(state) != models.NodePrescribing {
		t.Errorf("expected routing to prescribing")
	}
}

func TestFollowupPrescribeWithoutDiagnosisDegrades(t *testing.T) {
	node := NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionPrescribe}}, &fakeGoodbye{})
	state := models.NewWorkflowState("s1", "recommend a treatment", "", models.UserContext{})
	state.CurrentNode = models.NodeFollowup

	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !state.RequiresUserInput || state.NextAction != models.ActionClassifyFirst {
		t.Errorf("expected classify-first degradation, got action=%q", state.NextAction)
	}
}

func TestFollowupRestartClearsResultsKeepsTranscript(t *testing.T) {
	node := NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionRestart}}, &fakeGoodbye{})
	state := models.NewWorkflowState("s1", "let's start over", "img-bytes", models.UserContext{})
	state.ClassificationResults = testClassification()
	state.PrescriptionData = testPrescription()
	state.VendorOptions = testVendors()
	state.CurrentNode = models.NodeFollowup
	before := state.TranscriptLen()

	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if state.ClassificationResults != nil || state.PrescriptionData != nil || len(state.VendorOptions) != 0 {
		t.Errorf("restart must clear result payloads")
	}
	if state.UserImage != "" {
		t.Errorf("restart must clear the sticky image")
	}
	if state.TranscriptLen() < before {
		t.Errorf("restart must not truncate the transcript")
	}
	if routeFollowup(state) != models.NodeInitial {
		t.Errorf("restart must route to initial")
	}
}

func TestFollowupCompleteRequiresGoodbye(t *testing.T) {
	node := NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionComplete}}, &fakeGoodbye{yes: false})
	state := models.NewWorkflowState("s1", "hmm ok", "", models.UserContext{})
	state.CurrentNode = models.NodeFollowup

	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if routeFollowup(state) != models.NodeFollowup {
		t.Errorf("without a goodbye the session must stay in followup")
	}
	if !strings.Contains(state.AssistantResponse, "still here") {
		t.Errorf("expected still-here message, got %q", state.AssistantResponse)
	}

	node = NewFollowupNode(&fakeFollowup{intent: &models.FollowupIntent{Action: models.FollowupActionComplete}}, &fakeGoodbye{yes: true})
	state = models.NewWorkflowState("s1", "thanks, bye", "", models.UserContext{})
	state.CurrentNode = models.NodeFollowup
	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if routeFollowup(state) != models.NodeCompleted {
		t.Errorf("goodbye must route to completed")
	}
}

func TestCompletedMarksCompleteOnlyOnGoodbye(t *testing.T) {
	state := models.NewWorkflowState("s1", "thanks, that's all", "", models.UserContext{})
	node := NewCompletedNode(&fakeGoodbye{yes: true})
	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !state.IsComplete {
		t.Errorf("goodbye must mark the session complete")
	}

	state = models.NewWorkflowState("s2", "what about fertilizer?", "", models.UserContext{})
	node = NewCompletedNode(&fakeGoodbye{yes: false})
	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if state.IsComplete {
		t.Errorf("session must stay open without a goodbye")
	}
	if state.AssistantResponse == "" {
		t.Errorf("expected follow-up suggestions")
	}
}

func TestErrorNodeAlwaysCompletes(t *testing.T) {
	state := models.NewWorkflowState("s1", "diagnose", "", models.UserContext{})
	state.SetError("classifier unavailable")
	node := NewErrorNode()
	if err := node.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !state.IsComplete {
		t.Errorf("error node must mark the session complete")
	}
	if !strings.Contains(state.AssistantResponse, "classifier unavailable") {
		t.Errorf("expected formatted error message, got %q", state.AssistantResponse)
	}
}

func TestRouterTotality(t *testing.T) {
	known := map[string]bool{
		models.NodeInitial: true, models.NodeClassifying: true, models.NodePrescribing: true,
		models.NodeVendorQuery: true, models.NodeShowVendors: true, models.NodeOrderBooking: true,
		models.NodeFollowup: true, models.NodeCompleted: true, models.NodeError: true,
		routeEnd: true,
	}
	actions := []string{
		models.ActionClassify, models.ActionClassifyFirst, models.ActionComplete,
		models.ActionCompleted, models.ActionError, models.ActionGeneralHelp,
		models.ActionOrder, models.ActionPrescribe, models.ActionPrescribeFirst,
		models.ActionRequestImage, models.ActionRestart, models.ActionRetry,
		models.ActionShowVendors, models.ActionVendorQuery, models.ActionAwaitFinalInput,
		models.ActionAwaitUserInput, models.ActionAwaitVendorResponse,
		models.ActionAwaitVendorSelection, models.ActionFollowup,
		"", "no_such_action",
	}
	for name, route := range routerTable() {
		for _, action := range actions {
			state := models.NewWorkflowState("s1", "msg", "", models.UserContext{})
			state.NextAction = action
			next := route(state)
			if !known[next] {
				t.Errorf("router %s returned undefined node %q for action %q", name, next, action)
			}
		}
	}
}

func TestFollowupSuggestionsDeduplicate(t *testing.T) {
	state := models.NewWorkflowState("s1", "what treatment and dosage do I need?", "", models.UserContext{})
	state.ClassificationResults = testClassification()
	suggestions := followupSuggestions(state)
	for _, s := range suggestions {
		if strings.Contains(strings.ToLower(s), "treatment plan") {
			t.Errorf("suggestion repeats a topic the user already raised: %q", s)
		}
	}
	if len(suggestions) > 3 {
		t.Errorf("at most three suggestions, got %d", len(suggestions))
	}
}
