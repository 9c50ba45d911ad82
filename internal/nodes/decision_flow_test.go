package nodes

import (
	"context"
	"testing"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

func TestAskClarification_DequeuesAndWaits(t *testing.T) {
	node := NewAskClarification()
	s := state.Session{ClarificationQueue: []string{"pricing model", "target regions"}}

	result := node.Run(context.Background(), s)
	if result.Hint != sgraph.WaitForUser {
		t.Fatalf("Hint = %v, want WaitForUser", result.Hint)
	}
	if len(result.Delta.ClarificationQueue) != 1 {
		t.Fatalf("expected one item left in queue, got %v", result.Delta.ClarificationQueue)
	}
	if result.Delta.WaitingInput == nil || result.Delta.WaitingInput.Kind != "clarification" {
		t.Fatalf("expected a clarification waiting_input, got %+v", result.Delta.WaitingInput)
	}
}

func TestPresentOptions_RecommendsHighestScoringOption(t *testing.T) {
	node := NewPresentOptions()
	s := state.Session{
		CurrentGapID: "db",
		ResearchResults: []state.ResearchResult{{
			GapID: "db",
			Options: []state.ResearchOption{
				{Name: "Obscure DB", PopularityMetrics: 0.1, LearningCurve: "high", Cost: "paid", SetupTime: "days"},
				{Name: "PostgreSQL", PopularityMetrics: 0.9, LearningCurve: "low", Cost: "free", SetupTime: "minutes", DocsURL: "https://postgresql.org"},
			},
		}},
	}

	result := node.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if len(result.Delta.ConversationHistory) != 1 {
		t.Fatalf("expected one agent_message, got %d", len(result.Delta.ConversationHistory))
	}
	msg := result.Delta.ConversationHistory[0].Message
	if !contains(msg, "PostgreSQL") {
		t.Errorf("expected PostgreSQL recommended, got message: %q", msg)
	}
}

func TestValidateDecision_CriticalWarningSetsPendingWarning(t *testing.T) {
	completer := &stubCompleter{Responses: []string{
		`{"warnings":[{"type":"tech_incompatibility","severity":"critical","description":"conflicts with chosen queue"}]}`,
	}}
	node := NewValidateDecision(completer)
	s := state.Session{
		CurrentGapID:  "db",
		UserDecisions: []state.UserDecision{{GapID: "db", ChosenName: "SQLite"}},
	}

	result := node.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if result.Delta.PendingWarningGapID != "db" {
		t.Fatalf("expected pending_warning_gap_id = db, got %q", result.Delta.PendingWarningGapID)
	}
}

func TestValidateDecision_NoWarningsLeavesPendingWarningUnset(t *testing.T) {
	completer := &stubCompleter{Responses: []string{`{"warnings":[]}`}}
	node := NewValidateDecision(completer)
	s := state.Session{
		CurrentGapID:  "db",
		UserDecisions: []state.UserDecision{{GapID: "db", ChosenName: "PostgreSQL"}},
	}

	result := node.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if result.Delta.PendingWarningGapID != "" {
		t.Errorf("expected no pending warning, got %q", result.Delta.PendingWarningGapID)
	}
}

func TestWarnUser_Waits(t *testing.T) {
	node := NewWarnUser()
	s := state.Session{
		PendingWarningGapID: "db",
		ValidationWarnings:  []state.ValidationWarning{{GapID: "db", Severity: state.SeverityCritical, Description: "conflict"}},
	}
	result := node.Run(context.Background(), s)
	if result.Hint != sgraph.WaitForUser {
		t.Fatalf("Hint = %v, want WaitForUser", result.Hint)
	}
	if result.Delta.WaitingInput == nil || result.Delta.WaitingInput.GapID != "db" {
		t.Fatalf("unexpected waiting_input: %+v", result.Delta.WaitingInput)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
