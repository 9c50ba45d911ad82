package collab

import (
	"testing"

	"github.com/specforge/trdgraph/internal/state"
)

func TestDecodeDecision_Valid(t *testing.T) {
	raw := map[string]interface{}{
		"gap_id":          "gap-1",
		"selected_option": "PostgreSQL",
		"rationale":       "team already runs it",
		"source":          "user",
	}
	d, err := DecodeDecision(raw)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	if d.GapID != "gap-1" || d.ChosenName != "PostgreSQL" || d.Source != state.SourceUser {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecodeDecision_DefaultsSourceToUser(t *testing.T) {
	raw := map[string]interface{}{
		"gap_id":          "gap-1",
		"selected_option": "Redis",
	}
	d, err := DecodeDecision(raw)
	if err != nil {
		t.Fatalf("DecodeDecision: %v", err)
	}
	if d.Source != state.SourceUser {
		t.Fatalf("expected default source %q, got %q", state.SourceUser, d.Source)
	}
}

func TestDecodeDecision_MissingGapID(t *testing.T) {
	raw := map[string]interface{}{"selected_option": "Redis"}
	if _, err := DecodeDecision(raw); err == nil {
		t.Fatal("expected error for missing gap_id")
	}
}

func TestDecodeDecision_MissingSelection(t *testing.T) {
	raw := map[string]interface{}{"gap_id": "gap-1"}
	if _, err := DecodeDecision(raw); err == nil {
		t.Fatal("expected error for missing selected_option")
	}
}
