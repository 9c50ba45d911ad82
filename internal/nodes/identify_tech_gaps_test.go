package nodes

import (
	"context"
	"testing"

	"github.com/specforge/trdgraph/internal/state"
)

func TestIdentifyTechGaps_ParsesGaps(t *testing.T) {
	completer := &stubCompleter{Responses: []string{
		`{"tech_gaps":[{"id":"db","category":"database","description":"pick a db","urgency":"high","depends_on":[]}]}`,
	}}
	node := NewIdentifyTechGaps(completer)

	result := node.Run(context.Background(), state.Session{PRDContent: "prd"})
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if len(result.Delta.TechGaps) != 1 || result.Delta.TechGaps[0].ID != "db" {
		t.Fatalf("unexpected tech gaps: %+v", result.Delta.TechGaps)
	}
}

func TestIdentifyTechGaps_RejectsCycle(t *testing.T) {
	completer := &stubCompleter{Responses: []string{
		`{"tech_gaps":[
			{"id":"a","category":"x","depends_on":["b"]},
			{"id":"b","category":"y","depends_on":["a"]}
		]}`,
	}}
	node := NewIdentifyTechGaps(completer)

	result := node.Run(context.Background(), state.Session{})
	if result.Err == nil {
		t.Fatal("expected cycle detection error")
	}
}
