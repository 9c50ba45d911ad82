package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/state"
)

func TestResearchTechnologies_EnrichesSearchHits(t *testing.T) {
	searcher := &stubSearcher{results: []collab.SearchResult{
		{Title: "Postgres", URL: "https://postgresql.org", Snippet: "relational db"},
	}}
	completer := &stubCompleter{Responses: []string{
		`{"options":[{"name":"PostgreSQL","description":"d","pros":["a"],"cons":["b"],"popularity_metrics":0.9,"learning_curve":"medium","setup_time":"hours","cost":"free"}]}`,
	}}
	node := NewResearchTechnologies(searcher, completer, nil)

	s := state.Session{TechGaps: []state.TechGap{{ID: "db", Category: "database", Description: "pick a db"}}}
	result := node.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if len(result.Delta.ResearchResults) != 1 || len(result.Delta.ResearchResults[0].Options) != 1 {
		t.Fatalf("unexpected research results: %+v", result.Delta.ResearchResults)
	}
	if !result.Delta.PendingDecisions["db"] {
		t.Error("expected gap db marked pending")
	}
}

func TestResearchTechnologies_FallsBackOnSearchFailure(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("search provider down")}
	completer := &stubCompleter{}
	node := NewResearchTechnologies(searcher, completer, nil)

	s := state.Session{TechGaps: []state.TechGap{{ID: "db", Category: "database"}}}
	result := node.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("Run() error = %v", result.Err)
	}
	if len(result.Delta.ResearchResults[0].Options) == 0 {
		t.Fatal("expected fallback options")
	}
	if len(result.Delta.Errors) != 1 || result.Delta.Errors[0].ErrorKind != "research_fallback" {
		t.Fatalf("expected research_fallback error record, got %+v", result.Delta.Errors)
	}
}

func TestResearchTechnologies_NoUndecidedGapFails(t *testing.T) {
	node := NewResearchTechnologies(&stubSearcher{}, &stubCompleter{}, nil)
	s := state.Session{
		TechGaps:      []state.TechGap{{ID: "db"}},
		UserDecisions: []state.UserDecision{{GapID: "db"}},
	}
	result := node.Run(context.Background(), s)
	if result.Err == nil {
		t.Fatal("expected InvalidState error when no gap is undecided")
	}
}
