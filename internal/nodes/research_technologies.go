package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const enrichOptionsPrompt = `Given a technology gap and a list of raw web search hits, pick the 3 best
candidate technologies. For each, give name, description, pros, cons, a popularity_metrics score
from 0 to 1, a docs_url if one of the hits has it, a learning_curve in {low, medium, high}, a rough
setup_time, and a cost descriptor ("free", "freemium", "paid"). Respond with JSON only:
{"options": [{"name":"...","description":"...","pros":["..."],"cons":["..."],
"popularity_metrics":0.0,"docs_url":"...","learning_curve":"...","setup_time":"...","cost":"..."}]}`

// optionsPerGap bounds how many researched candidates present_options
// shows for a gap. A package variable, overridable from configuration,
// since it is purely a presentation limit with no invariant coupling.
var optionsPerGap = 3

// fallbackLibrary is the static, templated option set research_technologies
// falls back to when web search fails after retries, keyed by gap category.
// It exists so a session never stalls on a flaky search provider; entries
// are deliberately generic rather than category-perfect.
var fallbackLibrary = map[string][]state.ResearchOption{
	"database": {
		{Name: "PostgreSQL", Description: "General-purpose relational database", Pros: []string{"mature", "rich SQL", "JSON support"}, Cons: []string{"self-managed ops"}, PopularityMetrics: 0.9, LearningCurve: "medium", SetupTime: "hours", Cost: "free"},
		{Name: "MongoDB", Description: "Document-oriented NoSQL database", Pros: []string{"flexible schema"}, Cons: []string{"weaker joins"}, PopularityMetrics: 0.7, LearningCurve: "low", SetupTime: "hours", Cost: "freemium"},
		{Name: "SQLite", Description: "Embedded single-file database", Pros: []string{"zero ops", "fast local dev"}, Cons: []string{"single-writer"}, PopularityMetrics: 0.6, LearningCurve: "low", SetupTime: "minutes", Cost: "free"},
	},
}

var defaultFallback = []state.ResearchOption{
	{Name: "Evaluate top search result manually", Description: "Automated research was unavailable; a human should pick here", PopularityMetrics: 0.5, LearningCurve: "medium", SetupTime: "unknown", Cost: "unknown"},
}

// ResearchTechnologies enriches candidate technologies for one gap at a
// time (the research loop, progress target 30-50%).
type ResearchTechnologies struct {
	Searcher collab.Searcher
	Completer collab.Completer
	Cache    *collab.ResearchCache
}

// NewResearchTechnologies constructs a ResearchTechnologies node.
func NewResearchTechnologies(searcher collab.Searcher, completer collab.Completer, cache *collab.ResearchCache) *ResearchTechnologies {
	return &ResearchTechnologies{Searcher: searcher, Completer: completer, Cache: cache}
}

type enrichedOptionsResponse struct {
	Options []state.ResearchOption `json:"options"`
}

// Run implements sgraph.Node[state.Session].
func (n *ResearchTechnologies) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	gap, ok := nextUndecidedGap(s)
	if !ok {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: research_technologies invoked with no undecided gap", ErrInvalidState))
	}

	query := s.CurrentSearchQuery
	if query == "" {
		query = gap.Category + " " + gap.Description
	}

	options, warning := n.gatherOptions(ctx, gap, query)
	progress := researchProgress(s)

	delta := state.Session{
		CurrentGapID:       gap.ID,
		ResearchResults:    []state.ResearchResult{{GapID: gap.ID, Options: options, Timestamp: timeNow()}},
		PendingDecisions:   map[string]bool{gap.ID: true},
		ResearchIteration:  s.ResearchIteration + 1,
		CurrentStage:       state.StageResearchTechnologies,
		ProgressPercentage: progress,
	}
	delta = state.ClearSearchQuery(delta)
	if warning != nil {
		delta.Errors = []state.ErrorRecord{*warning}
	}
	return cont(delta)
}

func (n *ResearchTechnologies) gatherOptions(ctx context.Context, gap state.TechGap, query string) ([]state.ResearchOption, *state.ErrorRecord) {
	if n.Cache != nil {
		if summary, found, err := n.Cache.Lookup(ctx, gap.Description, 0.85); err == nil && found {
			var cached enrichedOptionsResponse
			if decodeJSON(summary, &cached) == nil && len(cached.Options) > 0 {
				return top(cached.Options, optionsPerGap), nil
			}
		}
	}

	hits, err := n.Searcher.Search(ctx, query, 5)
	if err != nil || len(hits) == 0 {
		rec := recordError("research_technologies", "research_fallback", fmt.Sprintf("search failed for gap %s, using fallback library: %v", gap.ID, err), true)
		return top(fallback(gap.Category), 3), &rec
	}

	var hitLines string
	for _, h := range hits {
		hitLines += fmt.Sprintf("- %s (%s): %s\n", h.Title, h.URL, h.Snippet)
	}
	prompt := fmt.Sprintf("Gap: %s - %s\nRequirements: %v\n\nSearch hits:\n%s", gap.Category, gap.Description, gap.Requirements, hitLines)
	out, err := n.Completer.Complete(ctx, enrichOptionsPrompt, prompt)
	if err != nil {
		rec := recordError("research_technologies", "research_fallback", fmt.Sprintf("enrichment failed for gap %s, using fallback library: %v", gap.ID, err), true)
		return top(fallback(gap.Category), 3), &rec
	}

	var resp enrichedOptionsResponse
	if err := decodeJSON(out, &resp); err != nil || len(resp.Options) == 0 {
		rec := recordError("research_technologies", "research_fallback", fmt.Sprintf("could not parse enrichment for gap %s, using fallback library", gap.ID), true)
		return top(fallback(gap.Category), 3), &rec
	}

	if n.Cache != nil {
		if encoded, err := encodeOptions(resp.Options); err == nil {
			_ = n.Cache.Remember(ctx, gap.ID, gap.Description, encoded)
		}
	}
	return top(resp.Options, optionsPerGap), nil
}

func fallback(category string) []state.ResearchOption {
	if opts, ok := fallbackLibrary[category]; ok {
		return opts
	}
	return defaultFallback
}

func top(options []state.ResearchOption, n int) []state.ResearchOption {
	if len(options) <= n {
		return options
	}
	return options[:n]
}

// researchProgress maps the 30-50% loop range across however many gaps
// remain undecided, so progress is non-decreasing but never jumps straight
// to 50 on the first gap of a long backlog.
func researchProgress(s state.Session) float64 {
	total := len(s.TechGaps)
	if total == 0 {
		return 50
	}
	decided := len(s.UserDecisions)
	frac := float64(decided) / float64(total)
	p := 30 + frac*20
	if p < s.ProgressPercentage {
		return s.ProgressPercentage
	}
	return p
}

// nextUndecidedGap returns the topologically-first gap that has no
// decision yet and whose dependencies are all already decided.
func nextUndecidedGap(s state.Session) (state.TechGap, bool) {
	decided := make(map[string]bool, len(s.UserDecisions))
	for _, d := range s.UserDecisions {
		decided[d.GapID] = true
	}
	for _, g := range s.TechGaps {
		if decided[g.ID] {
			continue
		}
		ready := true
		for _, dep := range g.DependsOn {
			if !decided[dep] {
				ready = false
				break
			}
		}
		if ready {
			return g, true
		}
	}
	return state.TechGap{}, false
}
