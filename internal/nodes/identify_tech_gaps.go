package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const techGapsPrompt = `Given the PRD and design docs, list the technology decisions this project
still needs to make (e.g. "database", "auth provider", "realtime transport"). For each, give an
id, category, a short description, the functional requirements it must satisfy, an urgency in
{critical, high, medium, low}, and depends_on: ids of other gaps that must be decided first (for
example, "caching strategy" may depend on "database"). Respond with JSON only:
{"tech_gaps": [{"id":"...","category":"...","description":"...","requirements":["..."],"urgency":"...","depends_on":["..."]}]}`

// maxGapsPerSession caps how many tech gaps a session researches. Zero
// means unbounded, the package default; overridable from configuration.
var maxGapsPerSession = 0

// IdentifyTechGaps produces the tech_gaps list the research loop will work
// through, one topologically-ordered gap at a time (progress target 25%).
type IdentifyTechGaps struct {
	Completer collab.Completer
}

// NewIdentifyTechGaps constructs an IdentifyTechGaps node.
func NewIdentifyTechGaps(completer collab.Completer) *IdentifyTechGaps {
	return &IdentifyTechGaps{Completer: completer}
}

type techGapsResponse struct {
	TechGaps []state.TechGap `json:"tech_gaps"`
}

// Run implements sgraph.Node[state.Session].
func (n *IdentifyTechGaps) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	userPrompt := fmt.Sprintf("PRD:\n%s\n\nDesign docs:\n%v", s.PRDContent, s.DesignDocs)
	out, err := n.Completer.Complete(ctx, techGapsPrompt, userPrompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: identify_tech_gaps completion: %w", ErrExternalServiceError, err))
	}

	var resp techGapsResponse
	if err := decodeJSON(out, &resp); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: identify_tech_gaps: %w", ErrExternalServiceError, err))
	}

	if cycle := detectCycle(resp.TechGaps); cycle != "" {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: tech_gaps dependency cycle through %q", ErrInvalidState, cycle))
	}

	gaps := capGaps(resp.TechGaps, maxGapsPerSession)

	return cont(state.Session{
		TechGaps:           gaps,
		CurrentStage:       state.StageIdentifyTechGaps,
		ProgressPercentage: 25,
	})
}

// capGaps truncates gaps to max (0 = unbounded) and drops depends_on
// references to gaps that fell outside the cut, so the research loop
// never waits on a dependency that will never be decided.
func capGaps(gaps []state.TechGap, max int) []state.TechGap {
	if max <= 0 || len(gaps) <= max {
		return gaps
	}
	kept := gaps[:max]
	keptIDs := make(map[string]bool, len(kept))
	for _, g := range kept {
		keptIDs[g.ID] = true
	}
	result := make([]state.TechGap, len(kept))
	for i, g := range kept {
		filtered := g.DependsOn[:0:0]
		for _, dep := range g.DependsOn {
			if keptIDs[dep] {
				filtered = append(filtered, dep)
			}
		}
		g.DependsOn = filtered
		result[i] = g
	}
	return result
}

// detectCycle returns the id of a gap participating in a depends_on cycle,
// or "" if the dependency graph is acyclic.
func detectCycle(gaps []state.TechGap) string {
	byID := make(map[string]state.TechGap, len(gaps))
	for _, g := range gaps {
		byID[g.ID] = g
	}
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	status := make(map[string]int, len(gaps))

	var visit func(id string) string
	visit = func(id string) string {
		switch status[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		status[id] = visiting
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			if cyc := visit(dep); cyc != "" {
				return cyc
			}
		}
		status[id] = done
		return ""
	}

	for _, g := range gaps {
		if cyc := visit(g.ID); cyc != "" {
			return cyc
		}
	}
	return ""
}
