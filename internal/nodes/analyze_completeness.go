package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// completenessRubric is the fixed, weighted-category scoring rubric
// analyze_completeness hands to the model so repeated runs over the same
// PRD converge on the same score instead of drifting with prompt phrasing.
const completenessRubric = `Score the PRD and design docs out of 100 using these weighted categories:
- problem statement and goals (20)
- user personas and use cases (15)
- functional requirements (25)
- non-functional requirements: performance, security, scale (15)
- data model hints (10)
- UX flow coverage (10)
- open questions / explicit ambiguity (5, inverse: fewer unresolved ambiguities score higher)
Respond with JSON only: {"completeness_score": <0-100>, "missing_elements": [...], "ambiguous_elements": [...]}.`

// AnalyzeCompleteness scores the gathered inputs and flags gaps an LLM
// finds in them (progress target 15%).
type AnalyzeCompleteness struct {
	Completer collab.Completer
}

// NewAnalyzeCompleteness constructs an AnalyzeCompleteness node.
func NewAnalyzeCompleteness(completer collab.Completer) *AnalyzeCompleteness {
	return &AnalyzeCompleteness{Completer: completer}
}

type completenessResponse struct {
	CompletenessScore int      `json:"completeness_score"`
	MissingElements   []string `json:"missing_elements"`
	AmbiguousElements []string `json:"ambiguous_elements"`
}

// Run implements sgraph.Node[state.Session].
func (n *AnalyzeCompleteness) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	userPrompt := fmt.Sprintf("PRD:\n%s\n\nDesign docs:\n%v", s.PRDContent, s.DesignDocs)
	out, err := n.Completer.Complete(ctx, completenessRubric, userPrompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: analyze_completeness completion: %w", ErrExternalServiceError, err))
	}

	var resp completenessResponse
	if err := decodeJSON(out, &resp); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: analyze_completeness: %w", ErrExternalServiceError, err))
	}
	if resp.CompletenessScore < 0 {
		resp.CompletenessScore = 0
	}
	if resp.CompletenessScore > 100 {
		resp.CompletenessScore = 100
	}

	delta := state.Session{
		CompletenessScore:  resp.CompletenessScore,
		MissingElements:    resp.MissingElements,
		AmbiguousElements:  resp.AmbiguousElements,
		CurrentStage:       state.StageAnalyzeCompleteness,
		ProgressPercentage: 15,
	}
	if resp.CompletenessScore < 80 {
		delta.ClarificationQueue = append(append([]string{}, resp.MissingElements...), resp.AmbiguousElements...)
	}
	return cont(delta)
}
