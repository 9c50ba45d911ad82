package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// WaitUserDecision suspends for the user's choice among the presented
// options. The interrupt controller is responsible for interpreting the
// decision payload: an option index/name or "ai_recommendation" becomes a
// user_decisions entry and resumes at validate_decision; a
// "search:<query>" payload instead sets current_search_query and resumes
// at research_technologies for the same gap.
type WaitUserDecision struct{}

// NewWaitUserDecision constructs a WaitUserDecision node.
func NewWaitUserDecision() *WaitUserDecision { return &WaitUserDecision{} }

// Run implements sgraph.Node[state.Session].
func (n *WaitUserDecision) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	result := latestResearch(s, s.CurrentGapID)
	if result == nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: wait_user_decision has no research_results for gap %s", ErrInvalidState, s.CurrentGapID))
	}

	delta := state.Session{
		CurrentStage: state.StageWaitUserDecision,
		WaitingInput: &state.WaitingInput{
			Kind:    "option_selection",
			GapID:   s.CurrentGapID,
			Prompt:  fmt.Sprintf("Choose a technology for %s (index, name, \"ai_recommendation\", or \"search:<query>\").", s.CurrentGapID),
			Options: result.Options,
		},
	}
	return sgraph.Wait(delta)
}
