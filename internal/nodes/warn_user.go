package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// WarnUser suspends to ask the user whether to keep a decision that
// triggered a critical validation warning ("continue") or pick again
// ("reselect", which routes back to present_options).
type WarnUser struct{}

// NewWarnUser constructs a WarnUser node.
func NewWarnUser() *WarnUser { return &WarnUser{} }

// Run implements sgraph.Node[state.Session].
func (n *WarnUser) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	gapID := s.PendingWarningGapID
	description := "a conflict was found with your selection"
	for _, w := range s.ValidationWarnings {
		if w.GapID == gapID && w.Severity == state.SeverityCritical {
			description = w.Description
		}
	}

	delta := state.Session{
		CurrentStage: state.StageWarnUser,
		WaitingInput: &state.WaitingInput{
			Kind:   "warning",
			GapID:  gapID,
			Prompt: fmt.Sprintf("%s Reply \"reselect\" or \"continue\".", description),
		},
	}
	return sgraph.Wait(delta)
}
