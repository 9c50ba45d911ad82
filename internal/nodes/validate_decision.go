package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

const validateDecisionPrompt = `Given a project's PRD, the technologies already chosen for other gaps, and
a newly chosen technology for one gap, flag any conflicts: a requirement the choice fails to meet
(requirement_mismatch), or an incompatibility with an already-chosen technology (tech_incompatibility).
Each flagged conflict has a severity of "critical" (blocks proceeding) or "warning" (proceed but note
it). Respond with JSON only: {"warnings": [{"type":"...","severity":"...","description":"..."}]}`

// ValidateDecision checks the most recent decision against the PRD and
// previously chosen technologies.
type ValidateDecision struct {
	Completer collab.Completer
}

// NewValidateDecision constructs a ValidateDecision node.
func NewValidateDecision(completer collab.Completer) *ValidateDecision {
	return &ValidateDecision{Completer: completer}
}

type validateDecisionResponse struct {
	Warnings []struct {
		Type        string `json:"type"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	} `json:"warnings"`
}

// Run implements sgraph.Node[state.Session].
func (n *ValidateDecision) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	decision := latestDecision(s, s.CurrentGapID)
	if decision == nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: validate_decision has no user_decisions entry for gap %s", ErrInvalidState, s.CurrentGapID))
	}

	prompt := fmt.Sprintf("PRD:\n%s\n\nAlready chosen: %v\n\nNewly chosen for gap %s: %s (%s)",
		s.PRDContent, chosenSoFar(s), decision.GapID, decision.ChosenName, decision.Reason)
	out, err := n.Completer.Complete(ctx, validateDecisionPrompt, prompt)
	if err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: validate_decision completion: %w", ErrExternalServiceError, err))
	}

	var resp validateDecisionResponse
	if err := decodeJSON(out, &resp); err != nil {
		return sgraph.Failed[state.Session](fmt.Errorf("%s: validate_decision: %w", ErrExternalServiceError, err))
	}

	warnings := make([]state.ValidationWarning, 0, len(resp.Warnings))
	for _, w := range resp.Warnings {
		warnings = append(warnings, state.ValidationWarning{
			GapID:       decision.GapID,
			Type:        state.WarningType(w.Type),
			Severity:    state.Severity(w.Severity),
			Description: w.Description,
		})
	}

	delta := state.Session{
		ValidationWarnings: warnings,
		CurrentStage:       state.StageValidateDecision,
	}
	if hasCritical(warnings) {
		delta.PendingWarningGapID = decision.GapID
	}
	return cont(delta)
}

func latestDecision(s state.Session, gapID string) *state.UserDecision {
	for i := len(s.UserDecisions) - 1; i >= 0; i-- {
		if s.UserDecisions[i].GapID == gapID {
			return &s.UserDecisions[i]
		}
	}
	return nil
}

func chosenSoFar(s state.Session) []string {
	names := make([]string, 0, len(s.UserDecisions))
	for _, d := range s.UserDecisions {
		names = append(names, d.ChosenName)
	}
	return names
}

func hasCritical(warnings []state.ValidationWarning) bool {
	for _, w := range warnings {
		if w.Severity == state.SeverityCritical {
			return true
		}
	}
	return false
}
