package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specforge/trdgraph/internal/nodes"
	"github.com/specforge/trdgraph/internal/state"
)

// applyDecision interprets a raw submit_decision payload against the
// session's current waiting_input and returns the node to resume at plus
// the state delta to merge before resuming, matching the per-node resume
// targets documented in nodes.BuildEngine.
func applyDecision(sess state.Session, raw map[string]interface{}) (resumeNode string, delta state.Session, err error) {
	if sess.WaitingInput == nil {
		return "", state.Session{}, fmt.Errorf("%w: no waiting_input on session", ErrNotWaiting)
	}

	switch sess.WaitingInput.Kind {
	case "clarification":
		return applyClarificationAnswer(raw)
	case "option_selection":
		return applyOptionSelection(sess, raw)
	case "warning":
		return applyWarningOutcome(sess, raw)
	default:
		return "", state.Session{}, fmt.Errorf("unrecognized waiting_input kind %q", sess.WaitingInput.Kind)
	}
}

func answerText(raw map[string]interface{}) (string, error) {
	v, ok := raw["answer"]
	if !ok {
		return "", fmt.Errorf("decision payload missing \"answer\"")
	}
	text, ok := v.(string)
	if !ok || text == "" {
		return "", fmt.Errorf("decision payload \"answer\" must be a non-empty string")
	}
	return text, nil
}

// applyClarificationAnswer resumes the clarification loop at
// analyze_completeness with the answer appended to design_decisions, per
// ask_clarification's documented resume contract.
func applyClarificationAnswer(raw map[string]interface{}) (string, state.Session, error) {
	answer, err := answerText(raw)
	if err != nil {
		return "", state.Session{}, err
	}
	delta := state.ClearWaitingInput(state.Session{DesignDecisions: []string{answer}})
	return nodes.NodeAnalyzeCompleteness, delta, nil
}

// applyOptionSelection resolves an option-selection decision into a
// user_decisions entry (or, for a "search:<query>" input, a fresh research
// query for the same gap) and picks the matching resume node.
func applyOptionSelection(sess state.Session, raw map[string]interface{}) (string, state.Session, error) {
	v, ok := raw["selection"]
	if !ok {
		return "", state.Session{}, fmt.Errorf("decision payload missing \"selection\"")
	}
	selection, ok := v.(string)
	if !ok || selection == "" {
		return "", state.Session{}, fmt.Errorf("decision payload \"selection\" must be a non-empty string")
	}

	gapID := sess.WaitingInput.GapID
	result := latestResearchResult(sess, gapID)
	if result == nil {
		return "", state.Session{}, fmt.Errorf("no research_results for gap %s", gapID)
	}

	if strings.HasPrefix(selection, "search:") {
		query := strings.TrimSpace(strings.TrimPrefix(selection, "search:"))
		if query == "" {
			return "", state.Session{}, fmt.Errorf("\"search:\" selection requires a query")
		}
		delta := state.ClearWaitingInput(state.Session{CurrentSearchQuery: query, CurrentGapID: gapID})
		return nodes.NodeResearchTechnologies, delta, nil
	}

	chosen, source, err := resolveOption(result.Options, selection)
	if err != nil {
		return "", state.Session{}, err
	}

	rationale := ""
	if r, ok := raw["rationale"].(string); ok {
		rationale = r
	}

	decision := state.UserDecision{
		GapID:      gapID,
		ChosenName: chosen.Name,
		Reason:     rationale,
		Source:     source,
	}
	delta := state.ClearWaitingInput(state.Session{
		UserDecisions: []state.UserDecision{decision},
		CurrentGapID:  gapID,
	})
	return nodes.NodeValidateDecision, delta, nil
}

// resolveOption maps a selection string to one of the enriched options:
// "ai_recommendation" picks the option nodes.Recommend scored highest (the
// same one present_options showed the user), a bare integer is a 0-based
// index, anything else is matched by exact name.
func resolveOption(options []state.ResearchOption, selection string) (state.ResearchOption, state.DecisionSource, error) {
	if selection == "ai_recommendation" {
		name := nodes.Recommend(options)
		for _, o := range options {
			if o.Name == name {
				return o, state.SourceAIRecommended, nil
			}
		}
		return state.ResearchOption{}, "", fmt.Errorf("could not resolve ai_recommendation among %d options", len(options))
	}
	if idx, convErr := strconv.Atoi(selection); convErr == nil {
		if idx < 0 || idx >= len(options) {
			return state.ResearchOption{}, "", fmt.Errorf("option index %d out of range [0,%d)", idx, len(options))
		}
		return options[idx], state.SourceUser, nil
	}
	for _, o := range options {
		if o.Name == selection {
			return o, state.SourceUser, nil
		}
	}
	return state.ResearchOption{}, "", fmt.Errorf("no option named %q", selection)
}

// applyWarningOutcome resumes at present_options ("reselect") or, on
// "continue", wherever validate_decision's own edge 3 would have sent the
// session next: research_technologies if gaps are still pending, else
// parse_code. Resuming "continue" straight at parse_code unconditionally
// would silently abandon any gap still sitting in PendingDecisions.
func applyWarningOutcome(sess state.Session, raw map[string]interface{}) (string, state.Session, error) {
	v, _ := raw["outcome"].(string)
	switch v {
	case "reselect":
		delta := state.ClearWaitingInput(state.ClearPendingWarning(state.Session{CurrentGapID: sess.WaitingInput.GapID}))
		return nodes.NodePresentOptions, delta, nil
	case "continue":
		delta := state.ClearWaitingInput(state.ClearPendingWarning(state.Session{}))
		if len(sess.PendingDecisions) > 0 {
			return nodes.NodeResearchTechnologies, delta, nil
		}
		return nodes.NodeParseCode, delta, nil
	default:
		return "", state.Session{}, fmt.Errorf("decision payload \"outcome\" must be \"reselect\" or \"continue\", got %q", v)
	}
}

func latestResearchResult(sess state.Session, gapID string) *state.ResearchResult {
	for i := len(sess.ResearchResults) - 1; i >= 0; i-- {
		if sess.ResearchResults[i].GapID == gapID {
			return &sess.ResearchResults[i]
		}
	}
	return nil
}

