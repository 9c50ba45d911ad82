package nodes

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// AskClarification dequeues one missing/ambiguous element and suspends for
// a user answer (progress target 20%). The interrupt controller applies
// the answer to the session's inputs and re-enters the runner at
// analyze_completeness; no edge leaves this node.
type AskClarification struct{}

// NewAskClarification constructs an AskClarification node.
func NewAskClarification() *AskClarification { return &AskClarification{} }

// Run implements sgraph.Node[state.Session].
func (n *AskClarification) Run(_ context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	if len(s.ClarificationQueue) == 0 {
		// With an empty queue there is nothing to ask: return Continue
		// instead of suspending with no question. This node has no
		// outgoing edge, so the engine then ends the run with NO_ROUTE.
		return cont(state.Session{CurrentStage: state.StageAskClarification, ProgressPercentage: 20})
	}

	item := s.ClarificationQueue[0]
	remaining := append([]string{}, s.ClarificationQueue[1:]...)
	question := fmt.Sprintf("Can you clarify: %s?", item)

	delta := state.Session{
		ClarificationQueue: remaining,
		CurrentStage:       state.StageAskClarification,
		ProgressPercentage: 20,
		WaitingInput: &state.WaitingInput{
			Kind:   "clarification",
			Prompt: question,
		},
		ConversationHistory: []state.ConversationEntry{agentMessage(question, "question", true)},
	}
	return sgraph.Wait(delta)
}
