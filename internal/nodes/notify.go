package nodes

import (
	"context"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// Notify signals the downstream collaborator that the session's artifact
// is ready (progress target 100%, terminal node). A notify failure is
// non-critical: it is recorded as a recovered error and never fails the
// session, since the artifact itself is already durably saved.
type Notify struct {
	Notifier collab.DownstreamNotifier
}

// NewNotify constructs a Notify node.
func NewNotify(notifier collab.DownstreamNotifier) *Notify {
	return &Notify{Notifier: notifier}
}

// Run implements sgraph.Node[state.Session].
func (n *Notify) Run(ctx context.Context, s state.Session) sgraph.NodeResult[state.Session] {
	delta := state.Session{
		CurrentStage:       state.StageCompleted,
		ProgressPercentage: 100,
	}

	err := n.Notifier.Notify(ctx, collab.CompletionNotice{
		SessionID: s.SessionID,
		ProjectID: s.ProjectID,
		Stage:     string(state.StageCompleted),
		Summary:   "technical specification generation complete",
	})
	if err != nil {
		delta.Errors = []state.ErrorRecord{recordError("notify", ErrExternalServiceError, err.Error(), true)}
	}
	return cont(delta)
}
