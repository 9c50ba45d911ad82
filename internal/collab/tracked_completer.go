package collab

import (
	"context"

	"github.com/specforge/trdgraph/internal/cost"
)

// TrackedCompleter wraps a Completer and records every call's token usage
// and estimated spend, grounded on graph.ModelPricing's cost-tracking
// approach. Usage goes to whichever tracker is passed in; it is not split
// by session.
type TrackedCompleter struct {
	inner   Completer
	model   string
	tracker *cost.Tracker
}

// NewTrackedCompleter wraps inner so every Complete call is charged against
// tracker under modelName.
func NewTrackedCompleter(inner Completer, modelName string, tracker *cost.Tracker) *TrackedCompleter {
	return &TrackedCompleter{inner: inner, model: modelName, tracker: tracker}
}

// Complete implements Completer.
func (c *TrackedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.inner.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if c.tracker != nil {
		c.tracker.RecordCompletion(c.model, systemPrompt+userPrompt, response)
	}
	return response, nil
}
