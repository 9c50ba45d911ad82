// Package collab defines the external collaborators a session depends on —
// upstream artifact loading, LLM completion, web research, downstream
// notification — as small interfaces, plus concrete adapters. Node code
// depends only on these interfaces, never on a specific provider SDK,
// mirroring the graph/model.ChatModel / graph/tool.Tool separation.
package collab

import (
	"context"
	"fmt"

	"github.com/specforge/trdgraph/graph/model"
)

// Completer generates text from a system and user prompt. It is a
// narrower surface than model.ChatModel (no tool-calling, no message
// history) because every node that needs an LLM wants exactly one
// request/response round trip: analysis, research summarization, and
// document generation are all single-shot prompts over the session state.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ModelCompleter adapts any model.ChatModel (Anthropic, OpenAI, Google
// GenAI — see graph/model/anthropic, graph/model/openai, graph/model/google)
// into a Completer.
type ModelCompleter struct {
	Model model.ChatModel
}

// NewModelCompleter wraps m as a Completer.
func NewModelCompleter(m model.ChatModel) *ModelCompleter {
	return &ModelCompleter{Model: m}
}

// Complete implements Completer by issuing a single two-message chat turn.
func (c *ModelCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: userPrompt},
	}
	out, err := c.Model.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("completer chat: %w", err)
	}
	return out.Text, nil
}
