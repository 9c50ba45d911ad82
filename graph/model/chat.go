// Package model provides LLM integration adapters.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// This abstracts the differences between OpenAI, Anthropic, and Google
// so internal/collab.ModelCompleter can drive gap research and document
// generation (TRD prose, OpenAPI paths, DDL, diagram source) against
// whichever provider a session is configured with.
//
// Implementations should:
//   - Handle provider-specific authentication.
//   - Convert the standard Message format to the provider's wire format.
//   - Parse provider responses back into ChatOut.
//   - Respect context cancellation.
//
// Example:
//
//	m := anthropic.NewChatModel(apiKey, "claude-sonnet-4-20250514")
//	out, err := m.Chat(ctx, []Message{
//	    {Role: RoleUser, Content: "Draft a TRD section for the auth gap."},
//	}, nil)
type ChatModel interface {
	// Chat sends messages to the LLM and returns its response.
	//
	// tools may be nil. The LLM may reply with text only, tool calls
	// only, or both; a caller driving a tool loop (e.g. research_technologies
	// routing a web search through graph/tool.Tool) should check ToolCalls
	// before treating Text as the final answer.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message represents a single message in an LLM conversation.
//
// A typical research or generation call sends a system message (task
// framing), one or more user messages (the gap description, PRD excerpt,
// or prior research results), and any prior assistant turns.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string

	// Content contains the message text. May be empty for a message
	// that only carries tool calls.
	Content string
}

// Standard role constants for LLM conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the LLM can call, such as the web search
// backing research_technologies. Schema follows JSON Schema and describes
// the tool's expected input parameters.
type ToolSpec struct {
	// Name uniquely identifies the tool within a single Chat call.
	Name string

	// Description explains what the tool does; the LLM uses this to
	// decide when to call it.
	Description string

	// Schema defines the tool's input parameters. Optional for tools
	// that take no parameters.
	Schema map[string]interface{}
}

// ChatOut represents the output from an LLM chat completion: a text
// response, requested tool calls, or both.
type ChatOut struct {
	// Text contains the LLM's generated response. May be empty if the
	// LLM only wants to call tools.
	Text string

	// ToolCalls contains tools the LLM wants invoked before it can
	// finish answering. Empty for a direct text response.
	ToolCalls []ToolCall
}

// ToolCall represents a request from the LLM to invoke a specific tool.
// The caller is expected to execute it and feed the result back as a
// new message in the next Chat call.
type ToolCall struct {
	// Name identifies which tool to call; matches a ToolSpec.Name from
	// the tools passed to Chat.
	Name string

	// Input contains the parameters for the call, shaped per the
	// matching ToolSpec.Schema. May be nil for a no-argument tool.
	Input map[string]interface{}
}
