// Package nodes implements the session graph's node library: the 21
// functions that load inputs, analyze them, negotiate technology choices
// with the user, infer an API surface, and generate the final technical
// documents. Each node is a small struct carrying only the collaborators
// it needs (a collab.Completer, a collab.Searcher, ...), constructed by a
// factory function and wired into an sgraph.Engine[state.Session] by
// BuildEngine in graph.go.
package nodes

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
)

// Error kinds, the closed set a node may record on a state.ErrorRecord.
const (
	ErrUpstreamIncomplete    = "UpstreamIncomplete"
	ErrInvalidState          = "InvalidState"
	ErrNodeTimeout           = "NodeTimeout"
	ErrExternalServiceError  = "ExternalServiceError"
	ErrValidationBelowThresh = "ValidationBelowThreshold"
	ErrUserTimeout           = "UserTimeout"
	ErrStorageUnavailable    = "StorageUnavailable"
	ErrCancelled             = "Cancelled"
)

// timeNow exists so tests can pin wall-clock behavior; production code
// reaches time.Now only through this indirection point.
var timeNow = time.Now

// recordError builds an append-only state.ErrorRecord patch fragment for a
// node that absorbed a recoverable fault and is proceeding anyway.
func recordError(node, kind, message string, recovered bool) state.ErrorRecord {
	return state.ErrorRecord{
		Node:      node,
		ErrorKind: kind,
		Message:   message,
		Recovered: recovered,
		Timestamp: timeNow(),
	}
}

// agentMessage builds a conversation_history entry for an agent-authored
// message (question, option presentation, confirmation, or narration).
func agentMessage(message, messageType string, expectingInput bool) state.ConversationEntry {
	return state.ConversationEntry{
		Role:           state.RoleAgent,
		Message:        message,
		MessageType:    messageType,
		Timestamp:      timeNow(),
		ExpectingInput: expectingInput,
	}
}

// extractJSON strips a leading/trailing markdown code fence from an LLM
// completion before unmarshaling, since models asked for "JSON only"
// frequently wrap it in ```json ... ``` anyway.
func extractJSON(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// decodeJSON unmarshals an LLM completion into v, wrapping the error with
// enough of the offending text to debug a prompt regression.
func decodeJSON(text string, v interface{}) error {
	clean := extractJSON(text)
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		snippet := clean
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("decode completion as JSON: %w (text: %q)", err, snippet)
	}
	return nil
}

// firstNonEmpty returns a, or b if a is empty.
func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// encodeOptions serializes a research option set back to JSON for storage
// in the research cache, in the same shape decodeJSON expects to read it
// back in (see enrichedOptionsResponse in research_technologies.go).
func encodeOptions(options []state.ResearchOption) (string, error) {
	wrapped := struct {
		Options []state.ResearchOption `json:"options"`
	}{Options: options}
	b, err := json.Marshal(wrapped)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// cont builds a NodeResult that leaves routing to the engine's conditional
// edges (see graph.go), rather than naming the next node explicitly. Nodes
// use this whenever the router, not the node, owns the branch decision.
func cont(delta state.Session) sgraph.NodeResult[state.Session] {
	return sgraph.NodeResult[state.Session]{Delta: delta, Hint: sgraph.Continue}
}
