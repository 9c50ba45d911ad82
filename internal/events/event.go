// Package events fans out per-session workflow events to subscribers
// (dashboards, websocket clients, log sinks) with offline queueing so a
// client that disconnects and reconnects does not lose history. Adapted
// from graph/emit's Event/Emitter/BufferedEmitter vocabulary, extended
// with real subscribe/replay semantics graph/emit does not provide: it
// emits to a single configured backend, whereas sessions here may have
// zero, one, or many live subscribers that come and go during a
// long-running workflow.
package events

import "time"

// Kind enumerates the event categories a session can publish.
type Kind string

// Recognized event kinds.
const (
	KindNodeStart        Kind = "node_start"
	KindNodeEnd          Kind = "node_end"
	KindRoutingDecision  Kind = "routing_decision"
	KindProgressUpdate   Kind = "progress_update"
	KindAgentMessage     Kind = "agent_message"
	KindError            Kind = "error"
	KindSessionCompleted Kind = "session_completed"
	KindUserMessageEcho  Kind = "user_message_echo"
	KindReminder         Kind = "reminder"
	KindSessionCancelled Kind = "session_cancelled"
)

// Event is one fan-out message for a session.
type Event struct {
	SessionID string                 `json:"session_id"`
	EventID   string                 `json:"event_id"`
	Kind      Kind                   `json:"kind"`
	NodeName  string                 `json:"node_name,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
