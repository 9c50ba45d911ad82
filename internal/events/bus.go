package events

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize bounds how many events a session retains for replay
// once it has no live subscriber. Oldest events are dropped first.
const DefaultBufferSize = 256

// subscription is one subscriber's delivery channel plus the set of event
// IDs already sent on it, so an event is delivered at most once per
// subscription. The set starts empty on every Subscribe.
type subscription struct {
	ch   chan Event
	seen map[string]bool
}

// sessionQueue is the per-session state: a bounded ring of recent events
// (for replay-on-resubscribe) plus any currently live subscriptions.
type sessionQueue struct {
	buffer []Event
	subs   map[int]*subscription
	nextID int
}

// Bus fans out events published for a session to every live subscriber,
// and buffers recent history so a client that (re)subscribes after events
// were published still receives them. Each subscription gets a given event
// ID at most once; a new subscription replays the whole buffer, including
// events an earlier subscription already received.
type Bus struct {
	mu         sync.Mutex
	sessions   map[string]*sessionQueue
	bufferSize int
}

// NewBus constructs an empty Bus. bufferSize <= 0 uses DefaultBufferSize.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		sessions:   make(map[string]*sessionQueue),
		bufferSize: bufferSize,
	}
}

// Publish appends an event to a session's history and delivers it to every
// live subscriber. Delivery is best-effort and non-blocking: a subscriber
// whose channel is full does not stall publication (it will catch up via
// replay on its next subscribe).
func (b *Bus) Publish(sessionID string, kind Kind, nodeName, message string, meta map[string]interface{}) Event {
	ev := Event{
		SessionID: sessionID,
		EventID:   uuid.NewString(),
		Kind:      kind,
		NodeName:  nodeName,
		Message:   message,
		Meta:      meta,
		CreatedAt: timeNow(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.sessions[sessionID]
	if q == nil {
		q = &sessionQueue{subs: make(map[int]*subscription)}
		b.sessions[sessionID] = q
	}
	q.buffer = append(q.buffer, ev)
	if len(q.buffer) > b.bufferSize {
		q.buffer = q.buffer[len(q.buffer)-b.bufferSize:]
	}

	for _, sub := range q.subs {
		if sub.seen[ev.EventID] {
			continue
		}
		select {
		case sub.ch <- ev:
			sub.seen[ev.EventID] = true
		default:
			// Subscriber is slow; it will pick this up via buffered replay
			// on its next subscribe rather than stalling publication.
		}
	}
	return ev
}

// Subscribe registers a new subscriber for sessionID, replays any buffered
// history it hasn't already seen, and returns a channel of future events
// plus an unsubscribe function. The channel is closed on Unsubscribe.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.sessions[sessionID]
	if q == nil {
		q = &sessionQueue{subs: make(map[int]*subscription)}
		b.sessions[sessionID] = q
	}

	ch := make(chan Event, b.bufferSize)
	sub := &subscription{ch: ch, seen: make(map[string]bool)}
	for _, ev := range q.buffer {
		select {
		case ch <- ev:
			sub.seen[ev.EventID] = true
		default:
		}
	}

	id := q.nextID
	q.nextID++
	q.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if q, ok := b.sessions[sessionID]; ok {
			delete(q.subs, id)
		}
		close(ch)
	}
	return ch, unsubscribe
}

// Replay returns the buffered history for a session, oldest first, without
// subscribing. Useful for a status endpoint that wants recent events
// without holding a live connection open.
func (b *Bus) Replay(sessionID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.sessions[sessionID]
	if q == nil {
		return nil
	}
	out := make([]Event, len(q.buffer))
	copy(out, q.buffer)
	return out
}

// timeNow is indirected for deterministic tests.
var timeNow = defaultNow
