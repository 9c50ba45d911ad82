// Package scheduler owns session lifecycle: starting new sessions,
// resuming paused ones when an external decision arrives, enforcing
// per-session single-writer semantics, and sweeping idle/expired sessions.
// It is the "session scheduler" plus "interrupt/resume controller" that sit
// above internal/sgraph's engine: the engine only knows how to run one
// session from a given node to its next suspension point, and has no idea
// sessions exist concurrently or that a human is on the other end of a
// wait_for_user node.
//
// A prior, concurrent-frontier scheduler design (deterministic order keys
// over a node heap) does not apply here: this workflow never fans out
// within a session, so internal/sgraph stays strictly sequential. What
// carries over is the idea of a scheduler as the layer that decides what
// runs next and owns the goroutine doing it, generalized to one
// lightweight goroutine per active session.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specforge/trdgraph/internal/events"
	"github.com/specforge/trdgraph/internal/nodes"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
	"github.com/specforge/trdgraph/internal/store"
)

// Config holds the scheduler's configurable policy knobs, matching the
// recognized configuration keys.
type Config struct {
	// SessionTTL is the absolute expiry for a session awaiting a decision.
	SessionTTL time.Duration
	// UserIdleReminder is the inactivity window after which a reminder
	// event is published for a waiting session.
	UserIdleReminder time.Duration
	// SweepInterval controls how often the idle/expiry sweep runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       7 * 24 * time.Hour,
		UserIdleReminder: 30 * time.Minute,
		SweepInterval:    time.Minute,
	}
}

var waitingStages = map[state.Stage]bool{
	state.StageAskClarification: true,
	state.StageWaitUserDecision: true,
	state.StageWarnUser:         true,
}

// ErrUnauthorized is returned when a caller's user_id does not match the
// session's owner.
var ErrUnauthorized = fmt.Errorf("caller is not the session owner")

// ErrNotWaiting is returned when submit_decision targets a session that is
// not currently suspended at a waiting stage.
var ErrNotWaiting = fmt.Errorf("session is not awaiting a decision")

// ErrConflict is returned when a resume call's client request id has
// already been used for a different, non-idempotent decision.
var ErrConflict = fmt.Errorf("conflicting resume call for this session")

// handle tracks the mutable, in-memory bookkeeping for one active session:
// the per-session mutex that linearizes resume/cancel calls against each
// other, the cancellation func for Cancel, dedup cache for idempotent
// resumes, and the last-activity timestamp the idle sweep reads.
type handle struct {
	mu           sync.Mutex
	cancel       context.CancelFunc
	lastActivity time.Time
	remindedAt   *time.Time
	seenRequests map[string]error
}

// Scheduler runs sessions against a session graph engine, persisting
// checkpoints and publishing events as it goes.
type Scheduler struct {
	engine      *sgraph.Engine[state.Session]
	checkpoints store.Checkpointer[state.Session]
	bus         *events.Bus
	cfg         Config

	mu       sync.Mutex
	handles  map[string]*handle
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Scheduler. engine must already be wired by
// nodes.BuildEngine with its StepSink pointed at checkpoints.Put and its
// Events pointed at a function that calls bus.Publish (see NewEngineDeps).
func New(engine *sgraph.Engine[state.Session], checkpoints store.Checkpointer[state.Session], bus *events.Bus, cfg Config) *Scheduler {
	s := &Scheduler{
		engine:      engine,
		checkpoints: checkpoints,
		bus:         bus,
		cfg:         cfg,
		handles:     make(map[string]*handle),
		stopCh:      make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// NewEngineDeps adapts a Scheduler-to-be's checkpoint store and event bus
// into the StepSink/EventSink the engine constructor needs, so callers wire
// nodes.BuildEngine and scheduler.New from the same two collaborators
// without duplicating the adaptation. compactAfter triggers Compact(keep
// = compactAfter) on a session's checkpoint chain every compactAfter
// writes; <= 0 disables compaction.
func NewEngineDeps(checkpoints store.Checkpointer[state.Session], bus *events.Bus, compactAfter int) (sgraph.StepSink[state.Session], sgraph.EventSink) {
	var mu sync.Mutex
	writeCounts := make(map[string]int)

	stepSink := func(ctx context.Context, nodeName string, progress float64, s state.Session) error {
		_, err := checkpoints.Put(ctx, s.SessionID, nodeName, progress, s)
		if err != nil {
			return err
		}
		bus.Publish(s.SessionID, events.KindProgressUpdate, nodeName, "", map[string]interface{}{
			"progress": progress,
			"stage":    string(s.CurrentStage),
		})

		if compactAfter > 0 {
			mu.Lock()
			writeCounts[s.SessionID]++
			due := writeCounts[s.SessionID] >= compactAfter
			if due {
				writeCounts[s.SessionID] = 0
			}
			mu.Unlock()
			if due {
				if err := checkpoints.Compact(ctx, s.SessionID, compactAfter); err != nil {
					return fmt.Errorf("compact checkpoint chain for session %s: %w", s.SessionID, err)
				}
			}
		}
		return nil
	}
	// The engine's EventSink has no session_id parameter (it is engine-scoped,
	// not session-scoped), so node_start/node_end/routing_decision can't be
	// safely fanned out to per-session subscribers from here without risking
	// cross-session mixups under concurrent sessions. progress_update above
	// (from stepSink, which does see state.SessionID) and the completion/
	// error/agent_message events runSession publishes after Run returns cover
	// what subscribers need; node-level events are discarded here. A caller
	// wanting node-level tracing can pass its own EventSink to
	// nodes.BuildEngine instead of using this one.
	eventSink := func(nodeName, kind string, meta map[string]interface{}) {}
	return stepSink, eventSink
}

// Start enqueues a new session and returns its id immediately; the session
// runs to its first suspension point (or completion) on a background
// goroutine.
func (s *Scheduler) Start(ctx context.Context, projectID, userID, upstreamJobID string) (string, error) {
	sessionID := uuid.NewString()
	initial := state.New(sessionID, projectID, userID, upstreamJobID)

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, lastActivity: time.Now(), seenRequests: make(map[string]error)}
	s.mu.Lock()
	s.handles[sessionID] = h
	s.mu.Unlock()

	go s.runSession(runCtx, sessionID, "", initial)
	return sessionID, nil
}

// runSession drives the engine from startNode (or its default if empty)
// and publishes the terminal event for whatever the run settles on. It
// holds the session's handle mutex for its entire duration, which is how
// resume/cancel calls are kept from interleaving with an in-flight node.
func (s *Scheduler) runSession(ctx context.Context, sessionID, startNode string, current state.Session) {
	h := s.handleFor(sessionID)
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	final, status, err := s.engine.Run(ctx, startNode, current)
	h.lastActivity = time.Now()

	if err != nil {
		s.bus.Publish(sessionID, events.KindError, string(final.CurrentStage), err.Error(), map[string]interface{}{
			"recoverable": false,
		})
		return
	}

	switch status {
	case sgraph.StatusWaiting:
		if final.WaitingInput != nil {
			s.bus.Publish(sessionID, events.KindAgentMessage, string(final.CurrentStage), final.WaitingInput.Prompt, map[string]interface{}{
				"kind":    final.WaitingInput.Kind,
				"gap_id":  final.WaitingInput.GapID,
				"options": final.WaitingInput.Options,
			})
		}
	case sgraph.StatusDone:
		s.bus.Publish(sessionID, events.KindSessionCompleted, string(final.CurrentStage), "", map[string]interface{}{
			"artifact_id": final.ArtifactID,
			"version":     final.ArtifactVersion,
		})
	}
}

func (s *Scheduler) handleFor(sessionID string) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[sessionID]
}

// StatusView is the response shape for the status() operation.
type StatusView struct {
	SessionID          string      `json:"session_id"`
	State              string      `json:"state"`
	CurrentStage       state.Stage `json:"current_stage"`
	Progress           float64     `json:"progress"`
	PendingDecisions   int         `json:"pending_decisions_count"`
	DecisionsCompleted int         `json:"decisions_completed"`
	DecisionsTotal     int         `json:"decisions_total"`
}

// Status loads the session's latest checkpoint and summarizes it.
func (s *Scheduler) Status(ctx context.Context, sessionID string) (StatusView, error) {
	cp, err := s.checkpoints.Latest(ctx, sessionID)
	if err != nil {
		return StatusView{}, err
	}
	sess := cp.State
	view := StatusView{
		SessionID:          sessionID,
		CurrentStage:       sess.CurrentStage,
		Progress:           sess.ProgressPercentage,
		PendingDecisions:   len(sess.PendingDecisions),
		DecisionsCompleted: len(sess.UserDecisions),
		DecisionsTotal:     len(sess.TechGaps),
	}
	switch {
	case sess.CurrentStage == state.StageFailed:
		view.State = "failed"
	case sess.CurrentStage == state.StageCompleted:
		view.State = "completed"
	case waitingStages[sess.CurrentStage]:
		view.State = "paused"
	default:
		view.State = "running"
	}
	return view, nil
}

// Cancel stops a session at its next node boundary, best-effort: it
// cancels the run's context, from which the in-flight node's context is
// derived, so calls that honour ctx return early; the node's goroutine is
// not killed.
func (s *Scheduler) Cancel(ctx context.Context, sessionID string) error {
	h := s.handleFor(sessionID)
	if h == nil {
		return store.ErrNotFound
	}
	h.cancel()
	s.bus.Publish(sessionID, events.KindSessionCancelled, "", "", nil)
	return nil
}

// SubmitDecision applies an external decision to a waiting session and
// resumes it at the appropriate node. clientRequestID dedups retried
// submissions: a repeat of the same id after it already applied is a no-op
// returning the original outcome; a different id arriving while the
// session is no longer waiting is a conflict.
func (s *Scheduler) SubmitDecision(ctx context.Context, sessionID, userID, clientRequestID string, raw map[string]interface{}) error {
	h := s.handleFor(sessionID)
	if h == nil {
		return store.ErrNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if clientRequestID != "" {
		if prevErr, seen := h.seenRequests[clientRequestID]; seen {
			return prevErr
		}
	}

	cp, err := s.checkpoints.Latest(ctx, sessionID)
	if err != nil {
		return err
	}
	sess := cp.State

	if sess.UserID != userID {
		return ErrUnauthorized
	}
	if !waitingStages[sess.CurrentStage] {
		// A request id we've never seen, arriving after the waiting stage
		// already resolved, means a second distinct decision raced the one
		// that already applied: that's a conflict, not a plain "not
		// waiting" (which covers a session that was never suspended, e.g.
		// a client polling status() and guessing wrong).
		err := ErrNotWaiting
		if clientRequestID != "" {
			err = ErrConflict
			h.seenRequests[clientRequestID] = err
		}
		return err
	}

	resumeNode, delta, err := applyDecision(sess, raw)
	if clientRequestID != "" {
		h.seenRequests[clientRequestID] = err
	}
	if err != nil {
		return err
	}

	merged := state.Reduce(sess, delta)
	if _, err := s.checkpoints.Put(ctx, sessionID, string(sess.CurrentStage)+"_resume", merged.ProgressPercentage, merged); err != nil {
		return fmt.Errorf("persist resume checkpoint: %w", err)
	}
	s.bus.Publish(sessionID, events.KindUserMessageEcho, string(sess.CurrentStage), "", map[string]interface{}{"raw": raw})

	h.lastActivity = time.Now()
	h.remindedAt = nil

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	// Launched from inside SubmitDecision's locked section: this goroutine
	// blocks on h.mu until SubmitDecision returns and releases it, so no
	// in-flight node execution can ever overlap a resume's state mutation.
	go s.runSession(runCtx, sessionID, resumeNode, merged)
	return nil
}

// Subscribe exposes the underlying bus subscription for the session-control
// surface's subscribe() operation.
func (s *Scheduler) Subscribe(sessionID string) (<-chan events.Event, func()) {
	return s.bus.Subscribe(sessionID)
}

// Stop halts the idle/expiry sweep. Does not cancel in-flight sessions.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// sweepLoop periodically reminds idle waiting sessions and expires ones
// past their absolute TTL.
func (s *Scheduler) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Scheduler) sweepOnce() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		h := s.handleFor(id)
		if h == nil {
			continue
		}
		if !h.mu.TryLock() {
			continue // a node or resume is in flight; check again next sweep
		}
		idle := now.Sub(h.lastActivity)
		alreadyReminded := h.remindedAt != nil
		h.mu.Unlock()

		cp, err := s.checkpoints.Latest(context.Background(), id)
		if err != nil || !waitingStages[cp.State.CurrentStage] {
			continue
		}
		if idle >= s.cfg.SessionTTL {
			s.bus.Publish(id, events.KindError, string(cp.State.CurrentStage), "session expired awaiting a decision", map[string]interface{}{
				"error_kind":  nodes.ErrUserTimeout,
				"recoverable": false,
			})
			continue
		}
		if idle >= s.cfg.UserIdleReminder && !alreadyReminded {
			h.mu.Lock()
			t := now
			h.remindedAt = &t
			h.mu.Unlock()
			s.bus.Publish(id, events.KindReminder, string(cp.State.CurrentStage), "still waiting on your decision", nil)
		}
	}
}
