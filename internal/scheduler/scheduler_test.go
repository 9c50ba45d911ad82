package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/events"
	"github.com/specforge/trdgraph/internal/nodes"
	"github.com/specforge/trdgraph/internal/state"
	"github.com/specforge/trdgraph/internal/store"
)

type stubCompleter struct {
	responses []string
	i         int
}

func (c *stubCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	if c.i >= len(c.responses) {
		return "", context.DeadlineExceeded
	}
	r := c.responses[c.i]
	c.i++
	return r, nil
}

type stubLoader struct{ inputs collab.UpstreamInputs }

func (l *stubLoader) Load(_ context.Context, _ string) (collab.UpstreamInputs, error) {
	return l.inputs, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, _ string, _ int) ([]collab.SearchResult, error) {
	return nil, context.DeadlineExceeded
}

type stubArtifactStore struct{ puts map[string]string }

func (s *stubArtifactStore) Put(_ context.Context, _, name, content string) (string, error) {
	if s.puts == nil {
		s.puts = map[string]string{}
	}
	s.puts[name] = content
	return "ref://" + name, nil
}

type stubNotifier struct{ notices []collab.CompletionNotice }

func (n *stubNotifier) Notify(_ context.Context, notice collab.CompletionNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

// newTestScheduler wires a scheduler whose session reaches
// ask_clarification on the first run (an incomplete PRD), so tests can
// exercise submit_decision against a real waiting session.
func newTestScheduler(t *testing.T) (*Scheduler, *store.MemoryStore[state.Session]) {
	t.Helper()
	checkpoints := store.NewMemoryStore[state.Session]()
	bus := events.NewBus(0)
	stepSink, eventSink := NewEngineDeps(checkpoints, bus, 0)

	completer := &stubCompleter{responses: []string{
		`{"completeness_score":40,"missing_elements":["pricing model"],"ambiguous_elements":[]}`,
	}}
	loader := &stubLoader{inputs: collab.UpstreamInputs{
		PRDContent: "a widget marketplace",
		DesignDocs: map[string]string{"design_system": "x", "ux_flow": "y", "screen_specs": "z"},
	}}

	engine := nodes.BuildEngine(nodes.Deps{
		UpstreamLoader: loader,
		Completer:      completer,
		Searcher:       stubSearcher{},
		ArtifactStore:  &stubArtifactStore{},
		Notifier:       &stubNotifier{},
		ProjectName:    "widgetco",
		StepSink:       stepSink,
		Events:         eventSink,
	})

	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour // tests drive the sweep manually
	sched := New(engine, checkpoints, bus, cfg)
	t.Cleanup(sched.Stop)
	return sched, checkpoints
}

func waitForStage(t *testing.T, checkpoints *store.MemoryStore[state.Session], sessionID string, stage state.Stage) state.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cp, err := checkpoints.Latest(context.Background(), sessionID)
		if err == nil && cp.State.CurrentStage == stage {
			return cp.State
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session %s never reached stage %s", sessionID, stage)
	return state.Session{}
}

func TestScheduler_StartReachesClarificationWait(t *testing.T) {
	sched, checkpoints := newTestScheduler(t)

	sessionID, err := sched.Start(context.Background(), "proj-1", "user-1", "job-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sess := waitForStage(t, checkpoints, sessionID, state.StageAskClarification)
	if sess.WaitingInput == nil || sess.WaitingInput.Kind != "clarification" {
		t.Fatalf("expected a clarification waiting_input, got %+v", sess.WaitingInput)
	}

	view, err := sched.Status(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if view.State != "paused" {
		t.Errorf("status = %q, want paused", view.State)
	}
}

func TestScheduler_SubmitDecisionRejectsWrongUser(t *testing.T) {
	sched, checkpoints := newTestScheduler(t)
	sessionID, _ := sched.Start(context.Background(), "proj-1", "user-1", "job-1")
	waitForStage(t, checkpoints, sessionID, state.StageAskClarification)

	err := sched.SubmitDecision(context.Background(), sessionID, "someone-else", "", map[string]interface{}{"answer": "freemium"})
	if err != ErrUnauthorized {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestScheduler_SubmitDecisionAppliesClarificationAndResumes(t *testing.T) {
	sched, checkpoints := newTestScheduler(t)
	sessionID, _ := sched.Start(context.Background(), "proj-1", "user-1", "job-1")
	waitForStage(t, checkpoints, sessionID, state.StageAskClarification)

	err := sched.SubmitDecision(context.Background(), sessionID, "user-1", "req-1", map[string]interface{}{"answer": "freemium, ad-supported"})
	if err != nil {
		t.Fatalf("SubmitDecision() error = %v", err)
	}

	// The stub completer has only one queued response, so the resumed
	// analyze_completeness call fails and the run ends with that error;
	// what matters here is that the resume checkpoint recorded the answer
	// and cleared waiting_input before the node ran.
	deadline := time.Now().Add(2 * time.Second)
	var sess state.Session
	for time.Now().Before(deadline) {
		cp, err := checkpoints.Latest(context.Background(), sessionID)
		if err == nil && len(cp.State.DesignDecisions) > 0 {
			sess = cp.State
			break
		}
		time.Sleep(time.Millisecond)
	}
	if len(sess.DesignDecisions) != 1 || sess.DesignDecisions[0] != "freemium, ad-supported" {
		t.Fatalf("expected design_decisions to record the answer, got %+v", sess.DesignDecisions)
	}
}

func TestScheduler_SubmitDecisionDedupesRepeatedRequestID(t *testing.T) {
	sched, checkpoints := newTestScheduler(t)
	sessionID, _ := sched.Start(context.Background(), "proj-1", "user-1", "job-1")
	waitForStage(t, checkpoints, sessionID, state.StageAskClarification)

	payload := map[string]interface{}{"answer": "freemium"}
	if err := sched.SubmitDecision(context.Background(), sessionID, "user-1", "dedup-1", payload); err != nil {
		t.Fatalf("first SubmitDecision() error = %v", err)
	}
	if err := sched.SubmitDecision(context.Background(), sessionID, "user-1", "dedup-1", payload); err != nil {
		t.Fatalf("repeated SubmitDecision() with same request id should be idempotent, got error = %v", err)
	}
}

func TestScheduler_CancelStopsSession(t *testing.T) {
	sched, checkpoints := newTestScheduler(t)
	sessionID, _ := sched.Start(context.Background(), "proj-1", "user-1", "job-1")
	waitForStage(t, checkpoints, sessionID, state.StageAskClarification)

	ch, unsubscribe := sched.Subscribe(sessionID)
	defer unsubscribe()

	if err := sched.Cancel(context.Background(), sessionID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != events.KindSessionCancelled {
			t.Errorf("expected a session_cancelled event, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a session_cancelled event within 1s")
	}
}
