package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/events"
	"github.com/specforge/trdgraph/internal/nodes"
	"github.com/specforge/trdgraph/internal/scheduler"
	"github.com/specforge/trdgraph/internal/state"
	"github.com/specforge/trdgraph/internal/store"
)

type fakeLoader struct{ inputs collab.UpstreamInputs }

func (l *fakeLoader) Load(_ context.Context, _ string) (collab.UpstreamInputs, error) {
	return l.inputs, nil
}

type fakeCompleter struct{ response string }

func (c *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return c.response, nil
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, _ string, _ int) ([]collab.SearchResult, error) {
	return nil, context.DeadlineExceeded
}

type fakeArtifactStore struct{}

func (fakeArtifactStore) Put(_ context.Context, _, name, _ string) (string, error) {
	return "ref://" + name, nil
}

type fakeNotifier struct{}

func (fakeNotifier) Notify(_ context.Context, _ collab.CompletionNotice) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	checkpoints := store.NewMemoryStore[state.Session]()
	bus := events.NewBus(0)
	stepSink, eventSink := scheduler.NewEngineDeps(checkpoints, bus, 0)

	engine := nodes.BuildEngine(nodes.Deps{
		UpstreamLoader: &fakeLoader{inputs: collab.UpstreamInputs{
			PRDContent: "a widget marketplace",
			DesignDocs: map[string]string{"design_system": "x", "ux_flow": "y", "screen_specs": "z"},
		}},
		Completer:     &fakeCompleter{response: `{"completeness_score":40,"missing_elements":["pricing"],"ambiguous_elements":[]}`},
		Searcher:      fakeSearcher{},
		ArtifactStore: fakeArtifactStore{},
		Notifier:      fakeNotifier{},
		ProjectName:   "widgetco",
		StepSink:      stepSink,
		Events:        eventSink,
	})

	cfg := scheduler.DefaultConfig()
	cfg.SweepInterval = time.Hour
	sched := scheduler.New(engine, checkpoints, bus, cfg)
	t.Cleanup(sched.Stop)
	return NewServer(sched, nil)
}

func TestHandleStart_RejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStart_ThenStatusReportsPaused(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(startRequest{ProjectID: "proj-1", UserID: "user-1", UpstreamJobID: "job-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}
	var started startResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if started.SessionID == "" {
		t.Fatal("expected a non-empty session_id")
	}

	deadline := time.Now().Add(2 * time.Second)
	var statusBody map[string]interface{}
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+started.SessionID, nil)
		statusRec := httptest.NewRecorder()
		srv.ServeHTTP(statusRec, statusReq)
		if statusRec.Code == http.StatusOK {
			_ = json.Unmarshal(statusRec.Body.Bytes(), &statusBody)
			if statusBody["state"] == "paused" {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if statusBody["state"] != "paused" {
		t.Fatalf("expected session to reach paused state, got %+v", statusBody)
	}
}

func TestHandleStatus_UnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSubmitDecision_WrongUserIsForbidden(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(startRequest{ProjectID: "proj-1", UserID: "user-1", UpstreamJobID: "job-1"})
	startReq := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", bytes.NewBuffer(body))
	startRec := httptest.NewRecorder()
	srv.ServeHTTP(startRec, startReq)
	var started startResponse
	_ = json.Unmarshal(startRec.Body.Bytes(), &started)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+started.SessionID, nil)
		statusRec := httptest.NewRecorder()
		srv.ServeHTTP(statusRec, statusReq)
		var body map[string]interface{}
		_ = json.Unmarshal(statusRec.Body.Bytes(), &body)
		if body["state"] == "paused" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	decisionBody, _ := json.Marshal(submitDecisionRequest{
		UserID:   "someone-else",
		Decision: map[string]interface{}{"answer": "freemium"},
	})
	decisionReq := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+started.SessionID+"/decisions", bytes.NewBuffer(decisionBody))
	decisionRec := httptest.NewRecorder()
	srv.ServeHTTP(decisionRec, decisionReq)

	if decisionRec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", decisionRec.Code, decisionRec.Body.String())
	}
}
