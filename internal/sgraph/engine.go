package sgraph

import (
	"context"
	"math/rand"
	"time"
)

// Reducer merges a node's delta into the accumulated state. Identical in
// spirit to graph.Reducer[S].
type Reducer[S any] func(prev, delta S) S

// InvariantChecker validates a state transition and returns a non-nil error
// on violation. Optional.
type InvariantChecker[S any] func(prev, next S) error

// StepSink receives a durable checkpoint after every node returns
// successfully. It is the narrow interface the engine needs from a
// checkpointer; internal/store provides the full implementation.
type StepSink[S any] func(ctx context.Context, nodeName string, progressTarget float64, state S) error

// EventSink receives observability events as the engine runs, analogous to
// emit.Emitter.Emit but scoped to one session.
type EventSink func(nodeName string, kind string, meta map[string]interface{})

// Options configures Engine execution limits.
type Options struct {
	// MaxSteps bounds a single Run() call. The research and TRD-retry loops
	// carry their own, tighter iteration caps in state invariants; MaxSteps
	// is a coarser backstop against a misconfigured router.
	MaxSteps int
	// DefaultNodeTimeout applies to nodes without a Policy().Timeout.
	DefaultNodeTimeout time.Duration
}

// RunStatus is what a Run call settled on.
type RunStatus int

// Run outcomes.
const (
	// StatusDone means the workflow reached End.
	StatusDone RunStatus = iota
	// StatusWaiting means a node returned WaitForUser; Run must be resumed
	// later at the node the interrupt controller selects for the resume.
	StatusWaiting
)

// Engine runs a single session's graph to completion or to its next
// suspension point. It has no concurrent fan-out: node execution within a
// session is strictly sequential.
type Engine[S any] struct {
	reducer   Reducer[S]
	check     InvariantChecker[S]
	nodes     map[string]Node[S]
	edges     []Edge[S]
	progress  map[string]float64
	startNode string
	stepSink  StepSink[S]
	events    EventSink
	opts      Options
	rng       *rand.Rand
}

// New constructs an Engine. stepSink and events may be nil (no-op).
func New[S any](reducer Reducer[S], check InvariantChecker[S], stepSink StepSink[S], events EventSink, opts Options) *Engine[S] {
	if opts.DefaultNodeTimeout == 0 {
		opts.DefaultNodeTimeout = 120 * time.Second
	}
	return &Engine[S]{
		reducer:  reducer,
		check:    check,
		nodes:    make(map[string]Node[S]),
		progress: make(map[string]float64),
		stepSink: stepSink,
		events:   events,
		opts:     opts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- retry jitter only
	}
}

// Add registers a node under nodeID together with the progress fraction it
// reports once it completes.
func (e *Engine[S]) Add(nodeID string, node Node[S], progressTarget float64) {
	e.nodes[nodeID] = node
	e.progress[nodeID] = progressTarget
}

// Connect registers a conditional (or, if when is nil, unconditional) edge.
func (e *Engine[S]) Connect(from, to string, when Predicate[S]) {
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: when})
}

// StartAt sets the default entry node for a fresh session.
func (e *Engine[S]) StartAt(nodeID string) {
	e.startNode = nodeID
}

// Run executes nodes starting at startNode until the workflow reaches End,
// suspends for user input, or errors. Callers resume a waiting session by
// calling Run again with startNode set to the node the interrupt controller
// determined follows the waiting node.
func (e *Engine[S]) Run(ctx context.Context, startNode string, initial S) (S, RunStatus, error) {
	current := initial
	node := startNode
	if node == "" {
		node = e.startNode
	}

	for step := 0; ; step++ {
		if e.opts.MaxSteps > 0 && step >= e.opts.MaxSteps {
			return current, StatusDone, ErrMaxStepsExceeded
		}
		select {
		case <-ctx.Done():
			return current, StatusDone, ctx.Err()
		default:
		}

		impl, ok := e.nodes[node]
		if !ok {
			return current, StatusDone, &EngineError{Message: "unregistered node", Code: "NODE_NOT_FOUND", NodeID: node, Cause: ErrNodeNotFound}
		}

		e.emit(node, "node_start", nil)

		result, err := e.runWithPolicy(ctx, impl, node, current)
		if err != nil {
			e.emit(node, "error", map[string]interface{}{"error": err.Error()})
			return current, StatusDone, err
		}
		if result.Err != nil {
			e.emit(node, "error", map[string]interface{}{"error": result.Err.Error()})
			return current, StatusDone, result.Err
		}

		next := e.reducer(current, result.Delta)
		if e.check != nil {
			if verr := e.check(current, next); verr != nil {
				return current, StatusDone, &EngineError{Message: verr.Error(), Code: "INVARIANT_VIOLATION", NodeID: node}
			}
		}
		current = next

		if e.stepSink != nil {
			if serr := e.stepSink(ctx, node, e.progress[node], current); serr != nil {
				return current, StatusDone, &EngineError{Message: "checkpoint persist failed: " + serr.Error(), Code: "STORAGE_UNAVAILABLE", NodeID: node, Cause: serr}
			}
		}
		e.emit(node, "node_end", nil)

		if result.Hint == WaitForUser {
			return current, StatusWaiting, nil
		}

		nextNode := result.Route
		if nextNode == "" {
			nextNode = evaluateEdges(e.edges, node, current)
		}
		if nextNode == "" {
			return current, StatusDone, &EngineError{Message: ErrNoRoute.Error(), Code: "NO_ROUTE", NodeID: node, Cause: ErrNoRoute}
		}
		e.emit(node, "routing_decision", map[string]interface{}{"next": nextNode})
		if nextNode == End {
			return current, StatusDone, nil
		}
		node = nextNode
	}
}

func (e *Engine[S]) emit(node, kind string, meta map[string]interface{}) {
	if e.events != nil {
		e.events(node, kind, meta)
	}
}

// runWithPolicy executes a node, applying its declared timeout and retry
// policy. Mirrors the retry loop in graph's runConcurrent, simplified
// to sequential execution.
func (e *Engine[S]) runWithPolicy(ctx context.Context, impl Node[S], nodeID string, state S) (NodeResult[S], error) {
	var policy NodePolicy
	if pp, ok := impl.(PolicyProvider); ok {
		policy = pp.Policy()
	}
	timeout := policy.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultNodeTimeout
	}

	attempt := 0
	for {
		nodeCtx, cancel := context.WithTimeout(ctx, timeout)
		result := impl.Run(nodeCtx, state)
		cancel()

		if result.Err == nil {
			return result, nil
		}
		if policy.RetryPolicy == nil || policy.RetryPolicy.Retryable == nil || !policy.RetryPolicy.Retryable(result.Err) {
			return result, nil
		}
		if attempt+1 >= policy.RetryPolicy.MaxAttempts {
			return result, nil
		}
		delay := computeBackoff(attempt, policy.RetryPolicy.BaseDelay, policy.RetryPolicy.MaxDelay, e.rng)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return result, ctx.Err()
		}
		attempt++
		_ = nodeID
	}
}
