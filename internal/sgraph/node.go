// Package sgraph is the session graph engine: a small, typed Node/Router/
// Runner abstraction adapted from the graph package (see graph/engine.go)
// and specialized to a single-writer, checkpoint-at-every-node,
// interrupt-and-resume workflow.
//
// Unlike graph.Engine, sgraph has no concurrent-fan-out execution mode: a
// session's nodes run strictly sequentially, so there is no
// Frontier/worker-pool machinery here. What is kept, generalized: the
// Node/NodeResult/Next vocabulary, the Reducer merge step, conditional
// edges with predicate tie-breaking, retry policy with exponential
// backoff, and checkpoint-on-exit.
package sgraph

import "context"

// Node is one step in the session graph: a pure-ish function from state to
// a patch plus a control hint.
//
// Type parameter S is the session state type.
type Node[S any] interface {
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements Node.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// ControlHint is the node's declared disposition after running: continue to
// the next node, suspend for user input, or fail.
type ControlHint int

// Control hints a node can return.
const (
	// Continue routes to the next node via Route/edges.
	Continue ControlHint = iota
	// WaitForUser suspends the runner pending an external decision.
	WaitForUser
	// Fail is set internally by the runner when Err is non-nil; nodes do not
	// need to return it explicitly (returning a non-nil Err is sufficient).
	Fail
)

// NodeResult is what a node returns.
type NodeResult[S any] struct {
	// Delta is merged into the running state via the session Reduce function.
	Delta S
	// Route explicitly names the next node. If empty, the router falls back
	// to evaluating conditional edges (see evaluateEdges in edge.go).
	Route string
	// Hint declares whether this node wants to suspend for user input.
	Hint ControlHint
	// Err is a node-level fault. The engine reruns the node only when its
	// RetryPolicy marks Err retryable (see runWithPolicy in engine.go);
	// otherwise Run stops and returns Err.
	Err error
}

// End is the sentinel Route value meaning "workflow complete": the final
// node in the unconditional spine routes here.
const End = "__end__"

// Goto builds a NodeResult that proceeds to an explicit next node.
func Goto[S any](delta S, next string) NodeResult[S] {
	return NodeResult[S]{Delta: delta, Route: next, Hint: Continue}
}

// Stop builds a NodeResult that terminates the workflow.
func Stop[S any](delta S) NodeResult[S] {
	return NodeResult[S]{Delta: delta, Route: End, Hint: Continue}
}

// Wait builds a NodeResult that suspends the runner pending external input.
// Suspension is a terminal return from the runner, not coroutine
// suspension: the caller must re-invoke Run to resume.
func Wait[S any](delta S) NodeResult[S] {
	return NodeResult[S]{Delta: delta, Hint: WaitForUser}
}

// Failed builds a NodeResult carrying a fault.
func Failed[S any](err error) NodeResult[S] {
	var zero S
	return NodeResult[S]{Delta: zero, Hint: Fail, Err: err}
}
