package sgraph

import (
	"math/rand"
	"time"
)

// NodePolicy configures per-node timeout and retry behavior, mirroring
// graph.NodePolicy but dropping the idempotency-key
// hook (sgraph has no concurrent fan-out to deduplicate against).
type NodePolicy struct {
	// Timeout is this node's wall-clock budget. Zero means the engine's
	// Options.DefaultNodeTimeout applies. No node in internal/nodes
	// implements PolicyProvider, so every node there runs under that
	// default and with a single attempt.
	Timeout time.Duration

	// RetryPolicy governs automatic retry of recoverable errors. Nil means
	// no retry: a single attempt.
	RetryPolicy *RetryPolicy
}

// PolicyProvider is implemented by nodes that want a non-default policy.
type PolicyProvider interface {
	Policy() NodePolicy
}

// RetryPolicy is exponential backoff with jitter, identical in shape to the
// graph.RetryPolicy.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// computeBackoff mirrors graph.computeBackoff: delay = min(base*2^attempt,
// maxDelay) + jitter(0, base).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if delay > maxDelay && maxDelay > 0 {
		delay = maxDelay
	}
	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry jitter, not security
		}
	}
	return delay + jitter
}
