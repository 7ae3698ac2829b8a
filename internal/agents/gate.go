package agents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/metrics"
)

// Default gate configuration constants.
const (
	defaultGateLimit   = 8
	defaultCallTimeout = 15 * time.Second
)

// Gate bounds concurrent calls to one shared external dependency across all
// sessions. The bottleneck is the remote service's rate limit, so the gate
// is independent of per-session locking.
type Gate struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewGate creates a gate admitting at most limit concurrent calls, each
// bounded by timeout.
func NewGate(limit int64, timeout time.Duration) *Gate {
	if limit <= 0 {
		limit = defaultGateLimit
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Gate{
		sem:     semaphore.NewWeighted(limit),
		timeout: timeout,
	}
}

// Do runs fn under the gate with the per-call timeout applied.
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrAdmission, err)
	}
	defer g.sem.Release(1)

	return fn(ctx)
}

// GatedPolicy wraps a policy with an admission gate and latency metrics.
type GatedPolicy struct {
	inner Policy
	gate  *Gate
}

// NewGatedPolicy wraps inner with gate.
func NewGatedPolicy(inner Policy, gate *Gate) *GatedPolicy {
	return &GatedPolicy{inner: inner, gate: gate}
}

func (p *GatedPolicy) NextAction(ctx context.Context, in PolicyInput) (Action, error) {
	var out Action
	start := time.Now()
	err := p.gate.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = p.inner.NextAction(ctx, in)
		return callErr
	})
	metrics.RecordAgentLatency("policy", "next_action", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAgentError("policy", "next_action")
	}
	return out, err
}

// GatedEvaluator wraps an evaluator with an admission gate and latency
// metrics.
type GatedEvaluator struct {
	inner Evaluator
	gate  *Gate
}

// NewGatedEvaluator wraps inner with gate.
func NewGatedEvaluator(inner Evaluator, gate *Gate) *GatedEvaluator {
	return &GatedEvaluator{inner: inner, gate: gate}
}

func (e *GatedEvaluator) Assess(ctx context.Context, in AssessInput) (model.Feedback, error) {
	var out model.Feedback
	start := time.Now()
	err := e.gate.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = e.inner.Assess(ctx, in)
		return callErr
	})
	metrics.RecordAgentLatency("evaluator", "assess", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAgentError("evaluator", "assess")
	}
	return out, err
}

func (e *GatedEvaluator) Summarize(ctx context.Context, in SummarizeInput) (model.Summary, error) {
	var out model.Summary
	start := time.Now()
	err := e.gate.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = e.inner.Summarize(ctx, in)
		return callErr
	})
	metrics.RecordAgentLatency("evaluator", "summarize", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordAgentError("evaluator", "summarize")
	}
	return out, err
}
