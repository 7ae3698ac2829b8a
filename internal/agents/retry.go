package agents

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/metrics"
)

// defaultRetryBackoff is the pause before the single bounded retry.
const defaultRetryBackoff = 200 * time.Millisecond

// maxRetries is fixed at one: collaborator calls are idempotent but slow,
// so a still-failing call falls through to the fallback layer instead of
// retrying indefinitely.
const maxRetries = 1

// RetryingPolicy retries a failed policy call once with constant backoff.
type RetryingPolicy struct {
	inner   Policy
	backoff time.Duration
}

// NewRetryingPolicy wraps inner with a single bounded retry.
func NewRetryingPolicy(inner Policy, backoff time.Duration) *RetryingPolicy {
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &RetryingPolicy{inner: inner, backoff: backoff}
}

func (p *RetryingPolicy) NextAction(ctx context.Context, in PolicyInput) (Action, error) {
	var out Action
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewConstant(p.backoff)), func(ctx context.Context) error {
		a, callErr := p.inner.NextAction(ctx, in)
		if callErr != nil {
			metrics.RecordAgentRetry("policy", "next_action")
			return retry.RetryableError(callErr)
		}
		out = a
		return nil
	})
	return out, err
}

// RetryingEvaluator retries failed evaluator calls once with constant
// backoff.
type RetryingEvaluator struct {
	inner   Evaluator
	backoff time.Duration
}

// NewRetryingEvaluator wraps inner with a single bounded retry.
func NewRetryingEvaluator(inner Evaluator, backoff time.Duration) *RetryingEvaluator {
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &RetryingEvaluator{inner: inner, backoff: backoff}
}

func (e *RetryingEvaluator) Assess(ctx context.Context, in AssessInput) (model.Feedback, error) {
	var out model.Feedback
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewConstant(e.backoff)), func(ctx context.Context) error {
		fb, callErr := e.inner.Assess(ctx, in)
		if callErr != nil {
			metrics.RecordAgentRetry("evaluator", "assess")
			return retry.RetryableError(callErr)
		}
		out = fb
		return nil
	})
	return out, err
}

func (e *RetryingEvaluator) Summarize(ctx context.Context, in SummarizeInput) (model.Summary, error) {
	var out model.Summary
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewConstant(e.backoff)), func(ctx context.Context) error {
		s, callErr := e.inner.Summarize(ctx, in)
		if callErr != nil {
			metrics.RecordAgentRetry("evaluator", "summarize")
			return retry.RetryableError(callErr)
		}
		out = s
		return nil
	})
	return out, err
}
