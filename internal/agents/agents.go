// Package agents defines the contracts for the two external collaborators
// driving an interview: the policy that decides the next conversational
// action and the evaluator that produces coaching feedback. Implementations
// may call remote models; decorators in this package add admission gating,
// bounded retry and deterministic fallbacks around them.
package agents

import (
	"context"

	"github.com/okian/greenroom/internal/domain/model"
)

// ActionKind classifies what the policy wants to happen next.
type ActionKind string

const (
	// ActionQuestion asks the candidate the contained question.
	ActionQuestion ActionKind = "question"
	// ActionClosing signals the interview is complete.
	ActionClosing ActionKind = "closing"
)

// Action is the policy's decision for one cycle. Justification carries the
// policy's private reasoning about the quality of the previous answer; it is
// an assessment of the past, never future content.
type Action struct {
	Kind          ActionKind
	Content       string
	Justification string
}

// PolicyInput is the immutable context handed to the policy per call.
type PolicyInput struct {
	Config         model.SessionConfig
	History        []model.Turn
	QuestionsAsked int
}

// Policy decides the next interview action given full context.
type Policy interface {
	NextAction(ctx context.Context, in PolicyInput) (Action, error)
}

// AssessInput is the context for one per-turn coaching evaluation. Visible
// is the leakage-filtered history; Justification is the policy's private
// assessment extracted from the stripped next question, if any.
type AssessInput struct {
	Config        model.SessionConfig
	Visible       []model.Turn
	Justification string
}

// SummarizeInput is the context for the end-of-interview summary over the
// complete, unfiltered history.
type SummarizeInput struct {
	Config  model.SessionConfig
	History []model.Turn
}

// Evaluator produces structured coaching feedback and final summaries.
type Evaluator interface {
	Assess(ctx context.Context, in AssessInput) (model.Feedback, error)
	Summarize(ctx context.Context, in SummarizeInput) (model.Summary, error)
}

// Completer is the narrow boundary to a text-completion model backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
