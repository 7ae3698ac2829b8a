package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/logger"
)

// maxPromptTurns bounds how much history is rendered into a prompt.
const maxPromptTurns = 20

// ModelEvaluator is an evaluator backed by a text-completion model. Output
// that fails schema validation or lenient extraction is replaced by the
// default object with the raw text preserved on the feedback for diagnosis.
type ModelEvaluator struct {
	completer Completer
	log       logger.Logger
}

// NewModelEvaluator creates an evaluator over the given completion backend.
func NewModelEvaluator(completer Completer, log logger.Logger) *ModelEvaluator {
	return &ModelEvaluator{completer: completer, log: log}
}

func (e *ModelEvaluator) Assess(ctx context.Context, in AssessInput) (model.Feedback, error) {
	prompt := assessPrompt(in)
	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return model.Feedback{}, fmt.Errorf("completion failed: %w", err)
	}
	fb, parseErr := ParseFeedback(out)
	if parseErr != nil {
		if !errors.Is(parseErr, ErrMalformedOutput) {
			return model.Feedback{}, parseErr
		}
		e.log.Warn(ctx, "evaluator produced malformed feedback; substituting default",
			logger.Error(parseErr))
		fb = DefaultFeedback()
		fb.Raw = out
	}
	return fb, nil
}

func (e *ModelEvaluator) Summarize(ctx context.Context, in SummarizeInput) (model.Summary, error) {
	prompt := summarizePrompt(in)
	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		return model.Summary{}, fmt.Errorf("completion failed: %w", err)
	}
	s, parseErr := ParseSummary(out)
	if parseErr != nil {
		if !errors.Is(parseErr, ErrMalformedOutput) {
			return model.Summary{}, parseErr
		}
		e.log.Warn(ctx, "evaluator produced malformed summary; substituting default",
			logger.Error(parseErr))
		s = DefaultSummary()
	}
	return s, nil
}

func renderHistory(turns []model.Turn) string {
	if len(turns) > maxPromptTurns {
		turns = turns[len(turns)-maxPromptTurns:]
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

func assessPrompt(in AssessInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an interview coach for a %s candidate.\n", in.Config.RoleTitle)
	b.WriteString("Assess the candidate's most recent answer in the conversation below.\n")
	if in.Justification != "" {
		fmt.Fprintf(&b, "Interviewer's private note on the answer: %s\n", in.Justification)
	}
	b.WriteString("Respond with a JSON object with keys commentary, strengths, weaknesses, suggestions, score.\n\n")
	b.WriteString(renderHistory(in.Visible))
	return b.String()
}

func summarizePrompt(in SummarizeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an interview coach. Summarize the %s interview below.\n", in.Config.RoleTitle)
	b.WriteString("Respond with a JSON object with keys patterns, strengths, weaknesses, improvement_areas.\n\n")
	b.WriteString(renderHistory(in.History))
	return b.String()
}
