package agents

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/okian/greenroom/internal/domain/model"
)

// Scripted agent configuration constants.
const (
	defaultScriptSeed = 42
	shortAnswerWords  = 12
)

// Option applies a configuration option to a scripted agent.
type Option func(*scriptedBase)

// WithLatencyRange sets the simulated collaborator latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *scriptedBase) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// scriptedBase carries the latency simulation shared by the scripted agents.
type scriptedBase struct {
	minLatency time.Duration
	maxLatency time.Duration
	rng        *rand.Rand
}

func newScriptedBase(opts []Option) scriptedBase {
	base := scriptedBase{
		rng: rand.New(rand.NewSource(defaultScriptSeed)), //nolint:gosec // deterministic seed for reproducible interviews
	}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// sleep simulates remote model latency, honoring ctx.
func (s *scriptedBase) sleep(ctx context.Context) error {
	if s.maxLatency <= s.minLatency {
		return nil
	}
	latency := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(latency):
		return nil
	}
}

var questionBank = map[model.Style][]string{
	model.StyleBehavioral: {
		"Tell me about a time you disagreed with a teammate. How did you resolve it?",
		"Describe a situation where you had to deliver under a tight deadline.",
		"Tell me about a mistake you made and what you learned from it.",
		"Give an example of a time you had to influence without authority.",
		"Describe a moment you received hard feedback. What did you do next?",
	},
	model.StyleTechnical: {
		"Walk me through the architecture of a system you designed recently.",
		"How would you debug elevated tail latency in a production service?",
		"Explain a trade-off you made between consistency and availability.",
		"How do you approach testing a concurrent component?",
		"Describe how you would design a rate limiter for a public API.",
	},
	model.StyleMixed: {
		"Tell me about the project you are most proud of, technically and personally.",
		"How do you balance shipping speed against code quality?",
		"Describe a technical decision you regretted and how you handled it.",
		"How do you bring a struggling teammate up to speed on a complex system?",
		"What would you build differently if you restarted your last project?",
	},
}

// ScriptedPolicy is a deterministic interview policy used by the default
// wiring, the drill driver and tests. It models remote latency the same way
// the service would experience it against a hosted model.
type ScriptedPolicy struct {
	scriptedBase
}

// NewScriptedPolicy creates a scripted policy.
func NewScriptedPolicy(opts ...Option) *ScriptedPolicy {
	return &ScriptedPolicy{scriptedBase: newScriptedBase(opts)}
}

// NextAction returns the next question from the style's bank, or a closing
// action once the target question count is reached.
func (p *ScriptedPolicy) NextAction(ctx context.Context, in PolicyInput) (Action, error) {
	if err := p.sleep(ctx); err != nil {
		return Action{}, err
	}

	target := in.Config.TargetQuestions
	if target > 0 && in.QuestionsAsked >= target {
		return Action{
			Kind:    ActionClosing,
			Content: "That covers everything I wanted to ask. Thank you for your time today.",
		}, nil
	}

	bank, ok := questionBank[in.Config.Style]
	if !ok {
		bank = questionBank[model.StyleMixed]
	}
	question := bank[in.QuestionsAsked%len(bank)]

	action := Action{Kind: ActionQuestion, Content: question}
	if answer, ok := lastUserAnswer(in.History); ok && in.QuestionsAsked > 0 {
		action.Justification = justifyAnswer(answer)
	}
	return action, nil
}

func lastUserAnswer(turns []model.Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == model.RoleUser {
			return turns[i].Content, true
		}
	}
	return "", false
}

func justifyAnswer(answer string) string {
	words := len(strings.Fields(answer))
	if words < shortAnswerWords {
		return "previous answer was brief; probing for more depth"
	}
	return "previous answer had substance; moving to the next competency"
}

// ScriptedEvaluator is a deterministic evaluator producing feedback derived
// from simple observable features of the answer.
type ScriptedEvaluator struct {
	scriptedBase
}

// NewScriptedEvaluator creates a scripted evaluator.
func NewScriptedEvaluator(opts ...Option) *ScriptedEvaluator {
	return &ScriptedEvaluator{scriptedBase: newScriptedBase(opts)}
}

func (e *ScriptedEvaluator) Assess(ctx context.Context, in AssessInput) (model.Feedback, error) {
	if err := e.sleep(ctx); err != nil {
		return model.Feedback{}, err
	}

	answer, ok := lastUserAnswer(in.Visible)
	if !ok {
		return DefaultFeedback(), nil
	}

	words := len(strings.Fields(answer))
	fb := model.Feedback{
		Strengths:   []string{"responded directly to the question"},
		Suggestions: []string{"quantify the impact of your work where possible"},
	}
	switch {
	case words < shortAnswerWords:
		fb.Commentary = "Your answer is quite brief. Expand it with a concrete situation and the outcome."
		fb.Weaknesses = []string{"answer lacks detail"}
		fb.Score = 4
	case words > 120:
		fb.Commentary = "Good detail, but tighten the delivery. Lead with the outcome, then the how."
		fb.Weaknesses = []string{"answer runs long"}
		fb.Score = 6
	default:
		fb.Commentary = "Solid, well-scoped answer. Keep anchoring claims to specific examples."
		fb.Weaknesses = []string{"could name measurable results"}
		fb.Score = 7
	}
	if in.Justification != "" {
		fb.Suggestions = append(fb.Suggestions, "interviewer noted: "+in.Justification)
	}
	return fb, nil
}

func (e *ScriptedEvaluator) Summarize(ctx context.Context, in SummarizeInput) (model.Summary, error) {
	if err := e.sleep(ctx); err != nil {
		return model.Summary{}, err
	}

	var short, long, total int
	for _, t := range in.History {
		if t.Role != model.RoleUser {
			continue
		}
		total++
		words := len(strings.Fields(t.Content))
		switch {
		case words < shortAnswerWords:
			short++
		case words > 120:
			long++
		}
	}

	s := model.Summary{
		Strengths:        []string{"stayed engaged through the full interview"},
		Weaknesses:       []string{"answers need more measurable outcomes"},
		ImprovementAreas: []string{"structuring answers", "quantifying impact"},
		Resources:        []model.Resource{},
	}
	switch {
	case total > 0 && short*2 > total:
		s.Patterns = []string{"answers trend short and under-developed"}
		s.Weaknesses = append(s.Weaknesses, "insufficient detail in most answers")
	case total > 0 && long*2 > total:
		s.Patterns = []string{"answers trend long and unfocused"}
		s.Weaknesses = append(s.Weaknesses, "key points get buried in detail")
	default:
		s.Patterns = []string{"answer length is well calibrated"}
	}
	return s, nil
}
