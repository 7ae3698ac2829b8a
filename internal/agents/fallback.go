package agents

import "github.com/okian/greenroom/internal/domain/model"

// Deterministic substitutes used when a collaborator call has failed after
// its bounded retry. The turn pipeline always completes; raw failures never
// surface as interviewer dialogue.

// DefaultFeedback is the feedback substituted when the evaluator is
// unavailable.
func DefaultFeedback() model.Feedback {
	return model.Feedback{
		Commentary:  "Noted. Keep your answers structured and back them with a concrete example.",
		Strengths:   []string{"engaged with the question"},
		Weaknesses:  []string{"feedback unavailable for this turn"},
		Suggestions: []string{"structure answers with situation, action and result"},
		Score:       5,
	}
}

// DefaultSummary is the summary substituted when the evaluator fails during
// the closing step.
func DefaultSummary() model.Summary {
	return model.Summary{
		Patterns:         []string{"summary generation was unavailable for this session"},
		Strengths:        []string{"completed the interview"},
		Weaknesses:       []string{"detailed analysis unavailable"},
		ImprovementAreas: []string{"retry ending the session to regenerate the summary"},
		Resources:        []model.Resource{},
	}
}

// DefaultQuestion is the question substituted when the policy is
// unavailable mid-interview.
func DefaultQuestion() Action {
	return Action{
		Kind:    ActionQuestion,
		Content: "Tell me about a recent piece of work you are proud of, and what made it challenging.",
	}
}
