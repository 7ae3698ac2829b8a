// Package model contains domain entities passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Agent identifies the sub-agent that originated a turn. Turns typed by the
// user carry AgentNone.
type Agent string

const (
	AgentNone      Agent = ""
	AgentPolicy    Agent = "interview-policy"
	AgentEvaluator Agent = "evaluator"
)

// ResponseType tags what a turn represents in the interview protocol.
type ResponseType string

const (
	ResponseIntroduction ResponseType = "introduction"
	ResponseQuestion     ResponseType = "question"
	ResponseFeedback     ResponseType = "feedback"
	ResponseClosing      ResponseType = "closing"
	ResponseCoaching     ResponseType = "coaching-feedback"
)

// MetaJustification is the metadata key carrying the interview policy's
// private reasoning about the quality of the previous answer.
const MetaJustification = "justification"

// MetaRaw preserves unparseable collaborator output for diagnosis.
const MetaRaw = "raw"

// Turn is one exchange unit of the conversation. Turns are append-only;
// insertion order is meaningful and never changed.
type Turn struct {
	ID           string            `json:"id"`
	Role         Role              `json:"role"`
	Agent        Agent             `json:"agent,omitempty"`
	Content      string            `json:"content"`
	Feedback     *Feedback         `json:"feedback,omitempty"`
	ResponseType ResponseType      `json:"response_type,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewTurn creates a turn with a fresh id and creation timestamp.
func NewTurn(role Role, agent Agent, content string, rt ResponseType) Turn {
	return Turn{
		ID:           uuid.NewString(),
		Role:         role,
		Agent:        agent,
		Content:      content,
		ResponseType: rt,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithMeta returns a copy of the turn with key set in its metadata.
func (t Turn) WithMeta(key, value string) Turn {
	meta := make(map[string]string, len(t.Metadata)+1)
	for k, v := range t.Metadata {
		meta[k] = v
	}
	meta[key] = value
	t.Metadata = meta
	return t
}

// IsPolicyAssistant reports whether the turn is a next-question candidate:
// spoken by the assistant and originated by the interview policy.
func (t Turn) IsPolicyAssistant() bool {
	return t.Role == RoleAssistant && t.Agent == AgentPolicy
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	c := t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	if t.Feedback != nil {
		fb := t.Feedback.Clone()
		c.Feedback = &fb
	}
	return c
}

// Feedback is the structured per-turn coaching object. Raw preserves the
// collaborator's unparseable output when the structured fields had to be
// substituted by defaults.
type Feedback struct {
	Commentary  string   `json:"commentary"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
	Score       int      `json:"score"`
	Raw         string   `json:"raw,omitempty"`
}

// Clone returns a deep copy of the feedback.
func (f Feedback) Clone() Feedback {
	return Feedback{
		Commentary:  f.Commentary,
		Strengths:   append([]string(nil), f.Strengths...),
		Weaknesses:  append([]string(nil), f.Weaknesses...),
		Suggestions: append([]string(nil), f.Suggestions...),
		Score:       f.Score,
		Raw:         f.Raw,
	}
}

// Resource is one recommended learning resource for a weakness topic.
type Resource struct {
	Topic string `json:"topic"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Summary is the end-of-interview coaching summary.
type Summary struct {
	Patterns         []string   `json:"patterns"`
	Strengths        []string   `json:"strengths"`
	Weaknesses       []string   `json:"weaknesses"`
	ImprovementAreas []string   `json:"improvement_areas"`
	Resources        []Resource `json:"resources"`
}

// Clone returns a deep copy of the summary.
func (s Summary) Clone() Summary {
	return Summary{
		Patterns:         append([]string(nil), s.Patterns...),
		Strengths:        append([]string(nil), s.Strengths...),
		Weaknesses:       append([]string(nil), s.Weaknesses...),
		ImprovementAreas: append([]string(nil), s.ImprovementAreas...),
		Resources:        append([]Resource(nil), s.Resources...),
	}
}
