// Package orchestrator drives one interview session through its phase
// machine. An Orchestrator owns exactly one SessionState and mutates it
// exclusively; it is not safe for concurrent use and relies on the registry
// to serialize access per session.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/greenroom/internal/adapters/search"
	"github.com/okian/greenroom/internal/agents"
	"github.com/okian/greenroom/internal/bus"
	"github.com/okian/greenroom/internal/domain/filter"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/domain/types"
	"github.com/okian/greenroom/pkg/logger"
	"github.com/okian/greenroom/pkg/metrics"
)

const eventSource = "orchestrator"

// Orchestrator sequences policy and evaluator calls for one session.
type Orchestrator struct {
	state     *model.SessionState
	policy    agents.Policy
	evaluator agents.Evaluator
	fanout    *search.Fanout
	events    *bus.Bus
	log       logger.Logger
}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithBus sets the event bus notified of session lifecycle events.
func WithBus(b *bus.Bus) Option {
	return func(o *Orchestrator) {
		o.events = b
	}
}

// WithFanout sets the resource lookup used while building the final summary.
func WithFanout(f *search.Fanout) Option {
	return func(o *Orchestrator) {
		o.fanout = f
	}
}

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates an orchestrator owning state. The policy and evaluator are
// required; bus and fanout are optional collaborators.
func New(state *model.SessionState, policy agents.Policy, evaluator agents.Evaluator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:     state,
		policy:    policy,
		evaluator: evaluator,
		log:       logger.Get().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the owned session's identifier.
func (o *Orchestrator) ID() string {
	return o.state.ID
}

// Phase returns the current interview phase.
func (o *Orchestrator) Phase() model.Phase {
	return o.state.Phase
}

// Snapshot returns a deep copy of the owned state, safe to persist while the
// orchestrator keeps mutating the original.
func (o *Orchestrator) Snapshot() model.SessionState {
	return o.state.Snapshot()
}

// ProcessMessage runs one full interview cycle for a candidate message:
// append the user turn, obtain the next interviewer action, and coach the
// answer through the leakage filter. The returned turn is the interviewer's
// reply (a question, or the closing acknowledgement when the interview is
// complete). Collaborator failures are absorbed by deterministic fallbacks;
// the only error condition is messaging an ended session.
func (o *Orchestrator) ProcessMessage(ctx context.Context, content string) (model.Turn, error) {
	if o.state.Phase == model.PhaseEnded {
		return model.Turn{}, ErrSessionEnded
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		o.state.Processing += elapsed
		o.state.TurnsProcessed++
		metrics.RecordTurnProcessed()
		metrics.RecordTurnLatency(float64(elapsed.Milliseconds()))
	}()

	o.state.Append(model.NewTurn(model.RoleUser, model.AgentNone, content, ""))
	o.publish(ctx, bus.UserMessageReceived, map[string]any{
		"content_length": len(content),
		"phase":          string(o.state.Phase),
	})

	// The first candidate message moves the interview out of the
	// introduction and earns a greeting before the opening question.
	opening := o.state.Phase == model.PhaseIntroducing
	if opening {
		o.state.Phase = model.PhaseQuestioning
		o.state.Append(model.NewTurn(model.RoleAssistant, model.AgentPolicy, o.greeting(), model.ResponseIntroduction))
	}

	action := o.nextAction(ctx)

	if action.Kind == agents.ActionClosing {
		reply := model.NewTurn(model.RoleAssistant, model.AgentPolicy, action.Content, model.ResponseClosing)
		if action.Justification != "" {
			reply = reply.WithMeta(model.MetaJustification, action.Justification)
		}
		o.state.Append(reply)
		o.publish(ctx, bus.AssistantResponseProduced, map[string]any{
			"response_type": string(model.ResponseClosing),
		})
		if !opening {
			o.coach(ctx)
		}
		o.state.Phase = model.PhaseSummarizing
		return reply, nil
	}

	o.state.QuestionsAsked++
	metrics.RecordQuestionAsked()
	reply := model.NewTurn(model.RoleAssistant, model.AgentPolicy, action.Content, model.ResponseQuestion)
	if action.Justification != "" {
		reply = reply.WithMeta(model.MetaJustification, action.Justification)
	}
	o.state.Append(reply)
	o.publish(ctx, bus.AssistantResponseProduced, map[string]any{
		"response_type":   string(model.ResponseQuestion),
		"questions_asked": o.state.QuestionsAsked,
	})
	if !opening {
		o.coach(ctx)
	}
	return reply, nil
}

// EndInterview forces the session to its conclusion and returns the final
// summary. Ending an already ended session returns the stored summary again.
func (o *Orchestrator) EndInterview(ctx context.Context) (model.Summary, error) {
	if o.state.Phase == model.PhaseEnded {
		if o.state.Summary != nil {
			return o.state.Summary.Clone(), nil
		}
		return agents.DefaultSummary(), nil
	}

	start := time.Now()
	defer func() {
		o.state.Processing += time.Since(start)
	}()

	o.state.Phase = model.PhaseSummarizing

	summary, err := o.evaluator.Summarize(ctx, agents.SummarizeInput{
		Config:  o.state.Config,
		History: o.state.HistorySnapshot(),
	})
	if err != nil {
		summary = agents.DefaultSummary()
		o.state.LastError = err.Error()
		o.log.Warn(ctx, "summary generation failed, substituting default",
			logger.String("session_id", o.state.ID),
			logger.Error(err),
		)
		o.publishError(ctx, "summarize", err)
	}

	if o.fanout != nil {
		if topics := summaryTopics(summary); len(topics) > 0 {
			summary.Resources = o.fanout.Lookup(ctx, topics)
		}
	}

	stored := summary.Clone()
	o.state.Summary = &stored
	o.state.Phase = model.PhaseEnded
	metrics.RecordSessionEnded()
	o.publish(ctx, bus.SessionEnded, map[string]any{
		"questions_asked": o.state.QuestionsAsked,
		"total_turns":     len(o.state.Turns),
	})
	return summary, nil
}

// Reset wipes the conversation and returns the session to a fresh
// introduction with the same id and configuration.
func (o *Orchestrator) Reset(ctx context.Context) {
	o.state.Reset()
	metrics.RecordSessionReset()
	o.publish(ctx, bus.SessionReset, nil)
}

// History returns a deep copy of the full turn sequence.
func (o *Orchestrator) History() []model.Turn {
	return o.state.HistorySnapshot()
}

// Summary returns the stored final summary, or false when the interview has
// not produced one yet.
func (o *Orchestrator) Summary() (model.Summary, bool) {
	if o.state.Summary == nil {
		return model.Summary{}, false
	}
	return o.state.Summary.Clone(), true
}

// Stats projects the session's counters into the read shape.
func (o *Orchestrator) Stats() types.Stats {
	st := types.Stats{
		Phase:            string(o.state.Phase),
		TotalTurns:       len(o.state.Turns),
		QuestionsAsked:   o.state.QuestionsAsked,
		TurnsProcessed:   o.state.TurnsProcessed,
		ProcessingMillis: o.state.Processing.Milliseconds(),
	}
	for _, t := range o.state.Turns {
		switch t.Role {
		case model.RoleUser:
			st.UserTurns++
		case model.RoleAssistant:
			st.AssistantTurns++
		case model.RoleSystem:
			st.SystemTurns++
		}
	}
	return st
}

// nextAction asks the policy for its decision, substituting the fallback
// question when the policy is unavailable.
func (o *Orchestrator) nextAction(ctx context.Context) agents.Action {
	action, err := o.policy.NextAction(ctx, agents.PolicyInput{
		Config:         o.state.Config,
		History:        o.state.HistorySnapshot(),
		QuestionsAsked: o.state.QuestionsAsked,
	})
	if err != nil {
		o.state.LastError = err.Error()
		o.log.Warn(ctx, "policy failed, substituting fallback question",
			logger.String("session_id", o.state.ID),
			logger.Error(err),
		)
		o.publishError(ctx, "next_action", err)
		return agents.DefaultQuestion()
	}
	return action
}

// coach evaluates the candidate's latest answer over the leakage-filtered
// history and appends the resulting coaching turn. Evaluator failure yields
// the default feedback; the cycle always completes.
func (o *Orchestrator) coach(ctx context.Context) {
	visible, justification := filter.Visible(o.state.HistorySnapshot())
	fb, err := o.evaluator.Assess(ctx, agents.AssessInput{
		Config:        o.state.Config,
		Visible:       visible,
		Justification: justification,
	})
	if err != nil {
		fb = agents.DefaultFeedback()
		o.state.LastError = err.Error()
		metrics.RecordCoachingFallback()
		o.log.Warn(ctx, "assessment failed, substituting default feedback",
			logger.String("session_id", o.state.ID),
			logger.Error(err),
		)
		o.publishError(ctx, "assess", err)
	}

	turn := model.NewTurn(model.RoleAssistant, model.AgentEvaluator, fb.Commentary, model.ResponseCoaching)
	if fb.Raw != "" {
		turn = turn.WithMeta(model.MetaRaw, fb.Raw)
		fb.Raw = ""
	}
	stored := fb.Clone()
	turn.Feedback = &stored
	o.state.Append(turn)
	o.publish(ctx, bus.AssistantResponseProduced, map[string]any{
		"response_type": string(model.ResponseCoaching),
		"score":         fb.Score,
	})
}

func (o *Orchestrator) greeting() string {
	cfg := o.state.Config
	var b strings.Builder
	b.WriteString("Welcome, and thanks for making the time.")
	if cfg.RoleTitle != "" {
		if cfg.Organization != "" {
			fmt.Fprintf(&b, " This is a mock interview for the %s role at %s.", cfg.RoleTitle, cfg.Organization)
		} else {
			fmt.Fprintf(&b, " This is a mock interview for the %s role.", cfg.RoleTitle)
		}
	}
	b.WriteString(" Answer as you would in a real interview; you will get coaching feedback along the way. Let's begin.")
	return b.String()
}

func (o *Orchestrator) publish(ctx context.Context, kind bus.Kind, payload map[string]any) {
	if o.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["session_id"] = o.state.ID
	o.events.Publish(ctx, bus.Event{Kind: kind, Source: eventSource, Payload: payload})
}

func (o *Orchestrator) publishError(ctx context.Context, op string, err error) {
	if o.events == nil {
		return
	}
	o.events.Publish(ctx, bus.Event{
		Kind:   bus.ErrorRaised,
		Source: eventSource,
		Payload: map[string]any{
			"session_id": o.state.ID,
			"op":         op,
			"error":      err.Error(),
		},
	})
}

// summaryTopics picks the lookup topics for learning resources, preferring
// the concrete improvement areas over the raw weakness sentences.
func summaryTopics(s model.Summary) []string {
	if len(s.ImprovementAreas) > 0 {
		return s.ImprovementAreas
	}
	return s.Weaknesses
}
