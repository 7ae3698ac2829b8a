package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/greenroom/internal/adapters/search"
	"github.com/okian/greenroom/internal/agents"
	"github.com/okian/greenroom/internal/bus"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/orchestrator"
	"github.com/okian/greenroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errDown = errors.New("collaborator down")

type brokenEvaluator struct{}

func (brokenEvaluator) Assess(ctx context.Context, in agents.AssessInput) (model.Feedback, error) {
	return model.Feedback{}, errDown
}

func (brokenEvaluator) Summarize(ctx context.Context, in agents.SummarizeInput) (model.Summary, error) {
	return model.Summary{}, errDown
}

// recordingEvaluator captures the visible history handed to each assessment.
type recordingEvaluator struct {
	mu      sync.Mutex
	visible [][]model.Turn
	justs   []string
}

func (e *recordingEvaluator) Assess(ctx context.Context, in agents.AssessInput) (model.Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = append(e.visible, in.Visible)
	e.justs = append(e.justs, in.Justification)
	return model.Feedback{Commentary: "solid answer", Score: 7}, nil
}

func (e *recordingEvaluator) Summarize(ctx context.Context, in agents.SummarizeInput) (model.Summary, error) {
	return model.Summary{
		Strengths:        []string{"clear communication"},
		Weaknesses:       []string{"answers lacked metrics"},
		ImprovementAreas: []string{"quantifying impact"},
	}, nil
}

func newScripted() (agents.Policy, agents.Evaluator) {
	return agents.NewScriptedPolicy(), agents.NewScriptedEvaluator()
}

func testConfig(target int) model.SessionConfig {
	return model.SessionConfig{
		RoleTitle:       "Backend Engineer",
		Organization:    "Initech",
		Style:           model.StyleBehavioral,
		Difficulty:      model.DifficultyMedium,
		TargetQuestions: target,
	}
}

func TestSingleQuestionInterview(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session targeting a single question", t, func() {
		policy, evaluator := newScripted()
		state := model.NewSessionState("s-1", testConfig(1))
		o := orchestrator.New(state, policy, evaluator)

		Convey("When the candidate signals readiness", func() {
			reply, err := o.ProcessMessage(ctx, "I'm ready.")

			Convey("Then the interviewer opens with a question", func() {
				So(err, ShouldBeNil)
				So(reply.Role, ShouldEqual, model.RoleAssistant)
				So(reply.ResponseType, ShouldEqual, model.ResponseQuestion)
				So(reply.Content, ShouldNotBeEmpty)
				So(o.Phase(), ShouldEqual, model.PhaseQuestioning)
			})

			Convey("And when the candidate answers", func() {
				_, err := o.ProcessMessage(ctx, "I led the migration of our billing system to a new queue, cutting incident volume by 40 percent over two quarters.")

				Convey("Then coaching feedback is appended and the interview heads to its close", func() {
					So(err, ShouldBeNil)
					So(o.Phase(), ShouldEqual, model.PhaseSummarizing)

					history := o.History()
					var coaching *model.Turn
					for i := range history {
						if history[i].ResponseType == model.ResponseCoaching {
							coaching = &history[i]
						}
					}
					So(coaching, ShouldNotBeNil)
					So(coaching.Agent, ShouldEqual, model.AgentEvaluator)
					So(coaching.Feedback, ShouldNotBeNil)
				})

				Convey("Then ending the interview yields a summary", func() {
					summary, err := o.EndInterview(ctx)
					So(err, ShouldBeNil)
					So(summary.Strengths, ShouldNotBeEmpty)
					So(o.Phase(), ShouldEqual, model.PhaseEnded)

					stored, ok := o.Summary()
					So(ok, ShouldBeTrue)
					So(stored.Strengths, ShouldResemble, summary.Strengths)
				})
			})
		})
	})
}

func TestResetMidInterview(t *testing.T) {
	ctx := context.Background()

	Convey("Given an interview two answers in", t, func() {
		policy, evaluator := newScripted()
		state := model.NewSessionState("s-2", testConfig(5))
		o := orchestrator.New(state, policy, evaluator)

		_, err := o.ProcessMessage(ctx, "Ready when you are.")
		So(err, ShouldBeNil)
		_, err = o.ProcessMessage(ctx, "I rebuilt our deploy pipeline after a string of failed releases.")
		So(err, ShouldBeNil)
		So(len(o.History()), ShouldBeGreaterThan, 3)

		Convey("When the session is reset", func() {
			o.Reset(ctx)

			Convey("Then the history is empty and the phase is back at the introduction", func() {
				So(o.History(), ShouldBeEmpty)
				So(o.Phase(), ShouldEqual, model.PhaseIntroducing)
				So(o.Stats().QuestionsAsked, ShouldEqual, 0)
			})

			Convey("Then a new message starts the interview from scratch", func() {
				reply, err := o.ProcessMessage(ctx, "Let's go again.")
				So(err, ShouldBeNil)
				So(reply.ResponseType, ShouldEqual, model.ResponseQuestion)
				So(o.Stats().QuestionsAsked, ShouldEqual, 1)
			})
		})
	})
}

func TestEvaluatorFailureFallback(t *testing.T) {
	ctx := context.Background()

	Convey("Given an evaluator that raises on every call", t, func() {
		policy := agents.NewScriptedPolicy()
		state := model.NewSessionState("s-3", testConfig(3))

		var errorEvents int
		events := bus.New()
		events.Subscribe(bus.ErrorRaised, func(ctx context.Context, e bus.Event) {
			errorEvents++
		})
		o := orchestrator.New(state, policy, brokenEvaluator{}, orchestrator.WithBus(events))

		_, err := o.ProcessMessage(ctx, "I'm ready.")
		So(err, ShouldBeNil)

		Convey("When the candidate answers", func() {
			reply, err := o.ProcessMessage(ctx, "I designed the caching layer for our product search.")

			Convey("Then the cycle still completes with fallback coaching", func() {
				So(err, ShouldBeNil)
				So(reply.ResponseType, ShouldEqual, model.ResponseQuestion)

				history := o.History()
				last := history[len(history)-1]
				So(last.ResponseType, ShouldEqual, model.ResponseCoaching)
				So(last.Feedback, ShouldNotBeNil)
				So(last.Feedback.Score, ShouldEqual, agents.DefaultFeedback().Score)
				So(errorEvents, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the interview is force ended", func() {
			summary, err := o.EndInterview(ctx)

			Convey("Then the default summary is substituted", func() {
				So(err, ShouldBeNil)
				So(summary.Strengths, ShouldNotBeEmpty)
				So(o.Phase(), ShouldEqual, model.PhaseEnded)
			})
		})
	})
}

func TestLeakageFilterApplied(t *testing.T) {
	ctx := context.Background()

	Convey("Given an evaluator recording what it is shown", t, func() {
		policy := agents.NewScriptedPolicy()
		evaluator := &recordingEvaluator{}
		state := model.NewSessionState("s-4", testConfig(4))
		o := orchestrator.New(state, policy, evaluator)

		_, err := o.ProcessMessage(ctx, "I'm ready.")
		So(err, ShouldBeNil)

		Convey("When the candidate answers a question", func() {
			_, err := o.ProcessMessage(ctx, "A short answer.")
			So(err, ShouldBeNil)

			Convey("Then the visible history ends at the candidate's answer", func() {
				So(evaluator.visible, ShouldHaveLength, 1)
				visible := evaluator.visible[0]
				So(visible, ShouldNotBeEmpty)
				last := visible[len(visible)-1]
				So(last.Role, ShouldEqual, model.RoleUser)
				for _, turn := range visible {
					if turn.IsPolicyAssistant() && turn.ResponseType == model.ResponseQuestion {
						// Earlier questions stay; only the pending one is stripped.
						So(turn.ID, ShouldNotEqual, o.History()[len(o.History())-2].ID)
					}
				}
			})

			Convey("Then the stripped question's justification reaches the evaluator", func() {
				So(evaluator.justs, ShouldHaveLength, 1)
				So(evaluator.justs[0], ShouldNotBeEmpty)
			})
		})
	})
}

func TestEndedSessionRejectsMessages(t *testing.T) {
	ctx := context.Background()

	Convey("Given an ended session", t, func() {
		policy, evaluator := newScripted()
		state := model.NewSessionState("s-5", testConfig(1))
		o := orchestrator.New(state, policy, evaluator)

		_, err := o.ProcessMessage(ctx, "Ready.")
		So(err, ShouldBeNil)
		_, err = o.EndInterview(ctx)
		So(err, ShouldBeNil)

		Convey("When another message arrives", func() {
			_, err := o.ProcessMessage(ctx, "One more thing.")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, orchestrator.ErrSessionEnded), ShouldBeTrue)
			})
		})

		Convey("When the interview is ended again", func() {
			summary, err := o.EndInterview(ctx)

			Convey("Then the stored summary is returned", func() {
				So(err, ShouldBeNil)
				So(summary.Strengths, ShouldNotBeEmpty)
			})
		})
	})
}

func TestSummaryResources(t *testing.T) {
	ctx := context.Background()

	Convey("Given an orchestrator with a resource fanout", t, func() {
		policy := agents.NewScriptedPolicy()
		evaluator := &recordingEvaluator{}
		fanout := search.NewFanout(search.NewStaticSearcher())
		state := model.NewSessionState("s-6", testConfig(2))
		o := orchestrator.New(state, policy, evaluator, orchestrator.WithFanout(fanout))

		_, err := o.ProcessMessage(ctx, "I'm ready.")
		So(err, ShouldBeNil)

		Convey("When the interview ends", func() {
			summary, err := o.EndInterview(ctx)

			Convey("Then resources are attached for the improvement areas", func() {
				So(err, ShouldBeNil)
				So(summary.Resources, ShouldNotBeEmpty)
				So(summary.Resources[0].Topic, ShouldEqual, "quantifying impact")
			})
		})
	})
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()

	Convey("Given an orchestrator wired to a bus", t, func() {
		policy, evaluator := newScripted()
		state := model.NewSessionState("s-7", testConfig(1))

		var mu sync.Mutex
		seen := map[bus.Kind]int{}
		events := bus.New()
		for _, kind := range []bus.Kind{
			bus.UserMessageReceived,
			bus.AssistantResponseProduced,
			bus.SessionEnded,
			bus.SessionReset,
		} {
			k := kind
			events.Subscribe(k, func(ctx context.Context, e bus.Event) {
				mu.Lock()
				defer mu.Unlock()
				seen[k]++
				So(e.Payload["session_id"], ShouldEqual, "s-7")
			})
		}
		o := orchestrator.New(state, policy, evaluator, orchestrator.WithBus(events))

		Convey("When a full interview runs", func() {
			_, err := o.ProcessMessage(ctx, "Ready.")
			So(err, ShouldBeNil)
			_, err = o.EndInterview(ctx)
			So(err, ShouldBeNil)
			o.Reset(ctx)

			Convey("Then each lifecycle event fired", func() {
				So(seen[bus.UserMessageReceived], ShouldEqual, 1)
				So(seen[bus.AssistantResponseProduced], ShouldBeGreaterThanOrEqualTo, 1)
				So(seen[bus.SessionEnded], ShouldEqual, 1)
				So(seen[bus.SessionReset], ShouldEqual, 1)
			})
		})
	})
}
