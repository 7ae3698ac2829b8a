package agents_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/greenroom/internal/agents"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const goodFeedback = `{
	"commentary": "Strong answer.",
	"strengths": ["specific example"],
	"weaknesses": ["no metrics"],
	"suggestions": ["quantify impact"],
	"score": 8
}`

func TestParseFeedback(t *testing.T) {
	Convey("Given well-formed feedback JSON", t, func() {
		fb, err := agents.ParseFeedback(goodFeedback)
		So(err, ShouldBeNil)
		So(fb.Commentary, ShouldEqual, "Strong answer.")
		So(fb.Score, ShouldEqual, 8)
	})

	Convey("Given JSON wrapped in model prose", t, func() {
		text := "Sure! Here is the assessment:\n```json\n" + goodFeedback + "\n```\nHope that helps."
		fb, err := agents.ParseFeedback(text)
		So(err, ShouldBeNil)
		So(fb.Strengths, ShouldResemble, []string{"specific example"})
	})

	Convey("Given JSON with a trailing comma", t, func() {
		text := `{"commentary": "ok", "strengths": ["a",], "weaknesses": [], "suggestions": [], "score": 5,}`
		fb, err := agents.ParseFeedback(text)
		So(err, ShouldBeNil)
		So(fb.Score, ShouldEqual, 5)
	})

	Convey("Given output with no JSON at all", t, func() {
		_, err := agents.ParseFeedback("the candidate did fine I suppose")
		So(errors.Is(err, agents.ErrMalformedOutput), ShouldBeTrue)
	})

	Convey("Given JSON missing required fields", t, func() {
		_, err := agents.ParseFeedback(`{"commentary": "ok"}`)
		So(errors.Is(err, agents.ErrMalformedOutput), ShouldBeTrue)
	})

	Convey("Given a score outside the schema range", t, func() {
		_, err := agents.ParseFeedback(`{"commentary":"x","strengths":[],"weaknesses":[],"suggestions":[],"score":42}`)
		So(errors.Is(err, agents.ErrMalformedOutput), ShouldBeTrue)
	})
}

func TestParseSummary(t *testing.T) {
	Convey("Given well-formed summary JSON", t, func() {
		s, err := agents.ParseSummary(`{
			"patterns": ["short answers"],
			"strengths": ["clarity"],
			"weaknesses": ["examples"],
			"improvement_areas": ["structure"]
		}`)
		So(err, ShouldBeNil)
		So(s.Patterns, ShouldResemble, []string{"short answers"})
	})

	Convey("Given malformed summary output", t, func() {
		_, err := agents.ParseSummary(`{"patterns": "not an array"}`)
		So(errors.Is(err, agents.ErrMalformedOutput), ShouldBeTrue)
	})
}

// staticCompleter returns a fixed completion.
type staticCompleter string

func (c staticCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return string(c), nil
}

func TestModelEvaluator(t *testing.T) {
	ctx := context.Background()
	visible := []model.Turn{model.NewTurn(model.RoleUser, model.AgentNone, "my answer", "")}

	Convey("Given a backend returning valid JSON", t, func() {
		e := agents.NewModelEvaluator(staticCompleter(goodFeedback), logger.Named("test"))

		Convey("Then assessment parses the structured feedback", func() {
			fb, err := e.Assess(ctx, agents.AssessInput{Visible: visible})
			So(err, ShouldBeNil)
			So(fb.Score, ShouldEqual, 8)
			So(fb.Raw, ShouldBeEmpty)
		})
	})

	Convey("Given a backend returning prose without JSON", t, func() {
		e := agents.NewModelEvaluator(staticCompleter("the answer was acceptable"), logger.Named("test"))

		Convey("Then the default is substituted and the raw text preserved", func() {
			fb, err := e.Assess(ctx, agents.AssessInput{Visible: visible})
			So(err, ShouldBeNil)
			So(fb.Score, ShouldEqual, agents.DefaultFeedback().Score)
			So(fb.Raw, ShouldEqual, "the answer was acceptable")
		})
	})
}
