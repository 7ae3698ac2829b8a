package filter_test

import (
	"fmt"
	"testing"

	"github.com/okian/greenroom/internal/domain/filter"
	"github.com/okian/greenroom/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func userTurn(content string) model.Turn {
	return model.NewTurn(model.RoleUser, model.AgentNone, content, "")
}

func questionTurn(content string) model.Turn {
	return model.NewTurn(model.RoleAssistant, model.AgentPolicy, content, model.ResponseQuestion)
}

func coachingTurn(content string) model.Turn {
	return model.NewTurn(model.RoleAssistant, model.AgentEvaluator, content, model.ResponseCoaching)
}

func TestVisible(t *testing.T) {
	Convey("Given a history ending with the user's answer", t, func() {
		turns := []model.Turn{userTurn("ready"), questionTurn("q1"), userTurn("answer")}

		Convey("Then the sequence passes unmodified", func() {
			visible, justification := filter.Visible(turns)
			So(visible, ShouldHaveLength, 3)
			So(justification, ShouldBeEmpty)
		})
	})

	Convey("Given a history ending with the unseen next question", t, func() {
		q := questionTurn("q2").WithMeta(model.MetaJustification, "answer lacked depth")
		turns := []model.Turn{userTurn("ready"), questionTurn("q1"), userTurn("answer"), q}

		Convey("Then the question is stripped and its justification surfaced", func() {
			visible, justification := filter.Visible(turns)
			So(visible, ShouldHaveLength, 3)
			So(visible[len(visible)-1].Role, ShouldEqual, model.RoleUser)
			So(justification, ShouldEqual, "answer lacked depth")
		})
	})

	Convey("Given a policy that emitted an acknowledgment plus a question", t, func() {
		ack := model.NewTurn(model.RoleAssistant, model.AgentPolicy, "Thanks for that.", model.ResponseFeedback)
		q := questionTurn("q2").WithMeta(model.MetaJustification, "probe deeper")
		turns := []model.Turn{userTurn("answer"), ack, q}

		Convey("Then every trailing policy turn is stripped", func() {
			visible, justification := filter.Visible(turns)
			So(visible, ShouldHaveLength, 1)
			So(visible[0].Role, ShouldEqual, model.RoleUser)
			So(justification, ShouldEqual, "probe deeper")
		})
	})

	Convey("Given a history ending with a coaching turn", t, func() {
		turns := []model.Turn{userTurn("answer"), coachingTurn("well done")}

		Convey("Then evaluator turns are not stripped", func() {
			visible, _ := filter.Visible(turns)
			So(visible, ShouldHaveLength, 2)
		})
	})

	Convey("Given an empty history", t, func() {
		visible, justification := filter.Visible(nil)
		So(visible, ShouldBeEmpty)
		So(justification, ShouldBeEmpty)
	})

	Convey("Given histories of every length ending with one next question", t, func() {
		for n := 2; n <= 12; n++ {
			n := n
			Convey(fmt.Sprintf("Then a %d-turn history filters to %d turns", n, n-1), func() {
				turns := make([]model.Turn, 0, n)
				for i := 0; i < n-1; i++ {
					if i%2 == 0 {
						turns = append(turns, userTurn(fmt.Sprintf("u%d", i)))
					} else {
						turns = append(turns, coachingTurn(fmt.Sprintf("c%d", i)))
					}
				}
				turns = append(turns, questionTurn("next"))

				visible, _ := filter.Visible(turns)
				So(visible, ShouldHaveLength, n-1)
			})
		}
	})
}
