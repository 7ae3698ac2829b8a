package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/greenroom/internal/adapters/store"
	"github.com/okian/greenroom/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleState(id string) model.SessionState {
	state := model.NewSessionState(id, model.SessionConfig{
		RoleTitle:       "Backend Engineer",
		Style:           model.StyleTechnical,
		Difficulty:      model.DifficultyMedium,
		TargetQuestions: 3,
	})
	state.Append(model.NewTurn(model.RoleUser, model.AgentNone, "ready", ""))
	q := model.NewTurn(model.RoleAssistant, model.AgentPolicy, "Why Go?", model.ResponseQuestion)
	state.Append(q.WithMeta(model.MetaJustification, "opening probe"))
	state.Phase = model.PhaseQuestioning
	state.QuestionsAsked = 1
	return *state
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := store.NewMemoryStore()

		Convey("When loading an unknown id", func() {
			_, err := s.Load(ctx, "missing")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When saving and loading a session", func() {
			state := sampleState("sess-1")
			So(s.Save(ctx, "sess-1", state), ShouldBeNil)
			loaded, err := s.Load(ctx, "sess-1")

			Convey("Then the state round-trips", func() {
				So(err, ShouldBeNil)
				So(loaded.ID, ShouldEqual, "sess-1")
				So(loaded.Turns, ShouldHaveLength, 2)
				So(loaded.Turns[1].Metadata[model.MetaJustification], ShouldEqual, "opening probe")
			})

			Convey("Then mutating the loaded copy does not affect the store", func() {
				loaded.Turns[0].Content = "mutated"
				again, err := s.Load(ctx, "sess-1")
				So(err, ShouldBeNil)
				So(again.Turns[0].Content, ShouldEqual, "ready")
			})
		})

		Convey("When saving with an empty id", func() {
			err := s.Save(ctx, "", sampleState(""))

			Convey("Then the save is rejected", func() {
				So(errors.Is(err, store.ErrInvalidID), ShouldBeTrue)
			})
		})
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a file store in a temp directory", t, func() {
		s, err := store.NewFileStore(t.TempDir())
		So(err, ShouldBeNil)

		Convey("When loading an unknown id", func() {
			_, err := s.Load(ctx, "missing")
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})

		Convey("When saving and loading a session", func() {
			state := sampleState("sess-file")
			So(s.Save(ctx, "sess-file", state), ShouldBeNil)
			loaded, err := s.Load(ctx, "sess-file")

			Convey("Then the document round-trips losslessly", func() {
				So(err, ShouldBeNil)
				So(loaded.Config, ShouldResemble, state.Config)
				So(loaded.Phase, ShouldEqual, model.PhaseQuestioning)
				So(loaded.Turns, ShouldHaveLength, 2)
				So(loaded.QuestionsAsked, ShouldEqual, 1)
			})
		})

		Convey("When overwriting an existing session", func() {
			state := sampleState("sess-ow")
			So(s.Save(ctx, "sess-ow", state), ShouldBeNil)
			state.Phase = model.PhaseEnded
			So(s.Save(ctx, "sess-ow", state), ShouldBeNil)

			loaded, err := s.Load(ctx, "sess-ow")
			So(err, ShouldBeNil)
			So(loaded.Phase, ShouldEqual, model.PhaseEnded)
		})

		Convey("When the id tries to escape the root", func() {
			for _, id := range []string{"../evil", "a/b", `a\b`, ""} {
				_, err := s.Load(ctx, id)
				So(errors.Is(err, store.ErrInvalidID), ShouldBeTrue)
				So(errors.Is(s.Save(ctx, id, sampleState("x")), store.ErrInvalidID), ShouldBeTrue)
			}
		})
	})
}
