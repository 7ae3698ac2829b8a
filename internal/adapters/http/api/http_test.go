package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/greenroom/internal/adapters/http/api"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/orchestrator"
	"github.com/okian/greenroom/internal/registry"
	"github.com/okian/greenroom/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeDeps is a canned Dependencies implementation for handler tests.
type fakeDeps struct {
	sessions  map[string]model.SessionConfig
	turns     map[string][]api.Turn
	ended     map[string]bool
	seen      map[string]bool
	saturated bool
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		sessions: map[string]model.SessionConfig{},
		turns:    map[string][]api.Turn{},
		ended:    map[string]bool{},
		seen:     map[string]bool{},
	}
}

func (f *fakeDeps) StartSession(ctx context.Context, id string, cfg model.SessionConfig) error {
	if f.saturated {
		return fmt.Errorf("start session %q: %w", id, registry.ErrBackpressure)
	}
	f.sessions[id] = cfg
	f.turns[id] = nil
	f.ended[id] = false
	return nil
}

func (f *fakeDeps) Message(ctx context.Context, id, content, requestID string) (api.Turn, bool, error) {
	if _, ok := f.sessions[id]; !ok {
		return api.Turn{}, false, fmt.Errorf("session %q: %w", id, registry.ErrSessionNotFound)
	}
	if f.ended[id] {
		return api.Turn{}, false, orchestrator.ErrSessionEnded
	}
	if requestID != "" && f.seen[requestID] {
		return api.Turn{}, true, nil
	}
	if requestID != "" {
		f.seen[requestID] = true
	}
	user := model.NewTurn(model.RoleUser, model.AgentNone, content, "")
	reply := model.NewTurn(model.RoleAssistant, model.AgentPolicy, "Tell me more.", model.ResponseQuestion)
	f.turns[id] = append(f.turns[id], user, reply)
	return reply, false, nil
}

func (f *fakeDeps) EndSession(ctx context.Context, id string) (api.Summary, error) {
	if _, ok := f.sessions[id]; !ok {
		return api.Summary{}, fmt.Errorf("session %q: %w", id, registry.ErrSessionNotFound)
	}
	f.ended[id] = true
	return api.Summary{Strengths: []string{"clarity"}}, nil
}

func (f *fakeDeps) ResetSession(ctx context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return fmt.Errorf("session %q: %w", id, registry.ErrSessionNotFound)
	}
	f.turns[id] = nil
	f.ended[id] = false
	return nil
}

func (f *fakeDeps) History(ctx context.Context, id string) ([]api.Turn, error) {
	if _, ok := f.sessions[id]; !ok {
		return nil, fmt.Errorf("session %q: %w", id, registry.ErrSessionNotFound)
	}
	return f.turns[id], nil
}

func (f *fakeDeps) SessionStats(ctx context.Context, id string) (api.Stats, error) {
	if _, ok := f.sessions[id]; !ok {
		return api.Stats{}, fmt.Errorf("session %q: %w", id, registry.ErrSessionNotFound)
	}
	return api.Stats{Phase: "questioning", TotalTurns: len(f.turns[id])}, nil
}

func (f *fakeDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStartAndMessageRoutes(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		mux := newMux(deps)

		Convey("When a session is started", func() {
			rec := do(mux, http.MethodPost, "/sessions/s-1/start",
				`{"role_title":"Backend Engineer","style":"technical","target_questions":3}`)

			Convey("Then it is created", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(deps.sessions["s-1"].RoleTitle, ShouldEqual, "Backend Engineer")
				So(deps.sessions["s-1"].Style, ShouldEqual, model.StyleTechnical)
			})
		})

		Convey("When a start request is malformed", func() {
			Convey("Then invalid JSON is rejected", func() {
				rec := do(mux, http.MethodPost, "/sessions/s-1/start", `{bad json`)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then an unknown style is rejected", func() {
				rec := do(mux, http.MethodPost, "/sessions/s-1/start", `{"style":"casual"}`)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a message is posted to a live session", func() {
			So(do(mux, http.MethodPost, "/sessions/s-1/start", `{}`).Code, ShouldEqual, http.StatusCreated)
			rec := do(mux, http.MethodPost, "/sessions/s-1/message",
				`{"content":"I'm ready.","request_id":"req-1"}`)

			Convey("Then the interviewer's turn comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var reply api.Turn
				So(json.NewDecoder(rec.Body).Decode(&reply), ShouldBeNil)
				So(reply.Role, ShouldEqual, model.RoleAssistant)
				So(reply.ResponseType, ShouldEqual, model.ResponseQuestion)
			})

			Convey("Then a repeated request id is acknowledged as duplicate", func() {
				rec := do(mux, http.MethodPost, "/sessions/s-1/message",
					`{"content":"I'm ready.","request_id":"req-1"}`)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When a message has no content", func() {
			So(do(mux, http.MethodPost, "/sessions/s-1/start", `{}`).Code, ShouldEqual, http.StatusCreated)
			rec := do(mux, http.MethodPost, "/sessions/s-1/message", `{"content":"  "}`)

			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestErrorTranslation(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		mux := newMux(deps)

		Convey("When an unknown session is addressed", func() {
			rec := do(mux, http.MethodPost, "/sessions/ghost/message", `{"content":"hi"}`)

			Convey("Then the response is 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(rec.Body.String(), ShouldContainSubstring, "not_found")
			})
		})

		Convey("When a message hits an ended session", func() {
			So(do(mux, http.MethodPost, "/sessions/s-1/start", `{}`).Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/sessions/s-1/end", "").Code, ShouldEqual, http.StatusOK)
			rec := do(mux, http.MethodPost, "/sessions/s-1/message", `{"content":"hi"}`)

			Convey("Then the response is 409", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(rec.Body.String(), ShouldContainSubstring, "session_ended")
			})
		})

		Convey("When session creation is shed under saturation", func() {
			deps.saturated = true
			rec := do(mux, http.MethodPost, "/sessions/s-2/start", `{}`)

			Convey("Then the response is 429", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(rec.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})
	})
}

func TestReadRoutes(t *testing.T) {
	Convey("Given a session with one exchange", t, func() {
		deps := newFakeDeps()
		mux := newMux(deps)
		So(do(mux, http.MethodPost, "/sessions/s-1/start", `{}`).Code, ShouldEqual, http.StatusCreated)
		So(do(mux, http.MethodPost, "/sessions/s-1/message", `{"content":"Ready."}`).Code, ShouldEqual, http.StatusOK)

		Convey("When history is fetched", func() {
			rec := do(mux, http.MethodGet, "/sessions/s-1/history", "")

			Convey("Then the ordered turns come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var turns []api.Turn
				So(json.NewDecoder(rec.Body).Decode(&turns), ShouldBeNil)
				So(turns, ShouldHaveLength, 2)
				So(turns[0].Role, ShouldEqual, model.RoleUser)
			})
		})

		Convey("When history is fetched after a reset", func() {
			So(do(mux, http.MethodPost, "/sessions/s-1/reset", "").Code, ShouldEqual, http.StatusOK)
			rec := do(mux, http.MethodGet, "/sessions/s-1/history", "")

			Convey("Then the list is empty, not null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When session stats are fetched", func() {
			rec := do(mux, http.MethodGet, "/sessions/s-1/stats", "")

			Convey("Then the counters come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats api.Stats
				So(json.NewDecoder(rec.Body).Decode(&stats), ShouldBeNil)
				So(stats.TotalTurns, ShouldEqual, 2)
			})
		})

		Convey("When service stats are fetched", func() {
			rec := do(mux, http.MethodGet, "/stats", "")

			Convey("Then the monitoring payload comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
			})
		})

		Convey("When the health endpoint is fetched", func() {
			rec := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then the metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "greenroom")
			})
		})
	})
}
