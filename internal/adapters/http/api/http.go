// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/domain/types"
	"github.com/okian/greenroom/internal/orchestrator"
	"github.com/okian/greenroom/internal/registry"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// StartSession creates or reconfigures a session.
	StartSession(ctx context.Context, id string, cfg model.SessionConfig) error

	// Message runs one interview cycle. The bool reports a duplicate
	// request id acknowledged without processing.
	Message(ctx context.Context, id, content, requestID string) (Turn, bool, error)

	// EndSession concludes the interview and returns the final summary.
	EndSession(ctx context.Context, id string) (Summary, error)

	// ResetSession wipes the conversation, keeping id and configuration.
	ResetSession(ctx context.Context, id string) error

	// Read operations expose session data.
	History(ctx context.Context, id string) ([]Turn, error)
	SessionStats(ctx context.Context, id string) (Stats, error)
}

// Turn mirrors the read shape returned by session queries.
type Turn = types.Turn

// Summary mirrors the final summary read shape.
type Summary = types.Summary

// Stats mirrors the session counter read shape.
type Stats = types.Stats

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /sessions/{id}/start", MetricsMiddleware(s.sessionsHandler.HandleStart, "session_start"))
	mux.HandleFunc("POST /sessions/{id}/message", MetricsMiddleware(s.sessionsHandler.HandleMessage, "session_message"))
	mux.HandleFunc("POST /sessions/{id}/end", MetricsMiddleware(s.sessionsHandler.HandleEnd, "session_end"))
	mux.HandleFunc("POST /sessions/{id}/reset", MetricsMiddleware(s.sessionsHandler.HandleReset, "session_reset"))
	mux.HandleFunc("GET /sessions/{id}/history", MetricsMiddleware(s.sessionsHandler.HandleHistory, "session_history"))
	mux.HandleFunc("GET /sessions/{id}/stats", MetricsMiddleware(s.sessionsHandler.HandleStats, "session_stats"))
}

// startRequest mirrors the OpenAPI schema for POST /sessions/{id}/start.
type startRequest struct {
	RoleTitle           string `json:"role_title"`
	RoleDescription     string `json:"role_description"`
	CandidateBackground string `json:"candidate_background"`
	Style               string `json:"style"`
	Difficulty          string `json:"difficulty"`
	TargetQuestions     int    `json:"target_questions"`
	Organization        string `json:"organization"`
}

func (s startRequest) validate() error {
	switch s.Style {
	case "", string(model.StyleBehavioral), string(model.StyleTechnical), string(model.StyleMixed):
	default:
		return errors.New("style must be behavioral, technical or mixed")
	}
	switch s.Difficulty {
	case "", string(model.DifficultyEasy), string(model.DifficultyMedium), string(model.DifficultyHard):
	default:
		return errors.New("difficulty must be easy, medium or hard")
	}
	if s.TargetQuestions < 0 {
		return errors.New("target_questions must not be negative")
	}
	return nil
}

func (s startRequest) config() model.SessionConfig {
	return model.SessionConfig{
		RoleTitle:           strings.TrimSpace(s.RoleTitle),
		RoleDescription:     strings.TrimSpace(s.RoleDescription),
		CandidateBackground: strings.TrimSpace(s.CandidateBackground),
		Style:               model.Style(s.Style),
		Difficulty:          model.Difficulty(s.Difficulty),
		TargetQuestions:     s.TargetQuestions,
		Organization:        strings.TrimSpace(s.Organization),
	}
}

// messageRequest mirrors the OpenAPI schema for POST /sessions/{id}/message.
type messageRequest struct {
	Content   string `json:"content"`
	RequestID string `json:"request_id"`
}

func (m messageRequest) validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("missing content")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates session errors into their HTTP shape.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, orchestrator.ErrSessionEnded):
		writeError(w, http.StatusConflict, "session_ended", err)
	case errors.Is(err, registry.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
