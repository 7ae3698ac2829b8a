package api

import (
	"encoding/json"
	"net/http"
)

// SessionsHandler handles the per-session routes.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleStart handles POST /sessions/{id}/start requests.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_start"
	id := r.PathValue("id")

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.StartSession(r.Context(), id, req.config()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "started"})
}

// HandleMessage handles POST /sessions/{id}/message requests.
func (h *SessionsHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_message"
	id := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	reply, duplicate, err := h.deps.Message(r.Context(), id, req.Content, req.RequestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// HandleEnd handles POST /sessions/{id}/end requests.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.EndSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *SessionsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ResetSession(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "reset"})
}

// HandleHistory handles GET /sessions/{id}/history requests.
func (h *SessionsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.deps.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if turns == nil {
		turns = []Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// HandleStats handles GET /sessions/{id}/stats requests.
func (h *SessionsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.SessionStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
