package model

import "time"

// Style selects the interviewing manner.
type Style string

const (
	StyleBehavioral Style = "behavioral"
	StyleTechnical  Style = "technical"
	StyleMixed      Style = "mixed"
)

// Difficulty selects how demanding the questions are.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Phase is the interview state machine phase.
type Phase string

const (
	PhaseIntroducing Phase = "introducing"
	PhaseQuestioning Phase = "questioning"
	PhaseSummarizing Phase = "summarizing"
	PhaseEnded       Phase = "ended"
)

// SessionConfig is the immutable per-session configuration. It is replaced
// wholesale on reconfiguration, never partially mutated.
type SessionConfig struct {
	RoleTitle           string     `json:"role_title"`
	RoleDescription     string     `json:"role_description"`
	CandidateBackground string     `json:"candidate_background"`
	Style               Style      `json:"style"`
	Difficulty          Difficulty `json:"difficulty"`
	TargetQuestions     int        `json:"target_questions"`
	Organization        string     `json:"organization"`
}

// SessionState is the aggregate root for one interview. It is mutated
// exclusively by the orchestrator that owns it.
type SessionState struct {
	ID             string        `json:"id"`
	Config         SessionConfig `json:"config"`
	Turns          []Turn        `json:"turns"`
	Phase          Phase         `json:"phase"`
	QuestionsAsked int           `json:"questions_asked"`
	TurnsProcessed int           `json:"turns_processed"`
	Processing     time.Duration `json:"processing_ns"`
	Summary        *Summary      `json:"summary,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
}

// NewSessionState creates a fresh state in the introducing phase.
func NewSessionState(id string, cfg SessionConfig) *SessionState {
	return &SessionState{
		ID:        id,
		Config:    cfg,
		Phase:     PhaseIntroducing,
		StartedAt: time.Now().UTC(),
	}
}

// Append adds a turn at the end of the conversation.
func (s *SessionState) Append(t Turn) {
	s.Turns = append(s.Turns, t)
}

// LastTurn returns the most recently appended turn, or false when empty.
func (s *SessionState) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// Reset returns the state to a fresh introducing phase with the same id and
// config, clearing turns, counters and final outputs.
func (s *SessionState) Reset() {
	s.Turns = nil
	s.Phase = PhaseIntroducing
	s.QuestionsAsked = 0
	s.TurnsProcessed = 0
	s.Processing = 0
	s.Summary = nil
	s.LastError = ""
	s.StartedAt = time.Now().UTC()
}

// Snapshot returns a deep copy safe to hand to collaborators or persist
// while the original continues to mutate.
func (s *SessionState) Snapshot() SessionState {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		c.Turns[i] = t.Clone()
	}
	if s.Summary != nil {
		sum := s.Summary.Clone()
		c.Summary = &sum
	}
	return c
}

// HistorySnapshot returns a deep copy of the turn sequence only.
func (s *SessionState) HistorySnapshot() []Turn {
	turns := make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		turns[i] = t.Clone()
	}
	return turns
}
