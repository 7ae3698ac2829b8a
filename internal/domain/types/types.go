// Package types contains read shapes shared between the service and the
// HTTP layer.
package types

import "github.com/okian/greenroom/internal/domain/model"

// Turn is the API-facing turn shape; the domain turn already carries the
// wire tags.
type Turn = model.Turn

// Summary is the API-facing final summary shape.
type Summary = model.Summary

// Stats is the read-only counter projection of one session.
type Stats struct {
	Phase            string `json:"phase"`
	TotalTurns       int    `json:"total_turns"`
	UserTurns        int    `json:"user_turns"`
	AssistantTurns   int    `json:"assistant_turns"`
	SystemTurns      int    `json:"system_turns"`
	QuestionsAsked   int    `json:"questions_asked"`
	TurnsProcessed   int    `json:"turns_processed"`
	ProcessingMillis int64  `json:"processing_ms"`
}
