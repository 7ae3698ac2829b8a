// Package filter implements the conversation visibility rule applied before
// per-turn coaching evaluation.
//
// By the time the evaluator runs, the orchestrator has already asked the
// interview policy for the next question and appended it. Handing the
// evaluator the full history would let it reference a question the user has
// not yet been shown. Visible strips those trailing policy turns while
// keeping the policy's private justification available, since that is an
// assessment of the answer just given, not future content.
package filter

import "github.com/okian/greenroom/internal/domain/model"

// Visible returns the prefix of turns the evaluator may observe, plus the
// justification attached to the stripped next question, if any.
//
// All trailing assistant turns originated by the interview policy are
// removed; a single policy turn per cycle is the common case, but a policy
// emitting an acknowledgment plus a question must not leak either. When the
// last turn is anything else the sequence is returned unmodified. Visible is
// a pure function over the given snapshot and must be re-derived on every
// evaluation call.
func Visible(turns []model.Turn) ([]model.Turn, string) {
	end := len(turns)
	justification := ""
	for end > 0 && turns[end-1].IsPolicyAssistant() {
		if justification == "" {
			justification = turns[end-1].Metadata[model.MetaJustification]
		}
		end--
	}
	return turns[:end], justification
}
