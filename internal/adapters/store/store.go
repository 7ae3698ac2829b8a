// Package store defines the session persistence contract consumed by the
// registry, with in-memory and file-backed implementations.
package store

import (
	"context"

	"github.com/okian/greenroom/internal/domain/model"
)

// Store provides keyed load/save access to session snapshots. The persisted
// shape mirrors the domain model exactly and must round-trip losslessly.
type Store interface {
	// Load returns the persisted state for a session id.
	// Returns ErrNotFound when no state exists.
	Load(ctx context.Context, id string) (model.SessionState, error)

	// Save persists a snapshot, replacing any previous one for the id.
	Save(ctx context.Context, id string, state model.SessionState) error
}
