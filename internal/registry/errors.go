package registry

import "errors"

var (
	// ErrSessionNotFound is returned when an operation targets a session id
	// that is neither live in memory nor present in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrBackpressure is returned when new session creation is shed because
	// the save pipeline is saturated. Existing sessions keep working; their
	// saves fall back to the synchronous path.
	ErrBackpressure = errors.New("save pipeline saturated")
)
