package store

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound  = errors.New("session state not found")
	ErrInvalidID = errors.New("invalid session id")
)
