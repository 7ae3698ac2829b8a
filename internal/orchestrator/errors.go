package orchestrator

import "errors"

// ErrSessionEnded is returned when a message arrives for a session whose
// interview has already concluded.
var ErrSessionEnded = errors.New("session already ended")
