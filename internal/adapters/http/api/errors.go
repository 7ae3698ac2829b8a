package api

import (
	"errors"
	"fmt"
)

// ErrBadRequest marks malformed or invalid request payloads.
var ErrBadRequest = errors.New("bad request")

// WrapKind wraps a sentinel kind and its cause with the operation that
// raised it. errors.Is matches both kind and cause.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}
