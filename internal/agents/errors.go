package agents

import "errors"

// Sentinel kinds for collaborator errors.
var (
	ErrMalformedOutput = errors.New("malformed collaborator output")
	ErrAdmission       = errors.New("admission gate rejected call")
)
