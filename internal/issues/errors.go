package issues

import "errors"

// Errors returned by Service. Anything else it returns is an internal failure.
// Validation failures are reported as *validate.Errors.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("issue not found")
	ErrInvalidReference = errors.New("invalid user")
)
