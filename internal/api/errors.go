package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the backend rejects the bearer token.
// Callers treat it as a signal to stop making requests rather than retry.
var ErrSessionExpired = errors.New("session expired")

// UnexpectedStatusError is returned for non-2xx responses that are not
// authentication failures.
type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
}

// Error implements the error interface.
func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d",
		e.Method, e.Path, e.Code)
}
