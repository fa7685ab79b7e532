package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means login exhausted its retry budget.
	ErrAuth = errors.New("coordinator authentication failed")

	// ErrDuplicateJob means the requester already has this hash in flight.
	ErrDuplicateJob = errors.New("identical hash already in progress for this requester")
)

// RemoteRequestError means a non-auth coordinator request exhausted its
// attempt budget. It carries the endpoint, method and last observed failure.
type RemoteRequestError struct {
	Method     string
	Endpoint   string
	LastStatus int
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coordinator %s %s failed after retries: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("coordinator %s %s failed after retries: HTTP %d", e.Method, e.Endpoint, e.LastStatus)
}

func (e *RemoteRequestError) Unwrap() error { return e.Err }

// ProtocolError means a 2xx coordinator response was missing a field the
// pinned contract requires.
type ProtocolError struct {
	Endpoint string
	Field    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("coordinator response from %s missing required field %q", e.Endpoint, e.Field)
}
