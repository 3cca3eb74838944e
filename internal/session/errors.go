package session

import (
	"errors"
	"fmt"
)

var (
	ErrMediaUnavailable = errors.New("could not access camera or microphone")
	ErrTimeout          = errors.New("timeout")
	ErrDisconnected     = errors.New("disconnected from relay")
	ErrNotHost          = errors.New("only the host can do that")
	ErrClosed           = errors.New("session closed")
)

// Error carries the step of the session that failed.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
