package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrManagerClosed = errors.New("mesh manager closed")
	ErrLinkFailed    = errors.New("peer connection failed")
)

// LinkError records which step of a peer link failed.
type LinkError struct {
	Op   string
	Peer string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func newLinkError(op, peer string, err error) *LinkError {
	return &LinkError{Op: op, Peer: peer, Err: err}
}
