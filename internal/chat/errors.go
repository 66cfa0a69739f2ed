package chat

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyMessage is returned for a blank draft with no image; callers
	// treat it as a no-op.
	ErrEmptyMessage = errors.New("empty message")

	ErrDuplicate = errors.New("already exists")

	// ErrStaleEvent marks events tagged with a superseded sequence number.
	// It never leaves the session.
	ErrStaleEvent = errors.New("stale event")

	ErrChannelUnavailable = errors.New("channel unavailable")
)

// ValidationError rejects input before anything reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DirectoryError is a failed REST call. Message carries the server's
// {error} body when there is one.
type DirectoryError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *DirectoryError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("directory %s: status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("directory %s: %s", e.Op, msg)
}

func (e *DirectoryError) Unwrap() error { return e.Err }
