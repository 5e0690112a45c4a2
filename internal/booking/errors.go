package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("operation not allowed in current status")
	ErrNotAvailable      = fmt.Errorf("%w: request is not open for interest", ErrInvalidState)
	ErrAlreadyAssigned   = errors.New("request already assigned")
	ErrAlreadyInterested = errors.New("provider already interested")
	ErrMissingActor      = errors.New("admin email is required")
	ErrInvalidInput      = errors.New("invalid input")
)

// AssignmentConflict reports that a request already has a provider.
// It matches ErrAlreadyAssigned with errors.Is.
type AssignmentConflict struct {
	RequestID       int64
	CurrentProvider int64
	// ByCaller is true when the caller already holds the request.
	ByCaller bool
}

func (e *AssignmentConflict) Error() string {
	if e.ByCaller {
		return fmt.Sprintf("request %d already assigned to you", e.RequestID)
	}
	return fmt.Sprintf("request %d already assigned to provider %d", e.RequestID, e.CurrentProvider)
}

func (e *AssignmentConflict) Unwrap() error { return ErrAlreadyAssigned }
