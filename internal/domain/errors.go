package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrTransferExists   = errors.New("transfer already exists")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrCheckInProgress is returned when a disk-space check is requested
	// for a transfer that already has one outstanding. The caller should
	// treat it as a no-op, not a failure.
	ErrCheckInProgress = errors.New("disk space check already in progress")

	// ErrProbeFailed means free-space/volume lookup failed (missing path,
	// permissions). The check cycle aborts and is retried on the next
	// trigger; it is never shown to the user.
	ErrProbeFailed = errors.New("cannot determine disk capacity")

	// ErrDeletionIncomplete means one or more eviction candidates could
	// not be removed. The target stays paused and is not retried
	// automatically.
	ErrDeletionIncomplete = errors.New("eviction did not complete")
)

// InsufficientSpaceError is surfaced when a volume lacks space and the
// eviction candidates on it (possibly none) cannot cover the deficit.
type InsufficientSpaceError struct {
	Group       string
	Needed      ByteSize
	Reclaimable ByteSize
	Candidates  int
}

// Error returns the error message with the byte quantities that make it
// actionable.
func (e *InsufficientSpaceError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%s more needed in %s and no other transfers there to remove", e.Needed, e.Group)
	}
	return fmt.Sprintf("%s more needed in %s but removing every other transfer there frees only %s", e.Needed, e.Group, e.Reclaimable)
}

// NewInsufficientSpaceError creates a new InsufficientSpaceError
func NewInsufficientSpaceError(group string, needed, reclaimable ByteSize, candidates int) *InsufficientSpaceError {
	return &InsufficientSpaceError{
		Group:       group,
		Needed:      needed,
		Reclaimable: reclaimable,
		Candidates:  candidates,
	}
}
