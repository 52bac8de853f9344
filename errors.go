package mptraid

import "github.com/pkg/errors"

// ErrTimeout - a synchronous action did not complete in time. The state of
// the target is unknown.
var ErrTimeout = errors.New("raid action timed out")

// ErrNoRequestSlot - every request slot is in use; nothing was sent.
var ErrNoRequestSlot = errors.New("no free request slot")

// ErrAborted - the request was dropped by a controller reset.
var ErrAborted = errors.New("raid action aborted by reset")

// ErrNotFound - no active volume or disk matches.
var ErrNotFound = errors.New("raid entity not found")

// ErrInvalidTunable - an administrative value is out of range.
var ErrInvalidTunable = errors.New("invalid raid tunable")

// ErrInProgress - an asynchronous action on the entity has not completed.
var ErrInProgress = errors.New("raid action in progress")

// ErrDetached - the controller has been detached.
var ErrDetached = errors.New("raid controller detached")

// IsActionFailure - is err a controller reported action failure.
func IsActionFailure(err error) bool {
	_, ok := errors.Cause(err).(*ActionError)
	return ok
}
