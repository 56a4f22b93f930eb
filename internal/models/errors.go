package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEventNotFound is returned when an event id does not match a stored event.
	ErrEventNotFound = errors.New("event not found")
	ErrUserNotFound  = errors.New("user not found")

	ErrEventFull        = errors.New("event is full")
	ErrAlreadyJoined    = errors.New("user has already joined this event")
	ErrNotJoined        = errors.New("user has not joined this event")
	ErrAudienceMismatch = errors.New("event is restricted to another audience")

	// ErrForbidden is returned when a caller acts on an event it does not own.
	ErrForbidden               = errors.New("forbidden: only the owning admin may change this event")
	ErrCapacityBelowAttendance = errors.New("capacity cannot be lower than the current attendee count")

	// ErrStoreUnavailable wraps any backend I/O failure. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrNoBioProvided      = errors.New("no bio provided")
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrValidation = errors.New("validation failed")
)

// StoreError is a backend failure. It matches ErrStoreUnavailable but unwraps
// to the driver error alone, so the driver can still read labels such as
// TransientTransactionError when deciding whether to retry a transaction.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
