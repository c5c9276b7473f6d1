package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced account, work or edge does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotAuthorized indicates the caller lacks the required role or ownership.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidAmount indicates a transfer amount that is not a positive integer.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrSelfTransfer indicates source and destination accounts are the same.
	ErrSelfTransfer = errors.New("cannot transfer to self")
	// ErrInsufficientFunds indicates the source balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSelfFollow indicates an account attempted to follow itself.
	ErrSelfFollow = errors.New("cannot follow self")
	// ErrAlreadyApplied indicates the one-time engagement was already recorded for the actor.
	ErrAlreadyApplied = errors.New("engagement already applied")
	// ErrInvalidOffset indicates a negative annotation offset or empty content.
	ErrInvalidOffset = errors.New("invalid annotation")
	// ErrConflict indicates an atomic section kept conflicting after bounded retries.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrStorageFailure wraps any lower-level storage error.
	ErrStorageFailure = errors.New("storage failure")
	// ErrDuplicate indicates a uniqueness constraint (handle, email) was violated.
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidInput indicates a malformed request outside the named core kinds.
	ErrInvalidInput = errors.New("invalid input")
)

// StorageError carries the failing operation and its cause behind ErrStorageFailure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageFailure, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// Storage wraps err as a StorageError for op. A nil err yields nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

var domainErrors = []error{
	ErrNotFound,
	ErrNotAuthorized,
	ErrInvalidAmount,
	ErrSelfTransfer,
	ErrInsufficientFunds,
	ErrSelfFollow,
	ErrAlreadyApplied,
	ErrInvalidOffset,
	ErrConflict,
	ErrStorageFailure,
	ErrDuplicate,
	ErrInvalidInput,
}

// IsKnown reports whether err matches one of the typed error kinds above.
func IsKnown(err error) bool {
	for _, kind := range domainErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Canceled reports whether err stems from the caller abandoning the operation, either by
// cancelling its context or by letting the deadline pass. Such errors say nothing about
// the health of storage.
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
