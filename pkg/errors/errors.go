package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConnectionLimit    = errors.New("connection limit exceeded")
)

// ConflictError is returned when a booking transition is not valid for the
// booking's current status, including the case where a concurrent writer won
// the race and the stored status no longer matches what the caller saw.
type ConflictError struct {
	Current   string
	Requested string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invalid transition: booking is %q, requested %q", e.Current, e.Requested)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// LockUnavailableError indicates the job-lock store could not be reached.
// It is resolved by the fail-open/fail-closed policy and never surfaces to
// an end user.
type LockUnavailableError struct {
	Name string
	Err  error
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("job lock %q unavailable: %v", e.Name, e.Err)
}

func (e *LockUnavailableError) Unwrap() error {
	return e.Err
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
