package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services. The API layer maps these to HTTP
// status codes; everything else propagates wrapped.
var (
	// ErrNotFound indicates an unknown job id or an empty result set.
	ErrNotFound = errors.New("not found")

	// ErrJobConflict indicates another job is pending or running.
	ErrJobConflict = errors.New("another simulation job is already active")

	// ErrNothingToDo indicates every requested (model, date) pair is
	// already completed.
	ErrNothingToDo = errors.New("all requested model-date pairs are already completed")

	// ErrInsufficientCash is returned to the agent when a buy exceeds cash.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientShares is returned to the agent when a sell exceeds
	// the held quantity.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrRateLimited indicates the upstream price provider refused further
	// requests in the current window.
	ErrRateLimited = errors.New("upstream rate limited")
)

// ValidationError is a malformed request: bad date, invalid range, missing
// end date. Never retried; surfaced as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// MissingPriceError indicates a held symbol has no price on the session
// date. Fatal for the session that hits it.
type MissingPriceError struct {
	Symbol string
	Date   string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price for %s on %s", e.Symbol, e.Date)
}
