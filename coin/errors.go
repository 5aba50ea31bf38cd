/*
errors.go - Shared error taxonomy

PURPOSE:
  All error categories in one place so callers can branch with
  errors.Is/errors.As regardless of which package produced the error.

CATEGORIES:
  1. Validation - malformed input, rejected before any write
  2. Not found  - a referenced record does not exist; no partial state
  3. Store      - the item store failed; completed side effects of a
                  multi-step operation are NOT rolled back

  Batch operations (approve-all, daily reset) do not surface per-item
  failures as errors at all: they count them in their summary and keep
  going.
*/
package coin

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	ErrUserNotFound          = errors.New("user not found")
	ErrPendingNotFound       = errors.New("pending reward not found")
	ErrActivityNotFound      = errors.New("activity not found")
	ErrBehaviorNotFound      = errors.New("behavior not found")
	ErrTodoNotFound          = errors.New("todo not found")
	ErrEntertainmentNotFound = errors.New("entertainment not found")
	ErrLogNotFound           = errors.New("balance log entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed field, surfaced to the caller
// verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError wraps an item-store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags a store failure with its originating operation.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPendingNotFound) ||
		errors.Is(err, ErrActivityNotFound) ||
		errors.Is(err, ErrBehaviorNotFound) ||
		errors.Is(err, ErrTodoNotFound) ||
		errors.Is(err, ErrEntertainmentNotFound) ||
		errors.Is(err, ErrLogNotFound)
}

// IsValidation reports whether err is due to invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
