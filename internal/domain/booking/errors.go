package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the scheduling core. Callers match them with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrIncompleteDraft = errors.New("booking draft is incomplete")
	ErrDoubleBooking   = errors.New("time slot was just booked, please select a different time")
	// ErrConflict is the store-level uniqueness violation on (doctor, slot).
	// The committer reports it to callers as ErrDoubleBooking.
	ErrConflict = errors.New("an active appointment already exists for this doctor and time slot")
)

// ValidationError describes input the user has to correct.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IncompleteDraftError names the wizard steps that still have to be completed.
type IncompleteDraftError struct {
	Missing []string
}

func (e *IncompleteDraftError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteDraft, strings.Join(e.Missing, ", "))
}

func (e *IncompleteDraftError) Is(target error) bool { return target == ErrIncompleteDraft }

func notFound(what string, id fmt.Stringer) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}
