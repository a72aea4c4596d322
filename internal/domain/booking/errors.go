package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBookingNotFound      = errors.New("booking: not found")
	ErrInvalidTransition    = errors.New("booking: invalid status transition")
	ErrConcurrentUpdate     = errors.New("booking: concurrent update detected")
	ErrInvalidStatus        = errors.New("booking: unknown status")
	ErrInvalidPaymentStatus = errors.New("booking: unknown payment status")
	ErrNoSlots              = errors.New("booking: at least one slot is required")
	ErrMalformedSlot        = errors.New("booking: malformed slot")
	ErrSlotsNotContiguous   = errors.New("booking: slots must be contiguous")
	ErrInvalidDate          = errors.New("booking: invalid date")
	ErrDateInPast           = errors.New("booking: date is in the past")
	ErrOutsideOpeningHours  = errors.New("booking: slot outside court opening hours")
	ErrValidation           = errors.New("booking: validation failed")
)

// SlotConflictError lists the start times already claimed by another booking.
type SlotConflictError struct {
	Slots []string
}

func (e *SlotConflictError) Error() string {
	return "booking: slots already booked: " + strings.Join(e.Slots, ", ")
}

// TerminalStateError is returned when an update targets a finished booking.
type TerminalStateError struct {
	Status        Status
	PaymentStatus PaymentStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("booking: cannot update booking in %s state (payment %s)", e.Status, e.PaymentStatus)
}

type FieldError struct {
	Field  string
	Reason string
	cause  error
}

// ValidationError aggregates request field problems. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	fields []FieldError
}

func NewValidationError() *ValidationError {
	return &ValidationError{}
}

func (e *ValidationError) Add(field, reason string) {
	e.fields = append(e.fields, FieldError{Field: field, Reason: reason})
}

// Wrap records err against field and keeps it reachable through errors.Is.
func (e *ValidationError) Wrap(field string, err error) {
	e.fields = append(e.fields, FieldError{Field: field, Reason: err.Error(), cause: err})
}

func (e *ValidationError) Fields() []FieldError {
	out := make([]FieldError, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e *ValidationError) Empty() bool {
	return len(e.fields) == 0
}

// Err returns nil when no field was reported.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "booking: invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() []error {
	var causes []error
	for _, f := range e.fields {
		if f.cause != nil {
			causes = append(causes, f.cause)
		}
	}
	return causes
}
