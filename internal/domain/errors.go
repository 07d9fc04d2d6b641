package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a ticker or id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique key conflicts.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientPosition is returned when a sell exceeds the held quantity.
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrUnavailable is returned when an external collaborator has no data.
	ErrUnavailable = errors.New("data unavailable")
)

// InsufficientPositionError carries the details of a rejected sell.
type InsufficientPositionError struct {
	Ticker    string
	Date      Date
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("insufficient position in %s on %s: selling %s, available %s",
		e.Ticker, e.Date, e.Requested.String(), e.Available.String())
}

// Unwrap lets errors.Is match ErrInsufficientPosition.
func (e *InsufficientPositionError) Unwrap() error {
	return ErrInsufficientPosition
}

// ValidationError reports malformed input.
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

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
