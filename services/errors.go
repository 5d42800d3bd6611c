package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorKind classifies lifecycle failures for callers.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindGeofenceViolation ErrorKind = "geofence_violation"
	KindInvalidState      ErrorKind = "invalid_state"
	KindConflict          ErrorKind = "conflict"
)

// Error is returned for every rejected lifecycle operation. It carries enough
// structured data for the client to explain the rejection.
type Error struct {
	Kind    ErrorKind
	Message string

	// GeofenceViolation
	Distance      float64
	AllowedRadius float64

	// InvalidState and Conflict
	CurrentState string

	// Validation
	Fields map[string]string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindGeofenceViolation:
		return fmt.Sprintf("%s: %.1fm from task, allowed radius %.1fm", e.Message, e.Distance, e.AllowedRadius)
	case KindInvalidState:
		if e.CurrentState != "" {
			return fmt.Sprintf("%s (current state: %s)", e.Message, e.CurrentState)
		}
	case KindValidation:
		if len(e.Fields) > 0 {
			parts := make([]string, 0, len(e.Fields))
			for field, msg := range e.Fields {
				parts = append(parts, field+": "+msg)
			}
			return e.Message + " (" + strings.Join(parts, ", ") + ")"
		}
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrGeofenceViolation = &Error{Kind: KindGeofenceViolation, Message: "outside geofence"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
)

func validationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func geofenceViolation(distance, radius float64) *Error {
	return &Error{
		Kind:          KindGeofenceViolation,
		Message:       "You are outside the task location",
		Distance:      distance,
		AllowedRadius: radius,
	}
}

func invalidState(message string, current string) *Error {
	return &Error{Kind: KindInvalidState, Message: message, CurrentState: current}
}

func conflict(message string, current string) *Error {
	return &Error{Kind: KindConflict, Message: message, CurrentState: current}
}

// AsError extracts a lifecycle error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
