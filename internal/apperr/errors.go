// Package apperr defines the error kinds shared by the identity and domain services.
package apperr

import (
	"fmt"
	"net/http"
)

// Error is a domain failure surfaced directly to the caller. Two errors are
// the same kind when their codes match, so errors.Is works against the
// package-level kinds regardless of the message.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func New(status int, code, message string, details any) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrUnauthenticated    = New(http.StatusUnauthorized, "UNAUTHENTICATED", "User not authenticated", nil)
	ErrDuplicateUsername  = New(http.StatusConflict, "DUPLICATE_USERNAME", "Username already exists", nil)
	ErrInvalidCredentials = New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	ErrNotFound           = New(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	ErrForbidden          = New(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	ErrInvalidTransition  = New(http.StatusConflict, "INVALID_TRANSITION", "Invalid status transition", nil)
	ErrValidation         = New(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", nil)
)

// NotFound names the missing entity, e.g. NotFound("tree").
func NotFound(entity string) *Error {
	return New(http.StatusNotFound, ErrNotFound.Code, entity+" not found", nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, ErrForbidden.Code, message, nil)
}

func Validation(message string) *Error {
	return New(http.StatusUnprocessableEntity, ErrValidation.Code, message, nil)
}

func InvalidTransition(from, to string) *Error {
	return New(http.StatusConflict, ErrInvalidTransition.Code,
		fmt.Sprintf("cannot move from %s to %s", from, to),
		map[string]any{"from": from, "to": to})
}
