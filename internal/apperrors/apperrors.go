// Package apperrors defines the typed failure taxonomy shared by the service
// and API layers. The service returns these; the API layer maps them to HTTP
// status codes in one place.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindForbidden
	KindValidation
	KindInsufficientBalance
)

// Error is a typed application error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is match two *Error values by code, so predeclared errors
// below work as sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func InvalidState(code, message string) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message}
}

// Predeclared errors for the request lifecycle
var (
	ErrUserNotFound         = NotFound("USER_NOT_FOUND", "User not found")
	ErrRequestNotFound      = NotFound("REQUEST_NOT_FOUND", "Request not found")
	ErrRequestNotOpen       = InvalidState("REQUEST_NOT_OPEN", "Request is not open")
	ErrRequestNotInProgress = InvalidState("REQUEST_NOT_IN_PROGRESS", "Request is not in progress")
	ErrRequestCompleted     = InvalidState("REQUEST_COMPLETED", "Cannot cancel completed request")
	ErrRequestCancelled     = InvalidState("REQUEST_CANCELLED", "Request is already cancelled")
	ErrSelfAccept           = Forbidden("SELF_ACCEPT", "Cannot accept your own request")
	ErrNotRequesterComplete = Forbidden("NOT_REQUESTER", "Only requester can complete the request")
	ErrNotRequesterCancel   = Forbidden("NOT_REQUESTER", "Only requester can cancel the request")
	ErrInsufficientBalance  = &Error{
		Kind:    KindInsufficientBalance,
		Code:    "INSUFFICIENT_BALANCE",
		Message: "Insufficient karma points",
	}
)

// KindOf returns the Kind of err, or KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the HTTP status code the API layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindInsufficientBalance:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code of err, or INTERNAL_ERROR.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_ERROR"
}
