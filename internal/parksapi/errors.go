package parksapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed API call
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindOffline
	KindNotFound
	KindValidationRejected
	KindConflict
	KindUnauthorized
	KindServerError
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindNotFound:
		return "not_found"
	case KindValidationRejected:
		return "validation_rejected"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a record client operation
type Error struct {
	Kind   ErrorKind
	Op     string // e.g. "list", "delete"
	Status int    // HTTP status, 0 if no response was received
	Detail string // server-provided message, if any
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s parks: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the user should be offered a retry
func (e *Error) Retryable() bool {
	return e.Kind != KindOffline && e.Kind != KindUnauthorized
}

// UserMessage returns a human-readable description of the failure
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindOffline:
		return "You are offline. Check your connection and try again."
	case KindNotFound:
		return "The park no longer exists. It may have been deleted."
	case KindValidationRejected:
		if e.Detail != "" {
			return "The server rejected the data: " + e.Detail
		}
		return "The server rejected the data. Review the fields and try again."
	case KindConflict:
		return "A park with the same name or abbreviation already exists."
	case KindUnauthorized:
		return "You are not authorized. Check the API credentials."
	case KindServerError:
		return "The server had a problem processing the request."
	case KindTimeout:
		return "The request took too long to complete."
	default:
		return "An unexpected error occurred."
	}
}

// kindForStatus maps an HTTP status code to an error kind
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidationRejected
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

// Classify converts any error into a classified *Error for op
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}

	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// KindOf returns the kind of a classified error, or KindUnknown
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a NotFound classification
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
