package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure so callers can react without parsing
// status codes or message text.
type Kind int

const (
	// KindValidation is malformed local input, caught before any network call
	KindValidation Kind = iota
	// KindUnauthenticated is a missing or invalid token (HTTP 401)
	KindUnauthenticated
	// KindForbidden is an authenticated but not permitted request (HTTP 403)
	KindForbidden
	// KindNotFound is HTTP 404
	KindNotFound
	// KindRejected is any other backend rejection; the backend's own
	// message is surfaced verbatim when it sent one
	KindRejected
	// KindNetwork means no response was received at all
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

// Error is the failure type every API call resolves to
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for local and transport failures
	Message string // backend message when present, else a generic one
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// IsKind reports whether err is a backend Error of the given kind
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// kindForStatus maps an HTTP status to an error kind
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindRejected
	}
}
