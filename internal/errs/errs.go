// Package errs defines the error taxonomy shared by the HTTP surface and
// the workers. Boundary code maps kinds to HTTP statuses; worker code uses
// kinds to decide whether a failure degrades one message or the whole loop.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes application errors.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindRelatedNotExists Kind = "related_record_not_exists"
	KindIntegrity        Kind = "integrity"
	KindAuth             Kind = "auth"
	KindBrokerPublish    Kind = "broker_publish"
	KindUnknownQuery     Kind = "unknown_query_type"
	KindPreflight        Kind = "message_preflight"
	KindInternal         Kind = "internal"
)

// Error is a categorized application error.
type Error struct {
	Kind    Kind
	Message string
	Field   string // offending field for validation errors, if any
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation reports a request or record that fails validation.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// NotFound reports a missing entity.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// RelatedNotExists reports a foreign key pointing at a missing record.
func RelatedNotExists(cause error) *Error {
	return &Error{
		Kind:    KindRelatedNotExists,
		Message: "related record does not exist",
		Cause:   cause,
	}
}

// Integrity reports a database integrity conflict other than a missing
// foreign key.
func Integrity(cause error) *Error {
	return &Error{Kind: KindIntegrity, Message: "integrity constraint violated", Cause: cause}
}

// Auth reports a missing or invalid credential.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// BrokerPublish reports a failed publish to the message broker.
func BrokerPublish(message string) *Error {
	return &Error{Kind: KindBrokerPublish, Message: message}
}

// UnknownQueryType reports a subscriber query type absent from the registry.
func UnknownQueryType(name string) *Error {
	return &Error{Kind: KindUnknownQuery, Message: fmt.Sprintf("unknown subscriber query type: %s", name)}
}

// Preflight reports a work unit that failed the former's liveness check.
func Preflight(message string) *Error {
	return &Error{Kind: KindPreflight, Message: message}
}

// Internal wraps an unexpected error.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindRelatedNotExists:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindIntegrity:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
