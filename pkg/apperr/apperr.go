// Package apperr classifies failures so callers can tell validation
// problems, transient collaborator outages and illegal lifecycle moves apart.
package apperr

import (
	"errors"
	"net/http"
)

// Kind groups error codes by how the operator should react to them.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindTerminalState     Kind = "terminal_state"
	KindIllegalTransition Kind = "illegal_transition"
	KindCollaborator      Kind = "collaborator"
	KindRender            Kind = "render"
	KindInternal          Kind = "internal"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeRequiredField     Code = "REQUIRED_FIELD"
	CodeNegativeAmount    Code = "NEGATIVE_AMOUNT"
	CodeInvalidEmail      Code = "INVALID_EMAIL"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodeInvalidKind       Code = "INVALID_DOCUMENT_KIND"
	CodeInvalidTemplate   Code = "INVALID_TEMPLATE"
	CodeRecordNotFound    Code = "RECORD_NOT_FOUND"
	CodeTemplateNotFound  Code = "TEMPLATE_NOT_FOUND"
	CodeContentNotFound   Code = "CONTENT_NOT_FOUND"
	CodeVersionConflict   Code = "VERSION_CONFLICT"
	CodeSlugTaken         Code = "SLUG_TAKEN"
	CodeAuditExists       Code = "AUDIT_ALREADY_RECORDED"
	CodeRecordRetired     Code = "RECORD_RETIRED"
	CodeTransitionDenied  Code = "TRANSITION_NOT_ALLOWED"
	CodeNotificationFail  Code = "NOTIFICATION_FAILED"
	CodeStorageFail       Code = "STORAGE_FAILED"
	CodeContentFetchFail  Code = "CONTENT_FETCH_FAILED"
	CodeExporterFail      Code = "EXPORTER_UNAVAILABLE"
	CodeRasterizationFail Code = "RASTERIZATION_FAILED"
	CodeUnresolvable      Code = "TEMPLATE_UNRESOLVABLE"
	CodeInternal          Code = "INTERNAL"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithMetadata creates a domain error carrying extra context for the client.
func WithMetadata(kind Kind, code Code, message string, metadata map[string]string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Validation is shorthand for a validation error.
func Validation(code Code, message string) *Error {
	return New(KindValidation, code, message)
}

// Collaborator wraps a failure of an external collaborator.
func Collaborator(code Code, message string, cause error) *Error {
	return Wrap(KindCollaborator, code, message, cause)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the response status the API uses for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindTerminalState, KindIllegalTransition:
		return http.StatusConflict
	case KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
