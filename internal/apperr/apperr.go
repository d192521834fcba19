package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the broad class of an error.
type Kind int

const (
	// KindInternal is the zero value so unclassified errors are treated as internal.
	KindInternal Kind = iota
	// KindValidation marks client-fixable input errors.
	KindValidation
	// KindNotFound marks unknown sessions or missing session assets.
	KindNotFound
	// KindProcessing marks prober or transcoder failures.
	KindProcessing
)

// Code identifies the specific rule or stage that failed.
type Code string

// Error codes.
const (
	CodeInvalidFormat       Code = "invalid_format"
	CodeUnknownField        Code = "unknown_field"
	CodeRejectOrientation   Code = "reject_orientation"
	CodeTooManyOverlays     Code = "too_many_overlays"
	CodeTooManyFiles        Code = "too_many_files"
	CodeFileTooLarge        Code = "file_too_large"
	CodeMissingAsset        Code = "missing_asset"
	CodeInvalidClip         Code = "invalid_clip"
	CodeInvalidRequest      Code = "invalid_request"
	CodeSessionNotFound     Code = "session_not_found"
	CodeSessionAssetMissing Code = "session_asset_missing"
	CodeProbe               Code = "probe_error"
	CodeComposition         Code = "composition_error"
	CodeInternal            Code = "internal_error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// Diagnostic holds captured process output. It is logged, and only
	// shown to clients outside production.
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a client-fixable error.
func Validation(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Processing creates an external-process failure carrying diagnostics.
func Processing(code Code, message, diagnostic string, err error) *Error {
	return &Error{Kind: KindProcessing, Code: code, Message: message, Diagnostic: diagnostic, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal if it is unclassified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		if HasCode(err, CodeFileTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindProcessing:
		return "processing"
	default:
		return "internal"
	}
}
