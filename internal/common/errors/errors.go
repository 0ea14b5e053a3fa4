// Package errors provides the error taxonomy shared by the transport, the
// session store and the domain API modules.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeNotEligible ErrorCode = "NOT_ELIGIBLE"
	ErrCodeService     ErrorCode = "SERVICE_ERROR"
	ErrCodeNetwork     ErrorCode = "NETWORK_ERROR"
	ErrCodeAuth        ErrorCode = "AUTH_ERROR"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// Severity tells the view layer how loudly to render an error.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// StandardError represents a structured client error.
type StandardError struct {
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Details    string            `json:"details,omitempty"`
	StatusCode int               `json:"statusCode,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Retryable  bool              `json:"retryable"`
	Timestamp  time.Time         `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause (context cancellation, dial errors).
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on Code, so errors.Is(err, ErrNotEligible) works for any
// StandardError of that kind regardless of message.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind sentinels for errors.Is.
var (
	ErrValidation  = &StandardError{Code: ErrCodeValidation}
	ErrNotFound    = &StandardError{Code: ErrCodeNotFound}
	ErrNotEligible = &StandardError{Code: ErrCodeNotEligible}
	ErrService     = &StandardError{Code: ErrCodeService}
	ErrNetwork     = &StandardError{Code: ErrCodeNetwork}
	ErrAuth        = &StandardError{Code: ErrCodeAuth}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error. The message
// lists every offending field so a single banner can show all of them.
func NewValidationError(fields map[string]string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   validationMessage(fields),
		Fields:    fields,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRejectedError creates a validation error for a 4xx response.
func NewRejectedError(status int, message string, fields map[string]string) *StandardError {
	if message == "" {
		message = validationMessage(fields)
	}
	return &StandardError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: status,
		Fields:     fields,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not-found error.
func NewNotFoundError(message string) *StandardError {
	if message == "" {
		message = "Not found"
	}
	return &StandardError{
		Code:       ErrCodeNotFound,
		Message:    message,
		StatusCode: 404,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewNotEligibleError creates the informational address-eligibility error.
func NewNotEligibleError(message string) *StandardError {
	if message == "" {
		message = "Address not eligible"
	}
	return &StandardError{
		Code:       ErrCodeNotEligible,
		Message:    message,
		StatusCode: 404,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewServiceError creates an error for 5xx responses and other backend failures.
func NewServiceError(status int, message, details string) *StandardError {
	if message == "" {
		message = "Service error"
	}
	return &StandardError{
		Code:       ErrCodeService,
		Message:    message,
		Details:    details,
		StatusCode: status,
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
	}
}

// NewMalformedResponseError creates a service error for an undecodable body.
func NewMalformedResponseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeService,
		Message:   "Malformed response from server",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNetworkError creates a retryable error for requests that got no response.
func NewNetworkError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetwork,
		Message:   "Unable to reach the server",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAuthError creates a non-retryable authentication error.
func NewAuthError(message string) *StandardError {
	if message == "" {
		message = "Authentication required"
	}
	return &StandardError{
		Code:       ErrCodeAuth,
		Message:    message,
		StatusCode: 401,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// WithCode copies err under a different code, keeping message and status.
func WithCode(err *StandardError, code ErrorCode) *StandardError {
	out := *err
	out.Code = code
	return &out
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// KindOf returns the error code of err, or ErrCodeInternal for foreign errors.
func KindOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// SeverityOf maps an error to its display severity. Not-eligible and
// not-found outcomes are informational; everything else is an error.
func SeverityOf(err error) Severity {
	switch KindOf(err) {
	case ErrCodeNotEligible, ErrCodeNotFound:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// UserMessage returns the human-readable message for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return Normalize(err).Message
}

func validationMessage(fields map[string]string) string {
	if len(fields) == 0 {
		return "Validation failed"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return strings.Join(msgs, "; ")
}
