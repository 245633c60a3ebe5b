package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind represents the category of error
type Kind int

const (
	// Input errors - missing or invalid repository URL, empty code payload
	KindInput Kind = iota
	// Listing errors - repository or branch not found, listing request failed
	KindListing
	// Content fetch errors - raw file content could not be retrieved
	KindContentFetch
	// Oversized errors - payload exceeds the model's context capacity or the body limit
	KindOversized
	// Model errors - any other generative model failure
	KindModel
	// Timeout errors - analysis did not finish before its deadline
	KindTimeout
	// Canceled errors - work abandoned because a newer selection superseded it
	KindCanceled
	// Config errors - missing or invalid configuration
	KindConfig
	// Internal errors - unexpected internal state
	KindInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a classified error with context
type Error struct {
	Kind       Kind
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches another *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		e.Kind.String(),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "INPUT"
	case KindListing:
		return "LISTING"
	case KindContentFetch:
		return "CONTENT_FETCH"
	case KindOversized:
		return "OVERSIZED"
	case KindModel:
		return "MODEL"
	case KindTimeout:
		return "TIMEOUT"
	case KindCanceled:
		return "CANCELED"
	case KindConfig:
		return "CONFIG"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given kind, severity, and message
func New(kind Kind, severity Severity, message string) *Error {
	return &Error{
		Kind:       kind,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with a kind and message
func Wrap(err error, kind Kind, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:       kind,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// InputError creates an input validation error
func InputError(message string) *Error {
	return New(KindInput, SeverityHigh, message)
}

// InputErrorf creates an input validation error with formatting
func InputErrorf(format string, args ...interface{}) *Error {
	return New(KindInput, SeverityHigh, fmt.Sprintf(format, args...))
}

// ListingError wraps a repository listing failure
func ListingError(err error, message string) *Error {
	return Wrap(err, KindListing, SeverityHigh, message)
}

// ContentFetchError wraps a raw content fetch failure
func ContentFetchError(err error, message string) *Error {
	return Wrap(err, KindContentFetch, SeverityMedium, message)
}

// OversizedError creates an oversized input error, wrapping cause when present
func OversizedError(err error, message string) *Error {
	if err == nil {
		return New(KindOversized, SeverityMedium, message)
	}
	return Wrap(err, KindOversized, SeverityMedium, message)
}

// ModelError wraps a generative model failure
func ModelError(err error, message string) *Error {
	return Wrap(err, KindModel, SeverityMedium, message)
}

// TimeoutError wraps a deadline expiry
func TimeoutError(err error, message string) *Error {
	return Wrap(err, KindTimeout, SeverityMedium, message)
}

// CanceledError wraps a cancellation caused by a newer selection
func CanceledError(err error, message string) *Error {
	return Wrap(err, KindCanceled, SeverityLow, message)
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(KindConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(KindConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// InternalError creates an internal error
func InternalError(message string) *Error {
	return New(KindInternal, SeverityCritical, message)
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the proxy's wire status: client faults are 400,
// everything else is 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput, KindOversized:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the human readable reason shown for a failed operation
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindInput:
		var e *Error
		stderrors.As(err, &e)
		return e.Message
	case KindListing:
		return "Could not load the repository. Check the URL and try again."
	case KindContentFetch:
		return "Could not load the file contents from the repository."
	case KindOversized:
		return "This file is too large to analyze."
	case KindModel:
		return "Failed to get description from AI."
	case KindTimeout:
		return "The analysis took too long and was abandoned."
	case KindCanceled:
		return "The request was canceled."
	case KindConfig:
		return "The service is not configured correctly."
	default:
		return "An unexpected error occurred."
	}
}
