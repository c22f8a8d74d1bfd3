package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents different kinds of failures surfaced to callers
type ErrorType string

const (
	ErrorTypeInvalidIdentifier ErrorType = "invalid_identifier"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeAuth              ErrorType = "authorization"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeLoginFailed       ErrorType = "login_failed"
	ErrorTypeUnavailable       ErrorType = "unavailable"
	ErrorTypeElementNotFound   ErrorType = "element_not_found"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error is a typed failure. Two Errors match under errors.Is when their
// types are equal, so the sentinels below work against wrapped values.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Is matches on Type only
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

var (
	// ErrInvalidIdentifier is returned before any network activity for ids that are not all digits
	ErrInvalidIdentifier = &Error{Type: ErrorTypeInvalidIdentifier, Message: "identifier must be numeric"}
	// ErrNotFound means the resource is absent, removed, suspended or every strategy was exhausted
	ErrNotFound = &Error{Type: ErrorTypeNotFound, Message: "no resource found"}
	// ErrAuthorization means the REST credentials were rejected
	ErrAuthorization = &Error{Type: ErrorTypeAuth, Message: "authorization failed"}
	// ErrRateLimited matches every *RateLimitError
	ErrRateLimited = &Error{Type: ErrorTypeRateLimit, Message: "rate limit exceeded"}
	// ErrTimeout means no qualifying payload arrived within the interception window
	ErrTimeout = &Error{Type: ErrorTypeTimeout, Message: "no matching response before timeout"}
	// ErrLoginFailed means the login attempt budget was exhausted
	ErrLoginFailed = &Error{Type: ErrorTypeLoginFailed, Message: "platform not accessible"}
	// ErrUnavailable signals that a payload was captured but the resource is
	// hidden from the current session
	ErrUnavailable = &Error{Type: ErrorTypeUnavailable, Message: "resource unavailable to this session"}
	// ErrElementNotFound is returned by browser waits that hit their deadline
	ErrElementNotFound = &Error{Type: ErrorTypeElementNotFound, Message: "element not found"}
)

// New builds a typed error with a message
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for a specific resource
func NotFound(kind, id string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: fmt.Sprintf("no %s found with id %s", kind, id), Code: http.StatusNotFound}
}

// InvalidIdentifier builds an invalid-identifier error naming the bad input
func InvalidIdentifier(id string) *Error {
	return &Error{Type: ErrorTypeInvalidIdentifier, Message: fmt.Sprintf("%q is not a numeric identifier", id)}
}

// RateLimitError carries the server-provided rate limit window
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: limit %d, remaining %d, resets in %s", e.Limit, e.Remaining, e.ResetIn)
}

// Is lets errors.Is(err, ErrRateLimited) match
func (e *RateLimitError) Is(target error) bool {
	var t *Error
	return stderrors.As(target, &t) && t.Type == ErrorTypeRateLimit
}

// TypeOf returns the ErrorType of the first typed error in err's chain
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var rl *RateLimitError
	if stderrors.As(err, &rl) {
		return ErrorTypeRateLimit
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried immediately at the transport level
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsRetryableLater reports whether the caller may succeed by trying again
// after some time. Invalid identifiers and failed logins never are.
func IsRetryableLater(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNotFound, ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0:
		return true
	case http.StatusTooManyRequests:
		return false
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}
