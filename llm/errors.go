// ABOUTME: Classified errors for the generator-facing LLM client.
// ABOUTME: One Error type tagged with a Kind; the Kind decides whether RetryMiddleware tries again.

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed model call.
type Kind int

const (
	// KindOther is an unclassified failure. Not retried.
	KindOther Kind = iota
	// KindTransient is an unclassified failure worth another attempt.
	KindTransient
	KindAuth
	KindInvalidRequest
	KindRateLimit
	KindServer
	KindTimeout
	KindConfig
)

var kindNames = map[Kind]string{
	KindOther:          "other",
	KindTransient:      "transient",
	KindAuth:           "auth",
	KindInvalidRequest: "invalid_request",
	KindRateLimit:      "rate_limit",
	KindServer:         "server",
	KindTimeout:        "timeout",
	KindConfig:         "config",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether failures of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransient, KindRateLimit, KindServer, KindTimeout:
		return true
	}
	return false
}

// Error is returned by adapters and middleware in this package.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the provider's back-off hint in seconds, when it sent one.
	RetryAfter *float64
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error     { return e.Cause }
func (e *Error) IsRetryable() bool { return e.Kind.Retryable() }

// KindOf returns the Kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

func configError(msg string, cause error) *Error {
	return &Error{Kind: KindConfig, Message: msg, Cause: cause}
}

func timeoutError(msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: msg, Cause: cause}
}

// KindForStatus classifies an HTTP status returned by a provider API.
// Unrecognized statuses are treated as transient.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusRequestEntityTooLarge || status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindTransient
	}
}

// ErrorFromStatus builds the Error for a failed provider HTTP call.
func ErrorFromStatus(status int, message, provider string, retryAfter *float64) *Error {
	return &Error{
		Kind:       KindForStatus(status),
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		RetryAfter: retryAfter,
	}
}
