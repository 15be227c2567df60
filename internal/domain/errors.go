package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a settings or provider-options value that failed
// schema validation. Raised before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// CapabilityError reports a setting exclusive to one backend supplied while
// the other backend is active. Raised before any remote call.
type CapabilityError struct {
	Feature         string
	ActiveBackend   Backend
	RequiredBackend Backend
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s is only available on the %s backend, but the %s backend is active",
		e.Feature, e.RequiredBackend, e.ActiveBackend)
}

// TooManyValuesError reports an embedding batch exceeding the per-call
// maximum.
type TooManyValuesError struct {
	ModelID string
	Limit   int
	Count   int
}

func (e *TooManyValuesError) Error() string {
	return fmt.Sprintf("model %s supports at most %d embedding values per call, got %d",
		e.ModelID, e.Limit, e.Count)
}

// RequestSummary is the redacted description of a backend request attached
// to API-call errors and the interaction log. It carries counts and flags
// only, never prompt text or file content.
type RequestSummary struct {
	Backend           Backend
	Operation         string
	MessageCount      int
	ToolCount         int
	Stream            bool
	HasResponseFormat bool
	HasToolChoice     bool
	ConfigRef         bool
}

// APICallError wraps any failure returned by a backend client. It is the
// single classified shape remote errors surface as; the original error is
// preserved for errors.Is/As.
type APICallError struct {
	Operation string
	Backend   Backend
	URL       string
	// StatusCode is zero when the failure never produced an HTTP response.
	StatusCode int
	// Headers holds response headers recovered from the original error,
	// including from nested transport-error shapes.
	Headers http.Header
	Summary RequestSummary
	Err     error
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("%s call to %s backend failed (%s): %v", e.Operation, e.Backend, e.URL, e.Err)
}

func (e *APICallError) Unwrap() error { return e.Err }

// headerCarrier is implemented by transport errors that retain response
// headers.
type headerCarrier interface {
	ResponseHeaders() http.Header
}

// statusCarrier is implemented by transport errors that retain the HTTP
// status code.
type statusCarrier interface {
	HTTPStatusCode() int
}

// WrapAPIError classifies err as an APICallError, recovering headers and
// status from nested transport-error shapes. An err that is already an
// APICallError is returned unchanged.
func WrapAPIError(err error, op string, backend Backend, url string, summary RequestSummary) *APICallError {
	var apiErr *APICallError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	wrapped := &APICallError{
		Operation: op,
		Backend:   backend,
		URL:       url,
		Summary:   summary,
		Err:       err,
	}

	var hc headerCarrier
	if errors.As(err, &hc) {
		wrapped.Headers = hc.ResponseHeaders()
	}
	var sc statusCarrier
	if errors.As(err, &sc) {
		wrapped.StatusCode = sc.HTTPStatusCode()
	}
	return wrapped
}

// ErrAborted is reported when the caller's context is cancelled while a
// non-streaming backend call is in flight. The remote request is not
// guaranteed to stop executing; only the local wait is released.
var ErrAborted = errors.New("call aborted")

// AbortError pairs ErrAborted with the context error that triggered it.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("call aborted: %v", e.Cause)
}

func (e *AbortError) Unwrap() error { return ErrAborted }

// IsAborted reports whether err represents a caller-initiated abort.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
