package registry

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind classifies an APIError.
type Kind int

// The failure kinds reported by the lookup client.
const (
	BadRequest Kind = iota
	QuotaExceeded
	RateLimited
	ServerError
	NetworkError
	DecodeError
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "BadRequest"
	case QuotaExceeded:
		return "QuotaExceeded"
	case RateLimited:
		return "RateLimited"
	case ServerError:
		return "ServerError"
	case NetworkError:
		return "NetworkError"
	case DecodeError:
		return "DecodeError"
	default:
		return "Unknown"
	}
}

// Detail keys used in APIError.Details.
const (
	DetailResetAt    = "reset_at"    // RFC 3339 timestamp for the quota reset boundary.
	DetailRetryAfter = "retry_after" // Server-supplied delay in whole seconds.
)

// APIError is the single error type that every failed lookup converges into,
// whether the failure happened in transport, in the quota/rate-limit policy
// or while decoding the response.
type APIError struct {
	Kind    Kind
	Message string
	Status  int               // HTTP status code; zero when the failure never produced a response.
	Details map[string]string // Extra context for QuotaExceeded and RateLimited.
}

// Error makes APIError satisfy the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsAPIError unwraps err into an *APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func newBadRequest(status int, msg string) *APIError {
	return &APIError{Kind: BadRequest, Message: msg, Status: status}
}

func newQuotaExceeded(status int, resetAt time.Time) *APIError {
	return &APIError{
		Kind:    QuotaExceeded,
		Message: fmt.Sprintf("daily lookup quota exhausted, resets at %s", resetAt.Format(time.RFC3339)),
		Status:  status,
		Details: map[string]string{DetailResetAt: resetAt.Format(time.RFC3339)},
	}
}

func newRateLimited(status int, delay time.Duration) *APIError {
	secs := int(delay / time.Second)
	return &APIError{
		Kind:    RateLimited,
		Message: fmt.Sprintf("registry asked us to back off for %s", delay),
		Status:  status,
		Details: map[string]string{DetailRetryAfter: strconv.Itoa(secs)},
	}
}

func newServerError(status int) *APIError {
	return &APIError{
		Kind:    ServerError,
		Message: fmt.Sprintf("registry responded with status code %d", status),
		Status:  status,
	}
}

func newNetworkError(err error) *APIError {
	return &APIError{Kind: NetworkError, Message: err.Error()}
}

func newDecodeError(err error) *APIError {
	return &APIError{Kind: DecodeError, Message: err.Error()}
}
