package summarizer

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies a failed exchange with the generative API.
// The kind drives the retry decision: rate-limited calls wait and try
// again, transient calls retry up to the attempt budget, everything
// else propagates immediately.
type FailureKind string

const (
	RateLimited      FailureKind = "rate_limited"
	TransientNetwork FailureKind = "transient_network"
	TransientServer  FailureKind = "transient_server"
	TransientTimeout FailureKind = "transient_timeout"
	PermanentRequest FailureKind = "permanent_request"
	PermanentAuth    FailureKind = "permanent_auth"
	ContentFiltered  FailureKind = "content_filtered"
)

// APIError is the classified form of any provider failure.
type APIError struct {
	Kind    FailureKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}

	return fmt.Sprintf("api error (%s): %s", e.Kind, e.Message)
}

func (e *APIError) transient() bool {
	switch e.Kind {
	case TransientNetwork, TransientServer, TransientTimeout:
		return true
	default:
		return false
	}
}

func IsRateLimited(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Kind == RateLimited
}

func IsTransient(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.transient()
}

func IsContentFiltered(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Kind == ContentFiltered
}

// classifyStatus maps an HTTP-like status class onto the taxonomy:
// 429 is the rate budget, 408 and 5xx are worth retrying, any other
// 4xx means the request itself is bad.
func classifyStatus(status int, message string) *APIError {
	kind := TransientServer

	switch {
	case status == http.StatusTooManyRequests:
		kind = RateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		kind = TransientServer
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = PermanentAuth
	case status >= 400:
		kind = PermanentRequest
	}

	return &APIError{Kind: kind, Status: status, Message: message}
}

// classifyTransport maps non-HTTP failures (dial errors, resets,
// deadline expiry) onto the taxonomy.
func classifyTransport(err error) *APIError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: TransientTimeout, Message: err.Error()}
	}

	return &APIError{Kind: TransientNetwork, Message: err.Error()}
}
