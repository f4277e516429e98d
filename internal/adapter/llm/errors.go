package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when the service answers 2xx with an unusable body.
var ErrMalformedResponse = errors.New("malformed response from completion service")

// UpstreamError is a non-2xx answer from the completion service.
type UpstreamError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *UpstreamError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("LLM API error [%d]: %s (type: %s)", e.StatusCode, e.Message, e.Type)
	}
	return fmt.Sprintf("LLM API error [%d]: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode returns the status code the service answered with.
func (e *UpstreamError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsTimeout reports whether err was caused by a deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsRateLimited reports whether the service refused the call for capacity reasons.
func IsRateLimited(err error) bool {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
			return true
		}
	}
	msg := strings.ToLower(errString(err))
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded")
}

// IsRetryable reports whether the same call may succeed if repeated later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) || IsRateLimited(err) {
		return true
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.StatusCode {
		case http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		}
	}
	return strings.Contains(strings.ToLower(errString(err)), "timeout")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
