package httpx

import (
	"context"
	"errors"
	"net"
	"net/url"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// Retryable reports whether a later attempt could succeed: a network failure
// or a retryable status. Used to pick log fields and apology wording.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return IsTransportError(err) || IsRetryableHTTPStatus(StatusCode(err))
}

// IsTransportError reports whether err came from the network rather than from
// a response the backend produced.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

type timeouter interface {
	Timeout() bool
}

// IsTimeout reports a deadline hit: ours, the transport's, or any error that
// says Timeout() (stream idle timers included).
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

// StatusCode extracts an HTTP status from err, or 0.
func StatusCode(err error) int {
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}
