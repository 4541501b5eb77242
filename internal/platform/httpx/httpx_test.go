package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

type idleErr struct{}

func (idleErr) Error() string { return "idle" }
func (idleErr) Timeout() bool { return true }

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transport bool
		timeout   bool
		retryable bool
		status    int
	}{
		{name: "nil"},
		{name: "deadline", err: context.DeadlineExceeded, transport: true, timeout: true, retryable: true},
		{name: "url", err: &url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}, transport: true, retryable: true},
		{name: "status", err: fmt.Errorf("wrapped: %w", statusErr(503)), status: 503, retryable: true},
		{name: "not found", err: statusErr(404), status: 404},
		{name: "idle timer", err: fmt.Errorf("read: %w", idleErr{}), timeout: true},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransportError(tc.err); got != tc.transport {
				t.Fatalf("transport=%v", got)
			}
			if got := IsTimeout(tc.err); got != tc.timeout {
				t.Fatalf("timeout=%v", got)
			}
			if got := StatusCode(tc.err); got != tc.status {
				t.Fatalf("status=%d", got)
			}
			if got := Retryable(tc.err); got != tc.retryable {
				t.Fatalf("retryable=%v", got)
			}
		})
	}
	if !IsRetryableHTTPStatus(429) || IsRetryableHTTPStatus(404) {
		t.Fatalf("retryable status classification")
	}
}
