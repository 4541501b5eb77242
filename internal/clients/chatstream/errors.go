package chatstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrEmptyMessage = errors.New("chatstream: message required")
	// ErrIdleTimeout reports Timeout() so callers classify it with other
	// deadline errors.
	ErrIdleTimeout error = idleTimeoutError{}
	ErrClosed            = errors.New("chatstream: stream closed")
)

type idleTimeoutError struct{}

func (idleTimeoutError) Error() string { return "chatstream: stream idle timeout" }
func (idleTimeoutError) Timeout() bool { return true }

type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	return fmt.Sprintf("http error: status=%d message=%s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// StreamError is an error event sent inside an otherwise healthy stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

func parseHTTPError(status int, raw []byte) error {
	body := strings.TrimSpace(string(raw))

	var env struct {
		Detail any `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if msg := strings.TrimSpace(env.Error.Message); msg != "" {
			return &HTTPError{StatusCode: status, Message: msg, Body: body}
		}
		if detail, ok := env.Detail.(string); ok && strings.TrimSpace(detail) != "" {
			return &HTTPError{StatusCode: status, Message: strings.TrimSpace(detail), Body: body}
		}
	}
	return &HTTPError{StatusCode: status, Body: body}
}
