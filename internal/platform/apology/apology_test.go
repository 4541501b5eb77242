package apology

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestForChat(t *testing.T) {
	if got := ForChat(errors.New("boom")); got != Chat {
		t.Fatalf("got=%q", got)
	}
	if got := ForChat(context.DeadlineExceeded); got != Timeout {
		t.Fatalf("got=%q", got)
	}
	if got := ForChat(statusErr(429)); got != Busy {
		t.Fatalf("got=%q", got)
	}
}

func TestForImage(t *testing.T) {
	if got := ForImage(nil); got != Image {
		t.Fatalf("got=%q", got)
	}
	if got := ForImage(fmt.Errorf("x: %w", context.DeadlineExceeded)); got != Timeout {
		t.Fatalf("got=%q", got)
	}
}
