package shutdown

import (
	"context"
	"os/signal"
	"syscall"
)

// NotifyContext is cancelled on SIGINT/SIGTERM so an open camera session or
// chat stream is torn down when the user quits.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
