package capture

import (
	"context"
	"sync"

	"github.com/yungbote/foodlens/internal/barcode"
	"github.com/yungbote/foodlens/internal/domain/product"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

// CodeResolver is the part of the resolution pipeline a live scan needs.
type CodeResolver interface {
	ResolveCode(ctx context.Context, code string) product.Result
}

// Session is one open capture surface.
type Session struct {
	log      *logger.Logger
	lease    *Lease
	scanner  *barcode.Scanner
	resolver CodeResolver

	mu         sync.Mutex
	closed     bool
	cancelScan context.CancelFunc
}

func NewSession(log *logger.Logger, lease *Lease, scanner *barcode.Scanner, resolver CodeResolver) *Session {
	return &Session{
		log:      logger.OrNop(log).With("service", "capture.Session", "owner", lease.Owner()),
		lease:    lease,
		scanner:  scanner,
		resolver: resolver,
	}
}

// Scan reads frames until a barcode is found and resolves it. Closing the
// session stops the frame loop immediately. A resolution already under way
// runs to completion, but its result is dropped and Scan returns ErrClosed.
func (s *Session) Scan(ctx context.Context) (product.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return product.Result{}, ErrClosed
	}
	scanCtx, cancel := context.WithCancel(ctx)
	s.cancelScan = cancel
	s.mu.Unlock()

	code, ok, stats := s.scanner.Run(scanCtx, s.lease.Device().Frames())
	cancel()
	s.log.Debug("scan finished", "found", ok, "attempted", stats.Attempted, "dropped", stats.Dropped)

	if s.isClosed() {
		return product.Result{}, ErrClosed
	}
	if !ok {
		if err := ctx.Err(); err != nil {
			return product.Result{}, err
		}
		return product.Result{}, ErrNoBarcode
	}

	res := s.resolver.ResolveCode(ctx, code)
	if s.isClosed() {
		s.log.Info("dropping result for closed session", "barcode", code, "kind", string(res.Kind))
		return product.Result{}, ErrClosed
	}
	return res, nil
}

// Close stops capture and releases the device.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancelScan
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return s.lease.Release()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
