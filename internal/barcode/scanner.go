package barcode

import (
	"context"
	"image"

	"golang.org/x/time/rate"

	"github.com/yungbote/foodlens/internal/platform/logger"
)

// Scanner runs a Decoder over a live frame stream, one attempt per accepted
// frame, until a code is found, the source closes or ctx ends. Frames that
// arrive faster than the configured rate are dropped rather than queued.
type Scanner struct {
	log     *logger.Logger
	decoder Decoder
	limiter *rate.Limiter
}

func NewScanner(log *logger.Logger, decoder Decoder, framesPerSecond float64) *Scanner {
	limit := rate.Inf
	if framesPerSecond > 0 {
		limit = rate.Limit(framesPerSecond)
	}
	return &Scanner{
		log:     logger.OrNop(log).With("service", "barcode.Scanner"),
		decoder: decoder,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type ScanStats struct {
	Attempted int
	Dropped   int
}

func (s *Scanner) Run(ctx context.Context, frames <-chan image.Image) (string, bool, ScanStats) {
	var stats ScanStats
	for {
		select {
		case <-ctx.Done():
			return "", false, stats
		case frame, ok := <-frames:
			if !ok {
				return "", false, stats
			}
			if !s.limiter.Allow() {
				stats.Dropped++
				continue
			}
			stats.Attempted++
			if code, found := s.decoder.Decode(ctx, frame); found {
				s.log.Debug("live scan hit", "barcode", code, "attempted", stats.Attempted, "dropped", stats.Dropped)
				return code, true, stats
			}
		}
	}
}
