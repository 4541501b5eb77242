package chatstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/foodlens/internal/domain/insight"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

const (
	readChunkSize = 4 << 10
	// maxPending caps a pushed-back record. Past this it is treated as garbage.
	maxPending = 1 << 20
)

type streamConfig struct {
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelCauseFunc
	release func()
	body    io.ReadCloser
	idle    time.Duration
	span    trace.Span
}

// Stream is a single-consumer iterator over the records of one chat reply.
// Next must be called from one goroutine; Close may be called from any.
type Stream struct {
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelCauseFunc
	release func()
	body    io.ReadCloser
	span    trace.Span

	idle      time.Duration
	idleTimer *time.Timer

	framer  Framer
	buf     []byte
	queue   []Record
	pending string
	sawDone bool

	done bool
	err  error

	records   atomic.Int64
	truncated atomic.Int64
	closed    atomic.Bool
	cleanOnce sync.Once
}

func newStream(cfg streamConfig) *Stream {
	s := &Stream{
		log:     cfg.log,
		ctx:     cfg.ctx,
		cancel:  cfg.cancel,
		release: cfg.release,
		body:    cfg.body,
		span:    cfg.span,
		idle:    cfg.idle,
		buf:     make([]byte, readChunkSize),
	}
	if s.idle > 0 {
		s.idleTimer = time.AfterFunc(s.idle, func() { s.cancel(ErrIdleTimeout) })
	}
	return s
}

// Next returns the next record. It returns io.EOF after the termination
// marker or a clean end of body, and a non-nil error if the stream broke.
func (s *Stream) Next() (Record, error) {
	for {
		if len(s.queue) > 0 {
			rec := s.queue[0]
			s.queue = s.queue[1:]
			if rec.Kind == RecordDone {
				s.finish(io.EOF)
			}
			return rec, nil
		}
		if s.closed.Load() && !s.done {
			s.done = true
			s.err = ErrClosed
		}
		if s.done {
			return Record{}, s.err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			if s.idleTimer != nil {
				s.idleTimer.Reset(s.idle)
			}
			for _, line := range s.framer.Feed(s.buf[:n]) {
				if herr := s.handleLine(line); herr != nil {
					s.finish(herr)
					break
				}
			}
		}
		if err != nil && !s.done {
			if errors.Is(err, io.EOF) {
				s.atEOF()
				continue
			}
			s.finish(s.readError(err))
		}
	}
}

// Truncated counts undecodable fragments that were discarded, including any
// residue left at end of stream.
func (s *Stream) Truncated() int { return int(s.truncated.Load()) }

// Records counts records delivered to the consumer, the termination marker
// included.
func (s *Stream) Records() int { return int(s.records.Load()) }

// Close aborts the request if it is still running and releases the body.
func (s *Stream) Close() error {
	s.closed.Store(true)
	s.cleanup()
	return nil
}

func (s *Stream) handleLine(line string) error {
	if s.sawDone {
		return nil
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, ":") {
		return nil
	}

	isData := strings.HasPrefix(trimmed, "data:")
	var payload string
	switch {
	case isData:
		payload = strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
	case s.pending != "":
		payload = trimmed
	default:
		// event:, id: and retry: fields carry nothing the payload does not.
		return nil
	}

	if s.pending != "" {
		joined := s.pending + "\n" + payload
		if rec, ok, err := s.decode(joined); ok {
			s.pending = ""
			return s.emit(rec, err)
		}
		if isData {
			if rec, ok, err := s.decode(payload); ok {
				s.discardPending("superseded by a complete record")
				return s.emit(rec, err)
			}
		}
		s.pending = joined
		if len(s.pending) > maxPending {
			s.discardPending("pending record too large")
		}
		return nil
	}

	rec, ok, err := s.decode(payload)
	if !ok {
		s.pending = payload
		return nil
	}
	return s.emit(rec, err)
}

// decode reports ok=false when payload is not complete JSON yet.
func (s *Stream) decode(payload string) (*Record, bool, error) {
	if payload == "" {
		return nil, true, nil
	}
	if payload == "[DONE]" {
		return &Record{Kind: RecordDone}, true, nil
	}

	var ev eventPayload
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, false, nil
	}

	switch strings.ToLower(strings.TrimSpace(ev.Type)) {
	case "structured":
		in, err := insight.Parse(ev.Data)
		if err != nil {
			s.log.Warn("structured record rejected", "error", err)
			return nil, true, nil
		}
		return &Record{Kind: RecordStructured, Insight: in}, true, nil
	case "error":
		msg := strings.TrimSpace(ev.Message)
		if msg == "" {
			msg = "unknown"
		}
		return nil, true, &StreamError{Message: msg}
	}

	if len(ev.Choices) > 0 {
		if text := ev.Choices[0].Delta.Content; text != "" {
			return &Record{Kind: RecordDelta, Text: text}, true, nil
		}
		return nil, true, nil
	}

	s.log.Debug("unrecognised stream record", "type", ev.Type)
	return nil, true, nil
}

func (s *Stream) emit(rec *Record, err error) error {
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if rec.Kind == RecordDone {
		s.sawDone = true
	}
	s.records.Add(1)
	s.queue = append(s.queue, *rec)
	return nil
}

func (s *Stream) atEOF() {
	if tail, ok := s.framer.Flush(); ok {
		if err := s.handleLine(tail); err != nil {
			s.finish(err)
			return
		}
	}
	if s.pending != "" {
		s.discardPending("end of stream")
	}
	s.finish(io.EOF)
}

func (s *Stream) discardPending(reason string) {
	s.truncated.Add(1)
	s.log.Warn("discarding undecodable stream data", "reason", reason, "bytes", len(s.pending))
	s.pending = ""
}

func (s *Stream) readError(err error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if cause := context.Cause(s.ctx); cause != nil {
		return cause
	}
	return err
}

func (s *Stream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.span.SetAttributes(
		attribute.Int64("records", s.records.Load()),
		attribute.Int64("truncated", s.truncated.Load()),
	)
	if err != nil && !errors.Is(err, io.EOF) {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, "stream failed")
	}
	// Records still queued are delivered before err surfaces.
	s.cleanup()
}

func (s *Stream) cleanup() {
	s.cleanOnce.Do(func() {
		if s.idleTimer != nil {
			s.idleTimer.Stop()
		}
		_ = s.body.Close()
		s.release()
		s.span.End()
	})
}
