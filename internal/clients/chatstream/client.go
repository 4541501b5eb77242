// Package chatstream talks to the backend's streaming chat endpoint and turns
// its event-stream body into a pull-style sequence of records.
package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/foodlens/internal/platform/ctxutil"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Options struct {
	BaseURL string
	APIKey  string

	// StreamTimeout bounds the whole exchange. Zero means no limit.
	StreamTimeout time.Duration
	// IdleTimeout aborts a stream that goes quiet for this long. Zero means
	// no limit.
	IdleTimeout time.Duration

	HTTPClient *http.Client
}

type Client struct {
	log    *logger.Logger
	tracer trace.Tracer

	baseURL string
	apiKey  string

	streamTimeout time.Duration
	idleTimeout   time.Duration

	httpClient *http.Client
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	streamTimeout := opts.StreamTimeout
	if streamTimeout < 0 {
		streamTimeout = 0
	}
	idle := opts.IdleTimeout
	if idle < 0 {
		idle = 0
	}
	return &Client{
		log:           logger.OrNop(log).With("client", "chatstream"),
		tracer:        otel.Tracer("foodlens/chatstream"),
		baseURL:       baseURL,
		apiKey:        strings.TrimSpace(opts.APIKey),
		streamTimeout: streamTimeout,
		idleTimeout:   idle,
		httpClient:    hc,
	}, nil
}

// Send opens one chat request. The returned Stream owns the response body and
// must be closed.
func (c *Client) Send(ctx context.Context, r Request) (*Stream, error) {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{
		Message:   msg,
		SessionID: strings.TrimSpace(r.SessionID),
		Language:  strings.TrimSpace(r.Language),
	}); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctxutil.Default(ctx), "chatstream.send",
		trace.WithAttributes(attribute.Int("message.len", len(msg))))

	ctx2, cancelTimeout := ctxutil.WithOptionalTimeout(ctx, c.streamTimeout)
	ctx2, cancel := context.WithCancelCause(ctx2)
	release := func() {
		cancel(ErrClosed)
		cancelTimeout()
	}

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+"/chat/stream", &buf)
	if err != nil {
		release()
		span.End()
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		release()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		span.End()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		release()
		herr := parseHTTPError(resp.StatusCode, raw)
		span.RecordError(herr)
		span.SetStatus(codes.Error, "http error")
		span.End()
		return nil, herr
	}

	return newStream(streamConfig{
		log:     c.log,
		ctx:     ctx2,
		cancel:  cancel,
		release: release,
		body:    resp.Body,
		idle:    c.idleTimeout,
		span:    span,
	}), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
