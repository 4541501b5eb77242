package chatstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/foodlens/internal/platform/apology"
	"github.com/yungbote/foodlens/internal/platform/httpx"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// chunkedBody returns one chunk per Read, so tests control where reads split.
type chunkedBody struct {
	chunks []string
	closed bool
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if len(b.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks[0] = b.chunks[0][n:]
	if b.chunks[0] == "" {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.closed = true
	return nil
}

func streamResponse(body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

func newTestClient(t *testing.T, rt roundTripperFunc, opts Options) *Client {
	t.Helper()
	if opts.BaseURL == "" {
		opts.BaseURL = "http://backend.test/api/"
	}
	opts.HTTPClient = &http.Client{Transport: rt}
	c, err := New(nil, opts)
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, s *Stream) ([]Record, error) {
	t.Helper()
	var out []Record
	for {
		rec, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func delta(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": text}}},
	})
	return "data: " + string(raw) + "\n\n"
}

const structuredLine = `data: {"type":"structured","data":{"ai_insight_title":"Parle-G","quick_verdict":"Occasional treat","why_this_matters":["Refined flour"],"trade_offs":{"positives":["Cheap energy"],"negatives":["Added sugar"]},"uncertainty":"Recipes change","ai_advice":"Pair with protein."}}` + "\n\n"

func TestSend_RequestShape(t *testing.T) {
	var seen struct {
		path, accept, auth string
		body               map[string]any
	}
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		seen.path = req.URL.Path
		seen.accept = req.Header.Get("Accept")
		seen.auth = req.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&seen.body))
		return streamResponse(&chunkedBody{chunks: []string{"data: [DONE]\n\n"}}), nil
	}, Options{APIKey: "k"})

	s, err := c.Send(context.Background(), Request{Message: "  is this healthy? ", SessionID: "s-1", Language: "hi"})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "/api/chat/stream", seen.path)
	assert.Equal(t, "text/event-stream", seen.accept)
	assert.Equal(t, "Bearer k", seen.auth)
	assert.Equal(t, "is this healthy?", seen.body["message"])
	assert.Equal(t, "s-1", seen.body["session_id"])
	assert.Equal(t, "hi", seen.body["language"])
}

func TestSend_EmptyMessage(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}, Options{})

	_, err := c.Send(context.Background(), Request{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestStream_RecordsInOrder(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		": keep-alive\n\n",
		structuredLine,
		delta("He"),
		delta("llo"),
		"data: [DONE]\n\n",
		delta("ignored after done"),
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 4)
	assert.Equal(t, RecordStructured, recs[0].Kind)
	assert.Equal(t, "Parle-G", recs[0].Insight.Title)
	require.NotNil(t, recs[0].Insight.Uncertainty)
	assert.Equal(t, "Recipes change", *recs[0].Insight.Uncertainty)
	assert.Equal(t, Record{Kind: RecordDelta, Text: "He"}, recs[1])
	assert.Equal(t, Record{Kind: RecordDelta, Text: "llo"}, recs[2])
	assert.Equal(t, RecordDone, recs[3].Kind)
	assert.Equal(t, 4, s.Records())
	assert.Zero(t, s.Truncated())
	assert.True(t, body.closed)
}

func TestStream_RecordSplitAcrossReads(t *testing.T) {
	full := delta("Hello") + "data: [DONE]\n\n"
	cut := strings.Index(full, `"content"`) + 4
	body := &chunkedBody{chunks: []string{full[:cut], full[cut:]}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 2)
	assert.Equal(t, "Hello", recs[0].Text)
}

func TestStream_MalformedJSONIsPushedBack(t *testing.T) {
	// The server broke one JSON payload over two lines.
	body := &chunkedBody{chunks: []string{
		`data: {"choices":[{"delta":` + "\n",
		`{"content":"joined"}}]}` + "\n\n",
		"data: [DONE]\n\n",
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 2)
	assert.Equal(t, "joined", recs[0].Text)
	assert.Zero(t, s.Truncated())
}

func TestStream_GarbageDoesNotSwallowLaterRecords(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		"data: not json at all\n\n",
		delta("ok"),
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok", recs[0].Text)
	assert.Equal(t, 1, s.Truncated())
}

func TestStream_ResidueAtEOFIsDiscarded(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		delta("partial answer"),
		`data: {"choices":[{"delta":{"content":"cut of`,
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 1)
	assert.Equal(t, "partial answer", recs[0].Text)
	assert.Equal(t, 1, s.Truncated())
}

func TestStream_ErrorEvent(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		delta("Half"),
		`data: {"type":"error","message":"model overloaded"}` + "\n\n",
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.Len(t, recs, 1)
	var serr *StreamError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "model overloaded", serr.Message)
}

func TestStream_InvalidStructuredPayloadIsSkipped(t *testing.T) {
	body := &chunkedBody{chunks: []string{
		`data: {"type":"structured","data":{"ai_insight_title":"only a title"}}` + "\n\n",
		"data: [DONE]\n\n",
	}}
	c := newTestClient(t, func(*http.Request) (*http.Response, error) { return streamResponse(body), nil }, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordDone, recs[0].Kind)
}

func TestSend_HTTPError(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader(`{"detail":"Internal server error"}`)),
		}, nil
	}, Options{})

	_, err := c.Send(context.Background(), Request{Message: "hi"})
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "Internal server error", herr.Message)
	assert.Equal(t, http.StatusServiceUnavailable, httpx.StatusCode(err))
}

func TestSend_TransportError(t *testing.T) {
	c := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}, Options{})

	_, err := c.Send(context.Background(), Request{Message: "hi"})
	require.Error(t, err)
	assert.True(t, httpx.IsTransportError(err))
}

// stallBody delivers its first chunk then blocks until the request context
// is cancelled.
type stallBody struct {
	ctx   context.Context
	first string
}

func (b *stallBody) Read(p []byte) (int, error) {
	if b.first != "" {
		n := copy(p, b.first)
		b.first = b.first[n:]
		return n, nil
	}
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *stallBody) Close() error { return nil }

func TestStream_IdleTimeout(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return streamResponse(&stallBody{ctx: req.Context(), first: delta("Hi")}), nil
	}, Options{IdleTimeout: 30 * time.Millisecond})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	recs, err := drain(t, s)
	require.Len(t, recs, 1)
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.True(t, httpx.IsTimeout(err))
	assert.Equal(t, apology.Timeout, apology.ForChat(err))
}

func TestStream_CloseStopsReading(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return streamResponse(&stallBody{ctx: req.Context()}), nil
	}, Options{})

	s, err := c.Send(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = s.Close()
	}()
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrClosed)
}
