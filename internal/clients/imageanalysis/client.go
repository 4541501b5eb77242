// Package imageanalysis uploads a raw photo to the backend's visual analysis
// endpoint. It is the only place raw image content reaches the AI service.
package imageanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/yungbote/foodlens/internal/domain/insight"
	"github.com/yungbote/foodlens/internal/platform/ctxutil"
	"github.com/yungbote/foodlens/internal/platform/httpx"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// Analysis is the decoded response. When Success is false Err carries the
// cause for logging and apology selection; it is never shown to the user.
type Analysis struct {
	Success bool
	Text    string
	Insight *insight.Insight
	Err     error
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("image analysis http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("image analysis http error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

var (
	ErrEmptyImage    = errors.New("image analysis: empty image")
	ErrUnsuccessful  = errors.New("image analysis: backend reported failure")
	ErrEmptyAnalysis = errors.New("image analysis: empty analysis")
)

func New(log *logger.Logger, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		log:        logger.OrNop(log).With("service", "imageanalysis.Client"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

type analyzeResponse struct {
	Success  bool            `json:"success"`
	Analysis json.RawMessage `json:"analysis"`
}

func (c *Client) Analyze(ctx context.Context, img []byte, filename string) Analysis {
	if len(img) == 0 {
		return Analysis{Err: ErrEmptyImage}
	}
	resp, err := c.upload(ctx, img, filename)
	if err != nil {
		c.log.Warn("image analysis failed", "error", err, "bytes", len(img),
			"transport", httpx.IsTransportError(err), "retryable", httpx.Retryable(err))
		return Analysis{Err: err}
	}
	if !resp.Success {
		c.log.Warn("image analysis unsuccessful")
		return Analysis{Err: ErrUnsuccessful}
	}
	out, err := decodeAnalysis(resp.Analysis)
	if err != nil {
		c.log.Warn("image analysis payload unusable", "error", err)
		return Analysis{Err: err}
	}
	return out
}

// decodeAnalysis accepts either an insight object or a string. A string may
// itself carry an insight; that is recovered best-effort.
func decodeAnalysis(raw json.RawMessage) (Analysis, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Analysis{}, ErrEmptyAnalysis
	}
	switch raw[0] {
	case '{':
		in, err := insight.Parse(raw)
		if err != nil {
			// An object that is not insight-shaped is still shown as text.
			return Analysis{Success: true, Text: string(raw)}, nil
		}
		return Analysis{Success: true, Insight: in}, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Analysis{}, fmt.Errorf("decode analysis: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			return Analysis{}, ErrEmptyAnalysis
		}
		out := insight.Extract(s)
		if out.Structured() {
			return Analysis{Success: true, Insight: out.Insight}, nil
		}
		return Analysis{Success: true, Text: out.Narrative}, nil
	default:
		return Analysis{}, fmt.Errorf("decode analysis: unexpected %q", raw[0])
	}
}

func (c *Client) upload(ctx context.Context, img []byte, filename string) (*analyzeResponse, error) {
	if strings.TrimSpace(filename) == "" {
		filename = "capture.jpg"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", http.DetectContentType(img))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(img); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze/image", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out analyzeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
