// Package productapi queries the backend's product endpoint by barcode.
// Every failure degrades to "not found".
package productapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/foodlens/internal/domain/product"
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

func New(log *logger.Logger, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		log:        logger.OrNop(log).With("service", "productapi.Client"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		timeout:    opts.Timeout,
		httpClient: hc,
	}, nil
}

type productResponse struct {
	Found       bool     `json:"found"`
	Barcode     string   `json:"barcode"`
	ProductName string   `json:"product_name"`
	Brands      string   `json:"brands"`
	Ingredients []string `json:"ingredients"`
}

func (c *Client) Lookup(ctx context.Context, barcode string) product.Lookup {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return product.Lookup{}
	}
	var resp productResponse
	if err := c.getJSON(ctx, "/product/"+url.PathEscape(barcode), &resp); err != nil {
		c.log.Warn("product lookup failed", "barcode", barcode, "error", err,
			"transport", httpx.IsTransportError(err), "retryable", httpx.Retryable(err))
		return product.Lookup{}
	}
	// found is authoritative; a nameless product still carries usable
	// ingredients and is prompted as "this product".
	if !resp.Found {
		c.log.Debug("product not found", "barcode", barcode)
		return product.Lookup{}
	}
	ingredients := make([]string, 0, len(resp.Ingredients))
	for _, ing := range resp.Ingredients {
		if s := strings.TrimSpace(ing); s != "" {
			ingredients = append(ingredients, s)
		}
	}
	return product.Lookup{
		Found: true,
		Record: product.Record{
			Barcode:     barcode,
			Name:        strings.TrimSpace(resp.ProductName),
			Brand:       strings.TrimSpace(resp.Brands),
			Ingredients: ingredients,
		},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}
