// Package openfoodfacts reads the public Open Food Facts product database
// directly. Used by the photo-upload path.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/foodlens/internal/domain/product"
	"github.com/yungbote/foodlens/internal/platform/ctxutil"
	"github.com/yungbote/foodlens/internal/platform/logger"
)

const userAgent = "foodlens/1.0 (+https://github.com/yungbote/foodlens)"

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func New(log *logger.Logger, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://world.openfoodfacts.org"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		log:        logger.OrNop(log).With("service", "openfoodfacts.Client"),
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

type productEnvelope struct {
	Status  int `json:"status"`
	Product struct {
		ProductName     string `json:"product_name"`
		Brands          string `json:"brands"`
		IngredientsText string `json:"ingredients_text"`
	} `json:"product"`
}

type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openfoodfacts http error: status=%d", e.StatusCode)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

var errNoProduct = errors.New("openfoodfacts: product missing")

func (c *Client) Lookup(ctx context.Context, barcode string) product.Lookup {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return product.Lookup{}
	}
	env, err := c.fetch(ctx, barcode)
	if err != nil {
		if errors.Is(err, errNoProduct) {
			c.log.Debug("product not in open food facts", "barcode", barcode)
		} else {
			c.log.Warn("open food facts lookup failed", "barcode", barcode, "error", err)
		}
		return product.Lookup{}
	}
	return product.Lookup{
		Found: true,
		Record: product.Record{
			Barcode:     barcode,
			Name:        strings.TrimSpace(env.Product.ProductName),
			Brand:       firstBrand(env.Product.Brands),
			Ingredients: product.SplitIngredients(env.Product.IngredientsText),
		},
	}
}

func (c *Client) fetch(ctx context.Context, barcode string) (*productEnvelope, error) {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/api/v0/product/" + url.PathEscape(barcode) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var env productEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	// Status 0 is the only not-found signal; name and ingredients may be blank.
	if env.Status == 0 {
		return nil, errNoProduct
	}
	return &env, nil
}

// Brands is a comma-separated list, most specific first.
func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}
