package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the catalog has no product for a slug.
var ErrNotFound = errors.New("catalog: product not found")

// StockFetcher fetches live stock for a product. Implemented by *Client and
// by fakes in tests.
type StockFetcher interface {
	FetchLiveStock(ctx context.Context, slug string) (*LiveStock, error)
}

// ProductFetcher fetches product details by slug.
type ProductFetcher interface {
	FetchProduct(ctx context.Context, slug string) (*Product, error)
}

// Ensure Client implements both interfaces at compile time.
var (
	_ StockFetcher   = (*Client)(nil)
	_ ProductFetcher = (*Client)(nil)
)

// Client talks to the storefront catalog API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultBaseURL   = "127.0.0.1:4321"
	defaultUserAgent = "kleis/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client for the catalog at baseURL (host:port or a full
// URL).
func NewClient(baseURL string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// FetchProduct retrieves a product and its variants.
func (c *Client) FetchProduct(ctx context.Context, slug string) (*Product, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload Product
	if err := c.get(ctx, slug, "", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchLiveStock retrieves current stock per variant.
func (c *Client) FetchLiveStock(ctx context.Context, slug string) (*LiveStock, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload LiveStock
	if err := c.get(ctx, slug, "live-stock", &payload); err != nil {
		return nil, err
	}
	if payload.OverallStatus == "" {
		payload.OverallStatus = StockStatusFor(payload.Total())
	}
	return &payload, nil
}

// FetchRelated retrieves products related to slug.
func (c *Client) FetchRelated(ctx context.Context, slug string) ([]RelatedProduct, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []RelatedProduct
	if err := c.get(ctx, slug, "related", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) get(ctx context.Context, slug, sub string, dest any) error {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return fmt.Errorf("product slug required")
	}
	rel := &url.URL{
		Path:    "/api/products/" + trimmed,
		RawPath: "/api/products/" + url.PathEscape(trimmed),
	}
	if sub != "" {
		rel.Path += "/" + sub
		rel.RawPath += "/" + sub
	}
	return c.doURL(ctx, http.MethodGet, rel, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("api %s: %w", rel.String(), ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
