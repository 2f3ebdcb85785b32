package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultBaseURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultBaseURL)
	}

	u, err = parseBaseURL("https://shop.example.com/store?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != defaultUserAgent {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/products/bpc-157":
			_ = json.NewEncoder(w).Encode(Product{
				Slug: "bpc-157",
				Name: "BPC-157",
				Variants: []Variant{
					{SKU: "BPC-5", Label: "5 mg", PriceCents: 4500, Stock: 0},
					{SKU: "BPC-10", Label: "10 mg", PriceCents: 7900, Stock: 12},
				},
			})
		case "/api/products/bpc-157/live-stock":
			_, _ = w.Write([]byte(`{"product_slug":"bpc-157","variants_stock":[{"sku":"BPC-5","variant_id":1,"total_stock":0},{"sku":"BPC-10","variant_id":2,"total_stock":4}]}`))
		case "/api/products/bpc-157/related":
			_, _ = w.Write([]byte(`[{"slug":"tb-500","name":"TB-500","min_price_cents":3000,"max_price_cents":9000}]`))
		case "/api/products/broken/live-stock":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_FetchProduct(t *testing.T) {
	t.Parallel()
	c, err := NewClient(newTestServer(t).URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	p, err := c.FetchProduct(ctx, "bpc-157")
	if err != nil {
		t.Fatalf("FetchProduct returned error: %v", err)
	}
	v, ok := p.FirstInStock()
	if !ok || v.SKU != "BPC-10" {
		t.Fatalf("FirstInStock = %#v (ok=%v), want BPC-10", v, ok)
	}

	d := p.Details(v)
	if d.ID != "BPC-10" || d.SKU != "BPC-10" || d.ProductID != "bpc-157" {
		t.Fatalf("Details ids = %#v", d)
	}
	if d.UnitPrice != 7900 || d.Stock != 12 || d.Variant != "10 mg" {
		t.Fatalf("Details values = %#v", d)
	}
	if d.Href != "/products/bpc-157?variant=BPC-10" {
		t.Fatalf("Href = %q", d.Href)
	}
}

func TestClient_FetchLiveStock(t *testing.T) {
	t.Parallel()
	c, err := NewClient(newTestServer(t).URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	stock, err := c.FetchLiveStock(ctx, "bpc-157")
	if err != nil {
		t.Fatalf("FetchLiveStock returned error: %v", err)
	}
	if stock.OverallStatus != StatusLowStock {
		t.Fatalf("OverallStatus = %q, want %q (derived)", stock.OverallStatus, StatusLowStock)
	}
	bySKU := stock.BySKU()
	if bySKU["BPC-5"] != 0 || bySKU["BPC-10"] != 4 || len(bySKU) != 2 {
		t.Fatalf("BySKU = %v", bySKU)
	}

	if _, err := c.FetchLiveStock(ctx, "broken"); err == nil {
		t.Fatalf("FetchLiveStock(broken) returned nil error")
	}
	if _, err := c.FetchLiveStock(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FetchLiveStock(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := c.FetchLiveStock(ctx, "  "); err == nil {
		t.Fatalf("FetchLiveStock(blank) returned nil error")
	}
}

func TestClient_FetchRelated(t *testing.T) {
	t.Parallel()
	c, err := NewClient(newTestServer(t).URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	related, err := c.FetchRelated(context.Background(), "bpc-157")
	if err != nil {
		t.Fatalf("FetchRelated returned error: %v", err)
	}
	if len(related) != 1 || related[0].Slug != "tb-500" || related[0].PurityPercent != nil {
		t.Fatalf("related = %#v", related)
	}
}

func TestStockStatusFor(t *testing.T) {
	tests := []struct {
		total int
		want  string
	}{
		{0, StatusOutOfStock},
		{-2, StatusOutOfStock},
		{1, StatusLowStock},
		{10, StatusLowStock},
		{11, StatusInStock},
	}
	for _, tt := range tests {
		if got := StockStatusFor(tt.total); got != tt.want {
			t.Errorf("StockStatusFor(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.FetchProduct(context.Background(), "x"); err == nil {
		t.Fatalf("nil client FetchProduct returned nil error")
	}
}
