package catalog

import (
	"net/url"
	"strings"

	"github.com/moradology/kleis/internal/cart"
)

// Stock status labels reported by the live-stock endpoint.
const (
	StatusInStock    = "In Stock"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
)

// lowStockThreshold is the total stock at or below which a product is
// reported as low.
const lowStockThreshold = 10

// Product mirrors /api/products/{slug}.
type Product struct {
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Variants     []Variant `json:"variants"`
}

// Variant is one purchasable configuration of a product.
type Variant struct {
	SKU        string `json:"sku"`
	Label      string `json:"label"`
	PriceCents int    `json:"price_cents"`
	Stock      int    `json:"stock"`
}

// LiveStock mirrors /api/products/{slug}/live-stock.
type LiveStock struct {
	ProductSlug   string         `json:"product_slug"`
	OverallStatus string         `json:"overall_stock_status"`
	Variants      []VariantStock `json:"variants_stock"`
}

// VariantStock is the live stock of one variant.
type VariantStock struct {
	SKU        string `json:"sku"`
	VariantID  int64  `json:"variant_id,omitempty"`
	TotalStock int    `json:"total_stock"`
}

// RelatedProduct mirrors an entry of /api/products/{slug}/related.
type RelatedProduct struct {
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	PurityPercent *float64 `json:"purity_percent,omitempty"`
	MinPriceCents int      `json:"min_price_cents"`
	MaxPriceCents int      `json:"max_price_cents"`
}

// StockStatusFor returns the status label for a product's total stock.
func StockStatusFor(total int) string {
	switch {
	case total > lowStockThreshold:
		return StatusInStock
	case total > 0:
		return StatusLowStock
	default:
		return StatusOutOfStock
	}
}

// BySKU returns the live stock keyed by SKU.
func (l LiveStock) BySKU() map[string]int {
	out := make(map[string]int, len(l.Variants))
	for _, v := range l.Variants {
		if strings.TrimSpace(v.SKU) == "" {
			continue
		}
		out[v.SKU] = v.TotalStock
	}
	return out
}

// Total sums the stock of every variant.
func (l LiveStock) Total() int {
	total := 0
	for _, v := range l.Variants {
		total += v.TotalStock
	}
	return total
}

// Variant returns the variant with sku.
func (p Product) Variant(sku string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return Variant{}, false
}

// FirstInStock returns the first variant with stock left.
func (p Product) FirstInStock() (Variant, bool) {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return v, true
		}
	}
	return Variant{}, false
}

// Details builds the cart payload for variant v of the product. The line
// item id is the variant SKU and the link carries the variant as a query
// parameter.
func (p Product) Details(v Variant) cart.Details {
	href := "/products/" + url.PathEscape(p.Slug) + "?" + url.Values{"variant": {v.SKU}}.Encode()
	return cart.Details{
		ID:           v.SKU,
		ProductID:    p.Slug,
		Name:         p.Name,
		Variant:      v.Label,
		SKU:          v.SKU,
		UnitPrice:    v.PriceCents,
		ThumbnailURL: p.ThumbnailURL,
		Href:         href,
		Stock:        v.Stock,
	}
}
