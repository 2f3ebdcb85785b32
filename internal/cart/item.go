package cart

import (
	"math"
	"strconv"
	"strings"
)

// MaxItems is the maximum number of distinct line items a cart may hold.
const MaxItems = 50

// LineItem is one entry in the cart, keyed by variant SKU.
type LineItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Variant      string `json:"variant"`
	SKU          string `json:"sku"`
	UnitPrice    int    `json:"unitPrice"` // minor units (cents)
	Quantity     int    `json:"quantity"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Href         string `json:"href"`
	Stock        int    `json:"stock"` // last known stock, a client-side clamp only
}

// Details is the add-time payload: a line item without its quantity.
type Details struct {
	ID           string
	ProductID    string
	Name         string
	Variant      string
	SKU          string
	UnitPrice    int
	ThumbnailURL string
	Href         string
	Stock        int
}

func (d Details) withQuantity(qty int) LineItem {
	return LineItem{
		ID:           d.ID,
		ProductID:    d.ProductID,
		Name:         d.Name,
		Variant:      d.Variant,
		SKU:          d.SKU,
		UnitPrice:    d.UnitPrice,
		Quantity:     qty,
		ThumbnailURL: d.ThumbnailURL,
		Href:         d.Href,
		Stock:        d.Stock,
	}
}

// LineTotal returns unit price times quantity in minor units.
func (it LineItem) LineTotal() int {
	return it.UnitPrice * it.Quantity
}

// NormalizeQuantity converts a user supplied quantity into a valid integer.
// Zero or negative values map to 0, which callers treat as removal. Positive
// fractions round to the nearest integer but never below 1. NaN and
// infinities are rejected.
func NormalizeQuantity(q float64) (int, bool) {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, false
	}
	if q <= 0 {
		return 0, true
	}
	if q > math.MaxInt32 {
		return math.MaxInt32, true
	}
	n := int(math.Round(q))
	if n < 1 {
		n = 1
	}
	return n, true
}

// ParseQuantity parses text input (for example "3" or "0.5") with
// NormalizeQuantity semantics.
func ParseQuantity(s string) (int, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return NormalizeQuantity(f)
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
