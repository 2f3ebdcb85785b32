package cart

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Result is the outcome of validating one loosely typed cart entry.
type Result struct {
	Item   LineItem
	OK     bool
	Reason string // set when OK is false
}

func rejected(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a single decoded entry against the line item schema and
// fills every optional field with its default. Entries must be objects with
// string id, productId and name; anything else is rejected.
func Validate(raw any) Result {
	switch v := raw.(type) {
	case LineItem:
		return Result{Item: normalize(v), OK: true}
	case *LineItem:
		if v == nil {
			return rejected("entry is null")
		}
		return Result{Item: normalize(*v), OK: true}
	case map[string]any:
		return validateObject(v)
	case nil:
		return rejected("entry is null")
	default:
		return rejected("entry is %T, not an object", raw)
	}
}

func validateObject(obj map[string]any) Result {
	id, ok := obj["id"].(string)
	if !ok {
		return rejected("id is not a string")
	}
	productID, ok := obj["productId"].(string)
	if !ok {
		return rejected("productId is not a string")
	}
	name, ok := obj["name"].(string)
	if !ok {
		return rejected("name is not a string")
	}

	quantity := numberOr(obj["quantity"], 1)
	if quantity == 0 {
		quantity = 1
	}
	if name == "" {
		name = "Unknown Item"
	}

	return Result{
		OK: true,
		Item: LineItem{
			ID:           id,
			ProductID:    productID,
			Name:         name,
			Variant:      stringOr(obj["variant"], ""),
			SKU:          stringOr(obj["sku"], id),
			UnitPrice:    numberOr(obj["unitPrice"], 0),
			Quantity:     quantity,
			ThumbnailURL: stringOr(obj["thumbnailUrl"], ""),
			Href:         stringOr(obj["href"], "#"),
			Stock:        numberOr(obj["stock"], 0),
		},
	}
}

// normalize applies the same defaults to an already typed item.
func normalize(it LineItem) LineItem {
	if it.Name == "" {
		it.Name = "Unknown Item"
	}
	if it.SKU == "" {
		it.SKU = it.ID
	}
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	if it.Href == "" {
		it.Href = "#"
	}
	return it
}

// Sanitize coerces loosely typed data into a fully shaped cart. Non-array
// input yields an empty cart and entries that fail Validate are dropped.
// Business rules such as quantity <= stock are not applied here.
func Sanitize(raw any) []LineItem {
	entries, ok := asArray(raw)
	if !ok {
		return nil
	}
	var items []LineItem
	for _, entry := range entries {
		res := Validate(entry)
		if !res.OK {
			continue
		}
		items = append(items, res.Item)
	}
	return items
}

func asArray(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []LineItem:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func stringOr(v any, def string) string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		if s == "" {
			return def
		}
		return s
	case bool:
		if !s {
			return def
		}
		return "true"
	case float64:
		if s == 0 || math.IsNaN(s) {
			return def
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func numberOr(v any, def int) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		return n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return def
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return def
		}
		f = parsed
	case bool:
		if n {
			return 1
		}
		return def
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return def
	}
	// Out-of-range float to int conversions are implementation defined.
	return int(math.Round(math.Max(math.Min(f, math.MaxInt32), math.MinInt32)))
}

// Equal reports whether two carts hold the same ids with the same
// quantities. Other fields are not compared.
func Equal(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	quantities := make(map[string]int, len(b))
	for _, it := range b {
		quantities[it.ID] = it.Quantity
	}
	for _, it := range a {
		q, ok := quantities[it.ID]
		if !ok || q != it.Quantity {
			return false
		}
	}
	return true
}
