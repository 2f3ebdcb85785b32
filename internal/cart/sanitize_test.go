package cart

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return v
}

func TestValidate_RequiresStringFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"complete", `{"id":"SKU001","productId":"prod1","name":"Test"}`, true},
		{"empty strings allowed", `{"id":"","productId":"","name":""}`, true},
		{"missing id", `{"productId":"prod1","name":"Test"}`, false},
		{"numeric id", `{"id":1,"productId":"prod1","name":"Test"}`, false},
		{"missing productId", `{"id":"SKU001","name":"Test"}`, false},
		{"null name", `{"id":"SKU001","productId":"prod1","name":null}`, false},
		{"null entry", `null`, false},
		{"string entry", `"SKU001"`, false},
		{"array entry", `[1,2]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(decode(t, tt.raw))
			if res.OK != tt.ok {
				t.Fatalf("Validate(%s).OK = %v, want %v (reason %q)", tt.raw, res.OK, tt.ok, res.Reason)
			}
			if !res.OK && res.Reason == "" {
				t.Fatalf("rejected result has no reason")
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	res := Validate(decode(t, `{"id":"SKU001","productId":"prod1","name":"Test"}`))
	if !res.OK {
		t.Fatalf("Validate rejected: %s", res.Reason)
	}
	want := LineItem{
		ID:        "SKU001",
		ProductID: "prod1",
		Name:      "Test",
		SKU:       "SKU001",
		Quantity:  1,
		Href:      "#",
	}
	if res.Item != want {
		t.Fatalf("Item = %#v, want %#v", res.Item, want)
	}
}

func TestValidate_CoercesNumbers(t *testing.T) {
	res := Validate(decode(t, `{
		"id":"SKU001","productId":"prod1","name":"Test",
		"unitPrice":"1500","quantity":2.6,"stock":"lots"
	}`))
	if !res.OK {
		t.Fatalf("Validate rejected: %s", res.Reason)
	}
	if res.Item.UnitPrice != 1500 {
		t.Fatalf("UnitPrice = %d, want 1500", res.Item.UnitPrice)
	}
	if res.Item.Quantity != 3 {
		t.Fatalf("Quantity = %d, want 3", res.Item.Quantity)
	}
	if res.Item.Stock != 0 {
		t.Fatalf("Stock = %d, want 0", res.Item.Stock)
	}
}

func TestValidate_HugeNumbersStayInRange(t *testing.T) {
	res := Validate(decode(t, `{
		"id":"SKU001","productId":"prod1","name":"Test",
		"unitPrice":1e300,"quantity":"1e300","stock":-1e300
	}`))
	if !res.OK {
		t.Fatalf("Validate rejected: %s", res.Reason)
	}
	if res.Item.UnitPrice != math.MaxInt32 {
		t.Fatalf("UnitPrice = %d, want %d", res.Item.UnitPrice, math.MaxInt32)
	}
	if res.Item.Quantity != math.MaxInt32 {
		t.Fatalf("Quantity = %d, want %d", res.Item.Quantity, math.MaxInt32)
	}
	if res.Item.Stock != math.MinInt32 {
		t.Fatalf("Stock = %d, want %d", res.Item.Stock, math.MinInt32)
	}
}

func TestValidate_ZeroQuantityFallsBackToOne(t *testing.T) {
	res := Validate(decode(t, `{"id":"a","productId":"p","name":"n","quantity":0}`))
	if res.Item.Quantity != 1 {
		t.Fatalf("Quantity = %d, want 1", res.Item.Quantity)
	}
}

func TestSanitize_NonArrayIsEmpty(t *testing.T) {
	for _, raw := range []any{nil, "cart", 42, map[string]any{"id": "x"}} {
		if got := Sanitize(raw); len(got) != 0 {
			t.Fatalf("Sanitize(%#v) = %#v, want empty", raw, got)
		}
	}
}

func TestSanitize_DropsMalformedEntries(t *testing.T) {
	raw := decode(t, `[
		{"id":"SKU001","productId":"prod1","name":"Item 1","quantity":2,"stock":10},
		null,
		{"id":"SKU002"},
		"garbage",
		{"id":"SKU003","productId":"prod3","name":"Item 3","sku":"ALT-3"}
	]`)

	got := Sanitize(raw)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %#v", len(got), got)
	}
	if got[0].ID != "SKU001" || got[0].Quantity != 2 || got[0].Stock != 10 {
		t.Fatalf("first item = %#v", got[0])
	}
	if got[1].SKU != "ALT-3" {
		t.Fatalf("second item SKU = %q, want ALT-3", got[1].SKU)
	}
}

func TestSanitize_TypedItemsGetDefaults(t *testing.T) {
	got := Sanitize([]LineItem{{ID: "SKU001", ProductID: "p", Name: "n"}})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].SKU != "SKU001" || got[0].Href != "#" || got[0].Quantity != 1 {
		t.Fatalf("item = %#v, want sku/href/quantity defaults", got[0])
	}
}

func TestSanitize_RoundTripKeepsIDQuantityPairs(t *testing.T) {
	original := []LineItem{
		{ID: "SKU001", ProductID: "prod1", Name: "Test Item 1", Variant: "10mg", SKU: "SKU001", UnitPrice: 1000, Quantity: 1, ThumbnailURL: "/img1.jpg", Href: "/prod1", Stock: 10},
		{ID: "SKU002", ProductID: "prod2", Name: "Test Item 2", Variant: "5mg", SKU: "SKU002", UnitPrice: 2500, Quantity: 4, ThumbnailURL: "/img2.jpg", Href: "/prod2", Stock: 5},
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got := Sanitize(decode(t, string(data)))
	if !reflect.DeepEqual(got, original) {
		t.Fatalf("round trip = %#v, want %#v", got, original)
	}
	if !Equal(got, original) {
		t.Fatalf("Equal(round trip, original) = false")
	}
}

func TestEqual(t *testing.T) {
	a := []LineItem{{ID: "x", Quantity: 1, UnitPrice: 100}, {ID: "y", Quantity: 2}}

	tests := []struct {
		name string
		b    []LineItem
		want bool
	}{
		{"same", []LineItem{{ID: "x", Quantity: 1}, {ID: "y", Quantity: 2}}, true},
		{"order ignored", []LineItem{{ID: "y", Quantity: 2}, {ID: "x", Quantity: 1}}, true},
		{"other fields ignored", []LineItem{{ID: "x", Quantity: 1, UnitPrice: 999, Name: "renamed"}, {ID: "y", Quantity: 2}}, true},
		{"quantity differs", []LineItem{{ID: "x", Quantity: 3}, {ID: "y", Quantity: 2}}, false},
		{"id differs", []LineItem{{ID: "x", Quantity: 1}, {ID: "z", Quantity: 2}}, false},
		{"length differs", []LineItem{{ID: "x", Quantity: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(a, tt.b); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}

	if !Equal(nil, []LineItem{}) {
		t.Fatalf("Equal(nil, empty) = false, want true")
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"3", 3, true},
		{" 7 ", 7, true},
		{"0.5", 1, true},
		{"0.2", 1, true},
		{"2.5", 3, true},
		{"2.4", 2, true},
		{"0", 0, true},
		{"-4", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseQuantity(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ParseQuantity(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
