package ui

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moradology/kleis/internal/cart"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(nil, cart.Options{Logger: quietLogger()})
	t.Cleanup(s.Close)
	return s
}

func details(id string, price, stock int) cart.Details {
	return cart.Details{
		ID:        id,
		ProductID: "prod-" + id,
		Name:      "Item " + id,
		Variant:   "10ml",
		SKU:       id,
		UnitPrice: price,
		Href:      "/products/prod-" + id,
		Stock:     stock,
	}
}

func TestCartHook_NilStoreIsEmptyAndInert(t *testing.T) {
	h := NewCartHook(nil)

	if h.Items() != nil || h.ItemCount() != 0 || h.TotalPrice() != 0 || h.Version() != 0 {
		t.Fatalf("nil-store hook reports a non-empty cart")
	}
	if got := h.AddToCart(details("SKU001", 100, 5), 1); got != cart.AddRejected {
		t.Fatalf("AddToCart = %v, want rejected", got)
	}
	if h.RemoveFromCart("SKU001") || h.UpdateItemQuantity("SKU001", 2) || h.ClearCart() || h.SetCart([]cart.LineItem{}) {
		t.Fatalf("mutations on a nil-store hook reported a change")
	}
	if h.IsItemInCart("SKU001") {
		t.Fatalf("IsItemInCart = true on empty hook")
	}
	if h.WaitForChange() != nil {
		t.Fatalf("WaitForChange returned a command without a store")
	}
	h.Listen()()
}

func TestCartHook_DerivedValues(t *testing.T) {
	store := newTestStore(t)
	h := NewCartHook(store)

	h.AddToCart(details("SKU001", 1250, 10), 2)
	h.AddToCart(details("SKU002", 300, 10), 3)

	if got := h.ItemCount(); got != 5 {
		t.Fatalf("ItemCount = %d, want 5", got)
	}
	if got := h.TotalPrice(); got != 2*1250+3*300 {
		t.Fatalf("TotalPrice = %d, want %d", got, 2*1250+3*300)
	}
	it, ok := h.GetItemByID("SKU002")
	if !ok || it.Quantity != 3 {
		t.Fatalf("GetItemByID = (%+v, %v)", it, ok)
	}
	if !h.IsItemInCart("SKU001") || h.IsItemInCart("SKU404") {
		t.Fatalf("IsItemInCart mismatch")
	}

	h.RemoveFromCart("SKU001")
	if h.ItemCount() != 3 || h.IsItemInCart("SKU001") {
		t.Fatalf("derived values not refreshed after commit")
	}
}

func TestCartHook_MemoizesPerVersion(t *testing.T) {
	store := newTestStore(t)
	h := NewCartHook(store)
	h.AddToCart(details("SKU001", 100, 10), 1)

	first := h.Items()
	v := h.Version()
	if reflect.ValueOf(first).Pointer() != reflect.ValueOf(h.Items()).Pointer() {
		t.Fatalf("Items changed identity without a commit")
	}

	// A rejected mutation commits nothing.
	h.UpdateItemQuantity("SKU404", 3)
	if h.Version() != v {
		t.Fatalf("version moved without a commit")
	}

	h.UpdateItemQuantity("SKU001", 2)
	if h.Version() == v {
		t.Fatalf("version did not move after a commit")
	}
	if reflect.ValueOf(first).Pointer() == reflect.ValueOf(h.Items()).Pointer() {
		t.Fatalf("Items kept identity across a commit")
	}
}

func TestCartHook_WaitForChangeCoalesces(t *testing.T) {
	store := newTestStore(t)
	h := NewCartHook(store)
	stop := h.Listen()

	h.AddToCart(details("SKU001", 100, 10), 1)
	h.AddToCart(details("SKU001", 100, 10), 1)
	h.AddToCart(details("SKU002", 100, 10), 1)

	if msg := h.WaitForChange()(); msg != (CartChangedMsg{}) {
		t.Fatalf("msg = %#v, want CartChangedMsg", msg)
	}

	pending := make(chan struct{})
	go func() {
		h.WaitForChange()()
		close(pending)
	}()
	select {
	case <-pending:
		t.Fatalf("burst of commits produced more than one message")
	case <-time.After(50 * time.Millisecond):
	}

	stop()
	h.ClearCart()
	select {
	case <-pending:
		t.Fatalf("message delivered after stop")
	case <-time.After(50 * time.Millisecond):
	}

	// Release the waiting goroutine.
	h.changed <- struct{}{}
	<-pending
}

func TestCartHook_SetCartSanitizes(t *testing.T) {
	h := NewCartHook(newTestStore(t))

	if !h.SetCart([]any{
		map[string]any{"id": "SKU001", "productId": "p", "name": "n", "quantity": 2.0, "stock": 5.0},
		"junk",
	}) {
		t.Fatalf("SetCart reported no change")
	}
	if h.ItemCount() != 2 || len(h.Items()) != 1 {
		t.Fatalf("Items = %+v", h.Items())
	}
	if h.SetCart("not a cart") {
		t.Fatalf("SetCart accepted a non-array")
	}
}
