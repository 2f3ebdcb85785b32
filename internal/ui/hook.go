package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moradology/kleis/internal/cart"
)

// CartChangedMsg is delivered to the Bubble Tea program after the cart
// committed a change.
type CartChangedMsg struct{}

// CartHook is the UI's view of a cart.Store: the current items, values
// derived from them and the mutation operations. A hook without a store
// (headless rendering, previews) reports an empty cart and ignores
// mutations.
type CartHook struct {
	store *cart.Store

	mu      sync.Mutex
	memo    derived
	memoSet bool

	changed chan struct{}
}

type derived struct {
	version uint64
	items   []cart.LineItem
	count   int
	total   int
	byID    map[string]int
}

// NewCartHook binds a hook to store. store may be nil.
func NewCartHook(store *cart.Store) *CartHook {
	return &CartHook{
		store:   store,
		changed: make(chan struct{}, 1),
	}
}

// snapshot returns the derived values for the store's current version,
// recomputing only when the version moved.
func (h *CartHook) snapshot() derived {
	if h == nil || h.store == nil {
		return derived{}
	}
	items, version := h.store.State()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.memoSet && h.memo.version == version {
		return h.memo
	}

	d := derived{version: version, items: items, byID: make(map[string]int, len(items))}
	for i, it := range items {
		d.count += it.Quantity
		d.total += it.LineTotal()
		d.byID[it.ID] = i
	}
	h.memo, h.memoSet = d, true
	return d
}

// Items returns the current cart. The slice must not be modified.
func (h *CartHook) Items() []cart.LineItem { return h.snapshot().items }

// Version returns the store's commit version, zero without a store.
func (h *CartHook) Version() uint64 { return h.snapshot().version }

// ItemCount is the sum of all quantities.
func (h *CartHook) ItemCount() int { return h.snapshot().count }

// TotalPrice is the sum of all line totals in minor units.
func (h *CartHook) TotalPrice() int { return h.snapshot().total }

// GetItemByID returns the line item with id.
func (h *CartHook) GetItemByID(id string) (cart.LineItem, bool) {
	d := h.snapshot()
	idx, ok := d.byID[id]
	if !ok {
		return cart.LineItem{}, false
	}
	return d.items[idx], true
}

// IsItemInCart reports whether id is in the cart.
func (h *CartHook) IsItemInCart(id string) bool {
	_, ok := h.snapshot().byID[id]
	return ok
}

// AddToCart adds qty units of d. Without a store it rejects the add.
func (h *CartHook) AddToCart(d cart.Details, qty int) cart.AddOutcome {
	if h.store == nil {
		return cart.AddRejected
	}
	return h.store.AddItem(d, qty)
}

// RemoveFromCart drops the line item with id.
func (h *CartHook) RemoveFromCart(id string) bool {
	if h.store == nil {
		return false
	}
	return h.store.RemoveItem(id)
}

// UpdateItemQuantity sets the quantity of id; zero or less removes it.
func (h *CartHook) UpdateItemQuantity(id string, qty int) bool {
	if h.store == nil {
		return false
	}
	return h.store.UpdateItemQuantity(id, qty)
}

// ClearCart empties the cart.
func (h *CartHook) ClearCart() bool {
	if h.store == nil {
		return false
	}
	return h.store.ClearCart()
}

// SetCart replaces the cart with state, sanitized by the store.
func (h *CartHook) SetCart(state any) bool {
	if h.store == nil {
		return false
	}
	return h.store.SetCart(state)
}

// Listen subscribes to the store. Commits arriving faster than the UI
// consumes them collapse into one pending notification. The returned
// function unsubscribes.
func (h *CartHook) Listen() (stop func()) {
	if h.store == nil {
		return func() {}
	}
	return h.store.Subscribe(func() {
		select {
		case h.changed <- struct{}{}:
		default:
		}
	})
}

// WaitForChange blocks until the next commit and reports it as a
// CartChangedMsg. Re-issue it after each message to keep listening.
func (h *CartHook) WaitForChange() tea.Cmd {
	if h.store == nil {
		return nil
	}
	return func() tea.Msg {
		<-h.changed
		return CartChangedMsg{}
	}
}
