package cart

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChangeSource reports writes to the persisted cart made by another process.
type ChangeSource interface {
	OnExternalChange(fn func(key string)) (cancel func())
}

// Options configure a Store.
type Options struct {
	Changes  ChangeSource // nil disables cross-process sync
	Logger   logrus.FieldLogger
	MaxItems int // zero uses MaxItems
}

// AddOutcome describes what AddItem did.
type AddOutcome int

const (
	AddRejected    AddOutcome = iota // quantity <= 0 or no stock
	AddInserted                      // new line item
	AddIncremented                   // existing line item grew
	AddUnchanged                     // existing line item already at stock
	AddCartFull                      // distinct item cap reached
)

func (o AddOutcome) String() string {
	switch o {
	case AddInserted:
		return "inserted"
	case AddIncremented:
		return "incremented"
	case AddUnchanged:
		return "unchanged"
	case AddCartFull:
		return "cart full"
	default:
		return "rejected"
	}
}

// Changed reports whether the outcome committed a new cart.
func (o AddOutcome) Changed() bool {
	return o == AddInserted || o == AddIncremented
}

type subscriber struct {
	id int
	fn func()
}

// Store is the single source of truth for the in-memory cart. Every commit
// replaces the item slice, persists it and then notifies subscribers.
type Store struct {
	persist  Persister
	log      logrus.FieldLogger
	maxItems int

	mu      sync.RWMutex
	items   []LineItem
	version uint64

	subMu       sync.Mutex
	subscribers []subscriber
	nextSub     int

	stopWatch func()
}

// NewStore loads the cart from p and, when opts.Changes is set, starts
// following external changes to p's key. A nil p keeps the cart in memory
// only.
func NewStore(p Persister, opts Options) *Store {
	if p == nil {
		p = nopPersister{}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = MaxItems
	}

	s := &Store{
		persist:  p,
		log:      log.WithField("component", "cart.store"),
		maxItems: maxItems,
	}
	s.items = s.enforce(p.Load())

	if opts.Changes != nil {
		s.stopWatch = opts.Changes.OnExternalChange(s.handleExternalChange)
	}
	return s
}

// Close stops following external changes.
func (s *Store) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
}

// Snapshot returns the current items. The slice is shared and must not be
// modified; it stays the same slice until the next commit.
func (s *Store) Snapshot() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

// State returns the snapshot together with its commit version.
func (s *Store) State() ([]LineItem, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items, s.version
}

// Subscribe registers fn to run after every commit. The returned function
// unsubscribes and may be called more than once.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) emit() {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// mutate runs fn against the current items and commits its result when fn
// reports a change. Subscribers are notified after the lock is released.
func (s *Store) mutate(persist bool, fn func(cur []LineItem) ([]LineItem, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.items)
	if !changed {
		s.mu.Unlock()
		return false
	}
	if len(next) == 0 {
		next = nil
	}
	s.items = next
	s.version++
	if persist {
		s.persist.Save(next)
	}
	s.mu.Unlock()

	s.emit()
	return true
}

// AddItem adds qty units of the item described by d. An existing line item
// grows up to its recorded stock; d is otherwise ignored for it. A new item
// is clamped to d.Stock and refused when the cart already holds the maximum
// number of distinct items.
func (s *Store) AddItem(d Details, qty int) AddOutcome {
	if qty <= 0 {
		return AddRejected
	}

	outcome := AddRejected
	var finalQty int
	s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		if idx := indexOf(cur, d.ID); idx >= 0 {
			existing := cur[idx]
			// Loaded items may sit above their recorded stock, or have none.
			// Adding never lowers a quantity.
			finalQty = min(existing.Quantity+qty, existing.Stock)
			if finalQty <= existing.Quantity {
				finalQty = existing.Quantity
				outcome = AddUnchanged
				return cur, false
			}
			next := cloneItems(cur)
			next[idx].Quantity = finalQty
			outcome = AddIncremented
			return next, true
		}

		if len(cur) >= s.maxItems {
			outcome = AddCartFull
			return cur, false
		}
		finalQty = min(qty, d.Stock)
		if finalQty <= 0 {
			return cur, false
		}
		next := make([]LineItem, len(cur), len(cur)+1)
		copy(next, cur)
		next = append(next, normalize(d.withQuantity(finalQty)))
		outcome = AddInserted
		return next, true
	})

	switch outcome {
	case AddCartFull:
		s.log.WithFields(logrus.Fields{
			"max_items": s.maxItems,
			"item_name": d.Name,
		}).Warn("cart is full, item not added")
	case AddInserted, AddIncremented:
		s.log.WithFields(logrus.Fields{
			"event":        "add_to_cart",
			"item_id":      d.SKU,
			"item_name":    d.Name,
			"item_variant": d.Variant,
			"quantity":     finalQty,
			"price":        float64(d.UnitPrice) / 100,
		}).Debug("analytics")
	}
	return outcome
}

// RemoveItem drops the line item with id. It reports false when id is not
// in the cart.
func (s *Store) RemoveItem(id string) bool {
	changed := s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		idx := indexOf(cur, id)
		if idx < 0 {
			return cur, false
		}
		return without(cur, idx), true
	})
	if changed {
		s.log.WithFields(logrus.Fields{"event": "remove_from_cart", "item_id": id}).Debug("analytics")
	}
	return changed
}

// UpdateItemQuantity sets the quantity of the line item with id, clamped to
// [1, stock]. A quantity of zero or less removes the item. Nothing is
// committed when the clamped quantity equals the current one.
func (s *Store) UpdateItemQuantity(id string, qty int) bool {
	final := 0
	changed := s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		idx := indexOf(cur, id)
		if idx < 0 {
			return cur, false
		}
		if qty <= 0 {
			return without(cur, idx), true
		}
		final = clamp(qty, 1, cur[idx].Stock)
		if final == cur[idx].Quantity {
			return cur, false
		}
		next := cloneItems(cur)
		next[idx].Quantity = final
		return next, true
	})
	if changed {
		action := "quantity_updated"
		if qty <= 0 {
			action = "removed_by_quantity_update"
		}
		s.log.WithFields(logrus.Fields{
			"event":        "update_cart_quantity",
			"item_id":      id,
			"new_quantity": final,
			"action":       action,
		}).Debug("analytics")
	}
	return changed
}

// ClearCart empties the cart.
func (s *Store) ClearCart() bool {
	changed := s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		return nil, len(cur) > 0
	})
	if changed {
		s.log.WithField("event", "clear_cart").Debug("analytics")
	}
	return changed
}

// SetCart replaces the whole cart. state may be a []LineItem or a decoded
// JSON array; anything else is ignored. The sanitized result is committed
// only when its ids or quantities differ from the current cart.
func (s *Store) SetCart(state any) bool {
	if _, ok := asArray(state); !ok {
		s.log.WithField("type", typeName(state)).Error("setCart received non-array data, ignoring")
		return false
	}
	fresh := s.enforce(Sanitize(state))
	return s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		if Equal(cur, fresh) {
			return cur, false
		}
		return fresh, true
	})
}

// ApplyStock records live stock levels keyed by SKU. Quantities above the
// new stock are lowered to it and items whose stock reached zero are
// removed. Items whose SKU is absent from stock are left alone.
func (s *Store) ApplyStock(stock map[string]int) bool {
	if len(stock) == 0 {
		return false
	}
	var dropped []string
	changed := s.mutate(true, func(cur []LineItem) ([]LineItem, bool) {
		dropped = dropped[:0]
		next := make([]LineItem, 0, len(cur))
		changed := false
		for _, it := range cur {
			live, ok := stock[it.SKU]
			if !ok {
				next = append(next, it)
				continue
			}
			live = max(live, 0)
			if live == 0 {
				dropped = append(dropped, it.ID)
				changed = true
				continue
			}
			if it.Stock != live || it.Quantity > live {
				it.Stock = live
				it.Quantity = min(it.Quantity, live)
				changed = true
			}
			next = append(next, it)
		}
		return next, changed
	})
	if changed && len(dropped) > 0 {
		s.log.WithField("item_ids", dropped).Info("removed items that went out of stock")
	}
	return changed
}

// GetItem returns the line item with id.
func (s *Store) GetItem(id string) (LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := indexOf(s.items, id); idx >= 0 {
		return s.items[idx], true
	}
	return LineItem{}, false
}

// IsInCart reports whether id is in the cart.
func (s *Store) IsInCart(id string) bool {
	_, ok := s.GetItem(id)
	return ok
}

// handleExternalChange reloads the cart after another process wrote it. The
// reloaded cart is not written back.
// The load runs under the store lock so a local commit cannot land between
// reading the slot and replacing the cart.
func (s *Store) handleExternalChange(key string) {
	if key != s.persist.Key() {
		return
	}
	var fresh []LineItem
	if s.mutate(false, func(cur []LineItem) ([]LineItem, bool) {
		fresh = s.enforce(s.persist.Load())
		if Equal(cur, fresh) {
			return cur, false
		}
		return fresh, true
	}) {
		s.log.WithField("items", len(fresh)).Debug("cart reloaded after external change")
	}
}

// enforce drops duplicate ids (keeping the first) and truncates to the
// distinct item cap.
func (s *Store) enforce(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		if len(out) == s.maxItems {
			s.log.WithField("max_items", s.maxItems).Warn("cart exceeds distinct item cap, truncating")
			break
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func indexOf(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []LineItem) []LineItem {
	dup := make([]LineItem, len(items))
	copy(dup, items)
	return dup
}

func without(items []LineItem, idx int) []LineItem {
	next := make([]LineItem, 0, len(items)-1)
	next = append(next, items[:idx]...)
	return append(next, items[idx+1:]...)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

type nopPersister struct{}

func (nopPersister) Key() string      { return "" }
func (nopPersister) Load() []LineItem { return nil }
func (nopPersister) Save([]LineItem)  {}
