package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moradology/kleis/internal/storage"
)

const (
	// DefaultKey is the slot key the cart is stored under.
	DefaultKey = "kleisCart"

	defaultIOTimeout = 3 * time.Second
)

// Persister is the durable copy of the cart.
type Persister interface {
	Key() string
	Load() []LineItem
	Save(items []LineItem)
}

// AdapterOptions configure an Adapter.
type AdapterOptions struct {
	Key     string        // empty uses DefaultKey
	Timeout time.Duration // per slot call; zero uses 3s
	Logger  logrus.FieldLogger
}

// Adapter persists the cart as a JSON array in a storage slot. It never
// returns errors: corrupt data loads as an empty cart and failed writes are
// logged.
type Adapter struct {
	slot    storage.Slot
	key     string
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewAdapter builds an Adapter over slot.
func NewAdapter(slot storage.Slot, opts AdapterOptions) *Adapter {
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultKey
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultIOTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{
		slot:    slot,
		key:     key,
		timeout: timeout,
		log:     log.WithFields(logrus.Fields{"component": "cart.persist", "key": key}),
	}
}

// Key returns the slot key.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads and sanitizes the stored cart. A missing value yields an empty
// cart. Values that are not a JSON array are deleted from the slot.
func (a *Adapter) Load() []LineItem {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	data, err := a.slot.Get(ctx, a.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.log.WithError(err).Error("load cart")
		}
		return nil
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		a.log.WithError(err).Warn("stored cart is not valid JSON, discarding")
		a.discard(ctx)
		return nil
	}
	if _, ok := parsed.([]any); !ok {
		a.log.Warn("stored cart is not an array, discarding")
		a.discard(ctx)
		return nil
	}

	items := Sanitize(parsed)
	a.log.WithFields(logrus.Fields{
		"items":    len(items),
		"duration": time.Since(start),
	}).Debug("cart loaded")
	return items
}

func (a *Adapter) discard(ctx context.Context) {
	if err := a.slot.Delete(ctx, a.key); err != nil {
		a.log.WithError(err).Error("remove corrupt cart")
	}
}

// Save writes items to the slot. Failures, including quota errors, are
// logged and otherwise ignored; the in-memory cart stays authoritative.
func (a *Adapter) Save(items []LineItem) {
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		a.log.WithError(err).Error("encode cart")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	if err := a.slot.Set(ctx, a.key, data); err != nil {
		entry := a.log.WithError(err).WithField("bytes", len(data))
		if errors.Is(err, storage.ErrQuotaExceeded) {
			entry.Error("storage quota exceeded, cart cannot be saved")
			return
		}
		entry.Error("save cart")
		return
	}
	a.log.WithFields(logrus.Fields{
		"items":    len(items),
		"duration": time.Since(start),
	}).Debug("cart saved")
}
