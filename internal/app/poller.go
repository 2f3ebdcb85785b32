package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moradology/kleis/internal/cart"
	"github.com/moradology/kleis/internal/catalog"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

// StartStockPoller launches a goroutine that refreshes the cart's stock
// levels from the catalog every interval until ctx is cancelled. Failed
// refreshes back off exponentially. It returns immediately.
func StartStockPoller(ctx context.Context, store *cart.Store, fetcher catalog.StockFetcher, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "stock-poller")

	go func() {
		failures := 0
		for {
			if err := refreshStock(ctx, store, fetcher, log); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				log.WithError(err).WithField("failures", failures).Warn("live stock refresh failed")
			} else {
				failures = 0
			}

			timer := time.NewTimer(calculateBackoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// refreshStock fetches live stock for every product in the cart and applies
// it. Products the catalog no longer knows are skipped. Errors from
// individual products are joined; stock from the others is still applied.
func refreshStock(ctx context.Context, store *cart.Store, fetcher catalog.StockFetcher, log logrus.FieldLogger) error {
	items := store.Snapshot()
	if len(items) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	stock := make(map[string]int)
	var errs []error
	for _, it := range items {
		if it.ProductID == "" || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true

		live, err := fetcher.FetchLiveStock(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			log.WithField("product", it.ProductID).Debug("product missing from catalog, keeping recorded stock")
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.ProductID, err))
			continue
		}
		for sku, n := range live.BySKU() {
			stock[sku] = n
		}
	}

	if store.ApplyStock(stock) {
		log.WithField("skus", len(stock)).Debug("applied live stock")
	}
	return errors.Join(errs...)
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff. It never returns less than base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
