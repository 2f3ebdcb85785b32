package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moradology/kleis/internal/cart"
	"github.com/moradology/kleis/internal/catalog"
	"github.com/moradology/kleis/internal/config"
	"github.com/moradology/kleis/internal/logging"
	"github.com/moradology/kleis/internal/prefs"
	"github.com/moradology/kleis/internal/storage"
	"github.com/moradology/kleis/internal/ui"
)

// Options configure the kleis application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses ~/.config/kleis/prefs.toml
	PollEvery  int    // seconds; zero uses the configured interval
}

// backend is a cart slot that also reports writes by other processes.
type backend interface {
	storage.Slot
	storage.Watcher
	Close() error
}

// Run boots kleis and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollEvery = time.Duration(opts.PollEvery) * time.Second
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLog()

	slot, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer slot.Close()

	store := newStore(slot, cfg, logger)
	defer store.Close()

	client, err := catalog.NewClient(cfg.CatalogURL)
	if err != nil {
		return fmt.Errorf("init catalog client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Storage.Backend,
		"key":     cfg.Storage.Key,
		"items":   len(store.Snapshot()),
		"catalog": cfg.CatalogURL,
	}).Info("kleis started")

	StartStockPoller(ctx, store, client, cfg.PollEvery, logger)

	return ui.Run(ctx, ui.Options{
		Hook:     ui.NewCartHook(store),
		Products: client,
		RefreshStock: func(ctx context.Context) error {
			return refreshStock(ctx, store, client, logger)
		},
		LogPath:   cfg.Logging.File,
		PrefsPath: opts.PrefsPath,
		Prefs:     prefs.Load(opts.PrefsPath),
	})
}

// newStore builds the persistence adapter over slot and the store that
// follows the slot's external changes.
func newStore(slot backend, cfg config.Config, logger logrus.FieldLogger) *cart.Store {
	adapter := cart.NewAdapter(slot, cart.AdapterOptions{
		Key:     cfg.Storage.Key,
		Timeout: cfg.Storage.Timeout,
		Logger:  logger,
	})
	return cart.NewStore(adapter, cart.Options{
		Changes: slot,
		Logger:  logger,
	})
}

func openBackend(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return storage.NewFileSlot(storage.FileOptions{
			Dir:           cfg.Storage.Dir,
			MaxBytes:      cfg.Storage.MaxBytes,
			WatchInterval: cfg.Storage.WatchEvery,
			Logger:        logger,
		})
	case config.BackendRedis:
		return storage.NewRedisSlot(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
			MaxBytes: cfg.Storage.MaxBytes,
			Logger:   logger,
		})
	case config.BackendMemory:
		bus := storage.NewMemoryBus()
		bus.SetMaxBytes(cfg.Storage.MaxBytes)
		return bus.Slot(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
