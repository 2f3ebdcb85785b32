package app

import (
	"context"
	"testing"
	"time"

	"github.com/moradology/kleis/internal/cart"
	"github.com/moradology/kleis/internal/config"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.WatchEvery = 10 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	cfg := testConfig(t, "floppy")
	if _, err := openBackend(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatalf("openBackend accepted an unknown backend")
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	slot, err := openBackend(context.Background(), testConfig(t, config.BackendMemory), quietLogger())
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer slot.Close()

	store := newStore(slot, testConfig(t, config.BackendMemory), quietLogger())
	defer store.Close()
	if got := store.AddItem(cart.Details{ID: "SKU001", ProductID: "p", Name: "n", SKU: "SKU001", Stock: 3}, 1); got != cart.AddInserted {
		t.Fatalf("AddItem = %v, want inserted", got)
	}
}

// Two stores over one file directory behave like two browser tabs.
func TestFileBackend_ProcessesStayInSync(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	ctx := context.Background()

	open := func() *cart.Store {
		slot, err := openBackend(ctx, cfg, quietLogger())
		if err != nil {
			t.Fatalf("openBackend: %v", err)
		}
		t.Cleanup(func() { _ = slot.Close() })
		store := newStore(slot, cfg, quietLogger())
		t.Cleanup(store.Close)
		return store
	}
	tabA, tabB := open(), open()

	tabA.AddItem(cart.Details{ID: "SKU001", ProductID: "p", Name: "Oil", SKU: "SKU001", UnitPrice: 1000, Stock: 10}, 2)
	waitFor(t, "tab B to see the new item", func() bool {
		it, ok := tabB.GetItem("SKU001")
		return ok && it.Quantity == 2
	})

	tabB.UpdateItemQuantity("SKU001", 5)
	waitFor(t, "tab A to see the new quantity", func() bool {
		it, _ := tabA.GetItem("SKU001")
		return it.Quantity == 5
	})

	tabA.ClearCart()
	waitFor(t, "tab B to see the empty cart", func() bool {
		return len(tabB.Snapshot()) == 0
	})

	// A fresh process starts from what is on disk.
	if got := open().Snapshot(); len(got) != 0 {
		t.Fatalf("new store loaded %+v, want empty", got)
	}
}
