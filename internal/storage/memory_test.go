package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBus_SharedValues(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	a, b := bus.Slot(), bus.Slot()

	if _, err := a.Get(ctx, "cart"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
	if err := a.Set(ctx, "cart", []byte(`[1]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := b.Get(ctx, "cart")
	if err != nil || string(got) != `[1]` {
		t.Fatalf("other handle Get = (%q, %v)", got, err)
	}
	if err := b.Delete(ctx, "cart"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := bus.Raw("cart"); ok {
		t.Fatalf("value still present after Delete")
	}
}

func TestMemoryBus_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBus().Slot()
	value := []byte(`[1]`)
	if err := s.Set(ctx, "cart", value); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[1] = '9'
	got, _ := s.Get(ctx, "cart")
	got[1] = '8'
	again, _ := s.Get(ctx, "cart")
	if string(again) != `[1]` {
		t.Fatalf("stored value mutated through caller slices: %q", again)
	}
}

func TestMemoryBus_NotifiesOtherHandlesOnly(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	a, b := bus.Slot(), bus.Slot()

	fromA := make(chan string, 4)
	fromB := make(chan string, 4)
	a.OnExternalChange(func(key string) { fromA <- key })
	b.OnExternalChange(func(key string) { fromB <- key })

	if err := a.Set(ctx, "cart", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if key := waitKey(t, fromB); key != "cart" {
		t.Fatalf("b saw %q, want cart", key)
	}
	expectSilence(t, fromA, 50*time.Millisecond)

	bus.Put("cart", []byte(`{}`))
	waitKey(t, fromA)
	waitKey(t, fromB)
}

func TestMemoryBus_DeliversInOrderWithoutOverlap(t *testing.T) {
	bus := NewMemoryBus()
	s := bus.Slot()

	const writes = 20
	var inFlight, overlaps atomic.Int32
	got := make(chan string, writes)
	s.OnExternalChange(func(key string) {
		if inFlight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		got <- key
	})

	for i := 0; i < writes; i++ {
		bus.Put(fmt.Sprintf("key%02d", i), []byte(`[]`))
	}
	for i := 0; i < writes; i++ {
		if key, want := waitKey(t, got), fmt.Sprintf("key%02d", i); key != want {
			t.Fatalf("notification %d = %q, want %q", i, key, want)
		}
	}
	if n := overlaps.Load(); n != 0 {
		t.Fatalf("%d listener calls overlapped", n)
	}
}

func TestMemoryBus_ClosedHandleStopsReceiving(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	a, b := bus.Slot(), bus.Slot()

	seen := make(chan string, 4)
	b.OnExternalChange(func(key string) { seen <- key })
	_ = b.Close()

	if err := a.Set(ctx, "cart", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	expectSilence(t, seen, 50*time.Millisecond)
}

func TestMemoryBus_QuotaAndFailures(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	s := bus.Slot()

	bus.SetMaxBytes(8)
	if err := s.Set(ctx, "cart", []byte(`[1,2,3,4,5]`)); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set over quota = %v, want ErrQuotaExceeded", err)
	}
	bus.SetMaxBytes(0)
	if err := s.Set(ctx, "cart", []byte(`[1,2,3,4,5]`)); err != nil {
		t.Fatalf("Set with quota disabled: %v", err)
	}

	boom := errors.New("boom")
	bus.FailWrites(boom)
	if err := s.Set(ctx, "cart", []byte(`[]`)); !errors.Is(err, boom) {
		t.Fatalf("Set = %v, want injected error", err)
	}
	if err := s.Delete(ctx, "cart"); !errors.Is(err, boom) {
		t.Fatalf("Delete = %v, want injected error", err)
	}
	bus.FailWrites(nil)
	if err := s.Delete(ctx, "cart"); err != nil {
		t.Fatalf("Delete after recovery: %v", err)
	}
}
