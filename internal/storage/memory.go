package storage

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBus is an in-process key/value space shared by several MemorySlot
// handles, the way browser tabs share one origin's local storage. A write
// through one handle is announced to every other handle.
type MemoryBus struct {
	mu       sync.Mutex
	data     map[string][]byte
	handles  map[*MemorySlot]struct{}
	maxBytes int
	failWith error
}

// NewMemoryBus returns an empty bus with the default quota.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		data:     make(map[string][]byte),
		handles:  make(map[*MemorySlot]struct{}),
		maxBytes: DefaultMaxBytes,
	}
}

// SetMaxBytes changes the quota. Zero or negative disables it.
func (b *MemoryBus) SetMaxBytes(n int) {
	b.mu.Lock()
	b.maxBytes = n
	b.mu.Unlock()
}

// FailWrites makes every subsequent Set and Delete return err. Passing nil
// restores normal behavior.
func (b *MemoryBus) FailWrites(err error) {
	b.mu.Lock()
	b.failWith = err
	b.mu.Unlock()
}

// Slot opens a new handle on the bus.
func (b *MemoryBus) Slot() *MemorySlot {
	s := &MemorySlot{bus: b}
	b.mu.Lock()
	b.handles[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Put writes raw bytes as if from a foreign process and notifies every
// handle. Useful to seed corrupt data or simulate another tab.
func (b *MemoryBus) Put(key string, value []byte) {
	b.mu.Lock()
	b.data[key] = bytes.Clone(value)
	b.mu.Unlock()
	b.announce(nil, key)
}

// Raw returns the stored bytes without notifying anyone.
func (b *MemoryBus) Raw(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return bytes.Clone(v), ok
}

func (b *MemoryBus) announce(from *MemorySlot, key string) {
	b.mu.Lock()
	targets := make([]*MemorySlot, 0, len(b.handles))
	for h := range b.handles {
		if h != from {
			targets = append(targets, h)
		}
	}
	b.mu.Unlock()

	for _, h := range targets {
		h.deliver(key)
	}
}

// MemorySlot is one handle on a MemoryBus.
type MemorySlot struct {
	bus *MemoryBus

	mu        sync.Mutex
	listeners listenerSet
	pending   []string
	draining  bool
}

// Get reads the value stored under key.
func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	v, ok := s.bus.Raw(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set replaces the value under key and notifies the other handles.
func (s *MemorySlot) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.bus.mu.Lock()
	if s.bus.failWith != nil {
		err := s.bus.failWith
		s.bus.mu.Unlock()
		return err
	}
	if err := checkQuota(s.bus.maxBytes, key, value); err != nil {
		s.bus.mu.Unlock()
		return err
	}
	s.bus.data[key] = bytes.Clone(value)
	s.bus.mu.Unlock()

	s.bus.announce(s, key)
	return nil
}

// Delete removes the value under key and notifies the other handles.
func (s *MemorySlot) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.bus.mu.Lock()
	if s.bus.failWith != nil {
		err := s.bus.failWith
		s.bus.mu.Unlock()
		return err
	}
	delete(s.bus.data, key)
	s.bus.mu.Unlock()

	s.bus.announce(s, key)
	return nil
}

// OnExternalChange registers fn for writes made through other handles.
// Notifications are delivered in write order on one goroutine per handle,
// never inline with the writer, and never overlap.
func (s *MemorySlot) OnExternalChange(fn func(key string)) func() {
	s.mu.Lock()
	id := s.listeners.add(fn)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.listeners.remove(id)
			s.mu.Unlock()
		})
	}
}

// Close detaches the handle from the bus.
func (s *MemorySlot) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.handles, s)
	s.bus.mu.Unlock()
	return nil
}

func (s *MemorySlot) deliver(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners.fns) == 0 {
		return
	}
	s.pending = append(s.pending, key)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
}

func (s *MemorySlot) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		key := s.pending[0]
		s.pending = s.pending[1:]
		fns := s.listeners.snapshot()
		s.mu.Unlock()

		for _, fn := range fns {
			fn(key)
		}
	}
}
