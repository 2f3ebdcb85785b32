package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultFileDir       = "~/.local/share/kleis"
	defaultWatchInterval = 500 * time.Millisecond
	fileSuffix           = ".json"
)

// FileOptions configure a FileSlot.
type FileOptions struct {
	Dir           string        // empty uses ~/.local/share/kleis
	MaxBytes      int           // zero uses DefaultMaxBytes, negative disables the quota
	WatchInterval time.Duration // zero uses 500ms
	Logger        logrus.FieldLogger
}

// FileSlot stores each key as a JSON file in one directory. Several
// processes may share the directory; OnExternalChange polls the files and
// reports values that differ from what this slot last read or wrote.
type FileSlot struct {
	dir      string
	maxBytes int
	interval time.Duration
	log      logrus.FieldLogger

	mu        sync.Mutex
	seen      map[string]fileState
	listeners listenerSet
	stop      context.CancelFunc
}

type fileState struct {
	data   []byte
	exists bool
}

// NewFileSlot resolves the directory and returns a ready slot. The directory
// is created on first write.
func NewFileSlot(opts FileOptions) (*FileSlot, error) {
	dir := opts.Dir
	if strings.TrimSpace(dir) == "" {
		dir = defaultFileDir
	}
	resolved, err := ExpandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}

	maxBytes := opts.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	interval := opts.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &FileSlot{
		dir:      resolved,
		maxBytes: maxBytes,
		interval: interval,
		log:      log.WithField("component", "storage.file"),
		seen:     make(map[string]fileState),
	}, nil
}

// Dir returns the resolved storage directory.
func (s *FileSlot) Dir() string {
	return s.dir
}

func (s *FileSlot) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

// Get reads the value stored under key.
func (s *FileSlot) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.remember(key, fileState{})
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	s.remember(key, fileState{data: data, exists: true})
	return data, nil
}

// Set replaces the value under key. The file is written to a temp file and
// renamed so readers never observe a partial value.
func (s *FileSlot) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := checkQuota(s.maxBytes, key, value); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}

	// Record before the rename so the watcher never mistakes our own write
	// for an external one.
	s.remember(key, fileState{data: bytes.Clone(value), exists: true})
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Delete removes the value under key. Deleting a missing key is not an error.
func (s *FileSlot) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.remember(key, fileState{})
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FileSlot) remember(key string, st fileState) {
	s.mu.Lock()
	s.seen[key] = st
	s.mu.Unlock()
}

// OnExternalChange registers fn for changes made by other processes. The
// first registration starts the polling goroutine; Close stops it.
func (s *FileSlot) OnExternalChange(fn func(key string)) func() {
	s.mu.Lock()
	id := s.listeners.add(fn)
	if s.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stop = cancel
		go s.watch(ctx)
	}
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

// Close stops the watcher goroutine, if any.
func (s *FileSlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	return nil
}

func (s *FileSlot) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, key := range s.scan() {
				s.mu.Lock()
				fns := s.listeners.snapshot()
				s.mu.Unlock()
				for _, fn := range fns {
					fn(key)
				}
			}
		}
	}
}

// scan returns the keys whose on-disk value differs from the last value
// this slot observed, and records the new values.
func (s *FileSlot) scan() []string {
	current := make(map[string]fileState)
	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).Warn("scan storage dir")
		return nil
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		current[key] = fileState{data: data, exists: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for key, st := range current {
		prev := s.seen[key]
		if prev.exists && bytes.Equal(prev.data, st.data) {
			continue
		}
		s.seen[key] = st
		changed = append(changed, key)
	}
	for key, prev := range s.seen {
		if _, ok := current[key]; ok || !prev.exists {
			continue
		}
		s.seen[key] = fileState{}
		changed = append(changed, key)
	}
	return changed
}
