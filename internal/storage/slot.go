package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes mirrors the per-origin quota browsers give local storage.
const DefaultMaxBytes = 5 * 1024 * 1024

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrQuotaExceeded is returned by Set when the value is larger than the
	// slot's configured quota.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Slot is a durable key/value store holding whole serialized values.
// Reads and writes always replace the full value; there is no partial patch.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Watcher reports writes made by other processes or handles sharing the
// same slot. The callback receives the key that changed and never fires for
// the watcher's own writes.
type Watcher interface {
	OnExternalChange(fn func(key string)) (cancel func())
}

func checkQuota(maxBytes int, key string, value []byte) error {
	if maxBytes <= 0 {
		return nil
	}
	if len(key)+len(value) > maxBytes {
		return fmt.Errorf("%w: %d bytes for %q, limit %d", ErrQuotaExceeded, len(value), key, maxBytes)
	}
	return nil
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage: key is empty")
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory and returns
// an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

type listenerSet struct {
	nextID int
	fns    map[int]func(key string)
}

func (l *listenerSet) add(fn func(key string)) int {
	if l.fns == nil {
		l.fns = make(map[int]func(key string))
	}
	l.nextID++
	l.fns[l.nextID] = fn
	return l.nextID
}

func (l *listenerSet) remove(id int) {
	delete(l.fns, id)
}

func (l *listenerSet) snapshot() []func(key string) {
	out := make([]func(key string), 0, len(l.fns))
	for _, fn := range l.fns {
		out = append(out, fn)
	}
	return out
}
