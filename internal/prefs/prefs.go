// Package prefs persists kleis UI preferences in
// ~/.config/kleis/prefs.toml. The cart itself never lives here.
package prefs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/moradology/kleis/internal/storage"
)

// Prefs holds per-user UI preferences.
type Prefs struct {
	Theme        string `toml:"theme"`
	ShowActivity bool   `toml:"show_activity"`
}

const (
	defaultPrefsPath = "~/.config/kleis/prefs.toml"
	DefaultTheme     = "Nightfox"
)

// Default returns the preferences used when nothing is saved.
func Default() Prefs {
	return Prefs{Theme: DefaultTheme}
}

// DefaultPath returns the unexpanded default preferences path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path, or the default path when empty.
// Unreadable or malformed files yield defaults; preferences are never
// worth refusing to start over.
func Load(path string) Prefs {
	p := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return p
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return p
	}

	var stored Prefs
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&stored); err != nil {
		return p
	}
	if theme := strings.TrimSpace(stored.Theme); theme != "" {
		p.Theme = theme
	}
	p.ShowActivity = stored.ShowActivity
	return p
}

// Save writes p to path, or the default path when empty, creating parent
// directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return storage.ExpandPath(defaultPrefsPath)
	}
	return storage.ExpandPath(path)
}
