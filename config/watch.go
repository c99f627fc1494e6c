package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration whenever the file is changed by another
// process and calls onChange after each successful reload. It returns once
// the watcher is installed; watching stops when ctx is done.
func (c *Config) Watch(ctx context.Context, onChange func()) error {
	if c.path == "" {
		return fmt.Errorf("config path not set")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				changed, err := c.reload()
				if err != nil {
					slog.Warn("reload config", "error", err)
					continue
				}
				if changed && onChange != nil {
					onChange()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("config watcher", "error", err)
			}
		}
	}()

	return nil
}

// reload re-reads the file, keeping environment overrides. It reports
// whether any persisted setting differs from the current one.
func (c *Config) reload() (bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return false, fmt.Errorf("read config: %w", err)
	}

	next := defaultConfig()
	if err := json.Unmarshal(data, next); err != nil {
		return false, fmt.Errorf("unmarshal config: %w", err)
	}
	next.applyDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := c.Groq != next.Groq ||
		c.Hotkey != next.Hotkey ||
		c.Audio != next.Audio ||
		c.History != next.History ||
		c.TempDir != next.TempDir

	c.Groq = next.Groq
	c.Hotkey = next.Hotkey
	c.Audio = next.Audio
	c.History = next.History
	c.TempDir = next.TempDir

	return changed, nil
}
