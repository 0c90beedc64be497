package load

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for further changes before it
// reports a batch.
const DefaultDebounce = 100 * time.Millisecond

type watchConfig struct {
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

// WithDebounce sets the quiet period that ends a batch of changes.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger sets the logger for watch events.
func WithLogger(l *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Watch watches the schema files named by paths and calls onChange with
// the sorted schema files that were written, created, removed or renamed,
// once no further change arrived for the debounce period. Directories are
// watched recursively and new subdirectories are picked up. Watch returns
// nil when ctx is done, or the first error of onChange or the watcher.
func Watch(ctx context.Context, paths []string, onChange func(changed []string) error, opts ...WatchOption) error {
	cfg := &watchConfig{
		debounce: DefaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// explicit files are watched through their directory, since editors
	// often replace a file instead of writing it.
	explicit := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return &Error{Path: p, Cause: err}
		}
		if !info.IsDir() {
			explicit[filepath.Clean(p)] = true
			if err := w.Add(filepath.Dir(p)); err != nil {
				return &Error{Path: p, Cause: err}
			}
			continue
		}
		if err := addTree(w, p); err != nil {
			return &Error{Path: p, Cause: err}
		}
	}
	cfg.logger.Debug("watching", "paths", paths, "dirs", len(w.WatchList()))

	var (
		pending = make(map[string]bool)
		timer   = time.NewTimer(cfg.debounce)
	)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(name); err == nil && info.IsDir() && !hidden(info.Name()) {
					if err := addTree(w, name); err != nil {
						cfg.logger.Warn("watch new directory", "dir", name, "error", err)
					}
					continue
				}
			}
			if !explicit[name] && !IsSchema(name) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			cfg.logger.Debug("schema changed", "file", name, "op", ev.Op.String())
			pending[name] = true
			timer.Reset(cfg.debounce)
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			clear(pending)
			slices.Sort(changed)
			if err := onChange(changed); err != nil {
				return err
			}
		}
	}
}

// addTree watches dir and its subdirectories, skipping hidden ones.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
