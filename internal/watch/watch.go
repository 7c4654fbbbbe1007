package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls onChange, debounced, when files below a directory change.
// It is used in development mode to reload the window when assets are edited.
type Watcher struct {
	root     string
	w        *fsnotify.Watcher
	debounce *debouncer
	onChange func()
	logger   *slog.Logger
}

// New creates a watcher over root and all its subdirectories
func New(root string, delay time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		w:        fw,
		debounce: &debouncer{delay: delay},
		onChange: onChange,
		logger:   logger,
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories need their own watch.
				_ = w.addRecursive(ev.Name)
			}
			w.logger.Debug("asset changed", "path", ev.Name, "op", ev.Op.String())
			w.debounce.trigger(w.onChange)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops watching and drops any pending callback
func (w *Watcher) Close() error {
	w.debounce.stop()
	return w.w.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && ignored(p) {
			return filepath.SkipDir
		}
		if err := w.w.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// ignored skips editor swap files and VCS or dependency directories
func ignored(p string) bool {
	base := filepath.Base(p)
	switch {
	case strings.HasPrefix(base, "."),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		base == "node_modules":
		return true
	}
	return false
}
