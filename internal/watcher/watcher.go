// Package watcher monitors the configured model roots for filesystem changes
// and flips a changes-pending flag so clients know the library view may be
// stale. It deliberately does not trigger scans itself: scanning stays an
// explicit, user-initiated operation.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"modelshelf/internal/logging"
	"modelshelf/internal/walker"
)

// Watcher observes model roots recursively. fsnotify watches are
// per-directory, so new subdirectories are added to the watch set as they
// appear.
type Watcher struct {
	roots  []string
	logger *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	changesPending atomic.Bool
}

// New constructs a watcher over the given roots. Roots that do not exist are
// skipped at Start time.
func New(roots []string, logger *slog.Logger) *Watcher {
	return &Watcher{
		roots:  append([]string(nil), roots...),
		logger: logging.NewComponentLogger(logger, "watcher"),
	}
}

// Start registers watches for every directory under the roots and begins
// consuming events. It is an error to start a watcher twice.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return fmt.Errorf("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}

	watched := 0
	for _, root := range w.roots {
		added, err := addRecursive(fsw, root)
		if err != nil {
			w.logger.Warn("skipping unwatchable root",
				logging.String(logging.FieldPath, root),
				logging.Error(err))
			continue
		}
		watched += added
	}
	if watched == 0 {
		fsw.Close()
		return fmt.Errorf("no watchable model roots")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.fsw = fsw
	w.cancel = cancel
	w.started = true
	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("filesystem watcher started", logging.Int("directories", watched))
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit. Safe to
// call on a watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	fsw := w.fsw
	w.mu.Unlock()

	cancel()
	fsw.Close()
	w.wg.Wait()
}

// ChangesPending reports whether any model file changed since the last reset.
func (w *Watcher) ChangesPending() bool {
	return w.changesPending.Load()
}

// ResetChanges clears the pending flag, typically after a scan completes.
func (w *Watcher) ResetChanges() {
	w.changesPending.Store(false)
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := addRecursive(w.fsw, event.Name); err != nil {
				w.logger.Warn("watching new directory failed",
					logging.String(logging.FieldPath, event.Name),
					logging.Error(err))
			}
			w.markChanged(event)
			return
		}
	}
	if !walker.IsModelFile(event.Name) {
		return
	}
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.markChanged(event)
	}
}

func (w *Watcher) markChanged(event fsnotify.Event) {
	if w.changesPending.CompareAndSwap(false, true) {
		w.logger.Info("model library changed",
			logging.String(logging.FieldPath, event.Name),
			logging.String(logging.FieldEventType, event.Op.String()))
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !entry.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		return added, err
	}
	return added, nil
}
