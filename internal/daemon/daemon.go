package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"modelshelf/internal/browse"
	"modelshelf/internal/config"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
	"modelshelf/internal/watcher"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *modelcache.Store
	scanner *scanner.Scanner
	view    *browse.View
	watch   *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	DatabasePath   string
	LockFilePath   string
	ChangesPending bool
	Scan           scanner.Snapshot
}

// New constructs a daemon with initialized dependencies. The watcher is
// created lazily at Start when enabled in configuration.
func New(cfg *config.Config, store *modelcache.Store, scan *scanner.Scanner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || scan == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, scanner, and logger")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		scanner:  scan,
		view:     browse.New(store, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock and launches the watcher and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another modelshelf daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.cfg.Watcher.Enabled {
		w := watcher.New(d.cfg.Paths.ModelRoots, d.logger)
		if err := w.Start(); err != nil {
			d.logger.Warn("filesystem watcher unavailable", logging.Error(err))
		} else {
			d.watch = w
		}
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.releaseStart()
			return err
		}
	}

	d.running = true
	d.logger.Info("modelshelf daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()))
	return nil
}

func (d *Daemon) releaseStart() {
	if d.watch != nil {
		d.watch.Stop()
		d.watch = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.lock.Unlock()
}

// Stop halts background services and releases the daemon lock. Any active
// scan is cancelled and waited for.
func (d *Daemon) Stop() {
	if !d.running {
		return
	}

	d.scanner.Stop()
	if d.watch != nil {
		d.watch.Stop()
		d.watch = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("modelshelf daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// StartScan begins a scan session. A successful start clears the watcher's
// changes-pending flag since the upcoming scan refreshes the view.
func (d *Daemon) StartScan(ctx context.Context, opts scanner.Options) (scanner.Snapshot, error) {
	snap, err := d.scanner.Start(ctx, opts)
	if err != nil {
		return snap, err
	}
	if d.watch != nil {
		d.watch.ResetChanges()
	}
	return snap, nil
}

// ScanStatus returns the current scan progress snapshot.
func (d *Daemon) ScanStatus() scanner.Snapshot {
	return d.scanner.Progress()
}

// CancelScan requests cancellation of the active scan.
func (d *Daemon) CancelScan() bool {
	return d.scanner.Cancel()
}

// AcknowledgeScan clears a finished session so its terminal state stops being
// reported.
func (d *Daemon) AcknowledgeScan() bool {
	return d.scanner.Acknowledge()
}

// Models returns the merged library view for the configured roots.
func (d *Daemon) Models(ctx context.Context, query browse.Query) ([]browse.Model, error) {
	return d.view.List(ctx, d.cfg.Paths.ModelRoots, query)
}

// RecordModelUse stamps the last-used time on the entry behind path. The host
// application calls this when it loads a model so recency filters stay honest.
func (d *Daemon) RecordModelUse(ctx context.Context, path string) error {
	record, ok, err := d.store.LookupByPath(ctx, path)
	if err != nil {
		return err
	}
	if !ok || record.Fingerprint == "" {
		return fmt.Errorf("path %q: %w", path, modelcache.ErrEntryNotFound)
	}
	return d.store.Touch(ctx, record.Fingerprint, time.Now().UTC())
}

// CacheHealth returns cache database diagnostics.
func (d *Daemon) CacheHealth(ctx context.Context) (modelcache.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// ClearCache removes all cached paths and entries.
func (d *Daemon) ClearCache(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// PruneCache removes path records whose files no longer exist on disk.
func (d *Daemon) PruneCache(ctx context.Context) (int64, error) {
	return d.store.PruneMissingPaths(ctx)
}

// Config returns the effective daemon configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// ChangesPending reports whether the watcher saw model changes since the
// last scan.
func (d *Daemon) ChangesPending() bool {
	return d.watch != nil && d.watch.ChangesPending()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running,
		PID:            os.Getpid(),
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		ChangesPending: d.ChangesPending(),
		Scan:           d.scanner.Progress(),
	}
}
