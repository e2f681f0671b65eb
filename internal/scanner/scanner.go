package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelshelf/internal/catalog"
	"modelshelf/internal/config"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/walker"
)

// ErrScanActive is returned by Start while a session is still in flight.
// Start requests are rejected, never queued.
var ErrScanActive = errors.New("a scan is already active")

// ErrNoRoots is returned when no requested folder exists on disk.
var ErrNoRoots = errors.New("no existing model folders to scan")

// ErrNoCandidates is returned when the requested folders contain no model
// files at all.
var ErrNoCandidates = errors.New("no candidate model files found in the requested folders")

// Options are the caller-supplied parameters for a scan session.
type Options struct {
	// Folders to scan; empty means all configured model roots.
	Folders []string
	// Force re-fingerprints files that already have a cached fingerprint and
	// refreshes metadata even for blacklisted entries.
	Force bool
	// IncludeCached extends a forced refresh to entries that already carry
	// enrichment metadata.
	IncludeCached bool
}

// Scanner owns the scan session and sequences walking, fingerprinting,
// cache writes, and metadata fetches. It is the only writer of session
// state.
type Scanner struct {
	cfg     *config.Config
	store   *modelcache.Store
	fetcher catalog.Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	session *session
	wg      sync.WaitGroup
}

// New constructs a scanner. fetcher may be nil when the catalog is disabled;
// files are then fingerprinted and cached without enrichment.
func New(cfg *config.Config, store *modelcache.Store, fetcher catalog.Fetcher, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "scanner"),
	}
}

// Start begins a new scan session. It discovers candidate files before
// returning so the caller immediately knows the total; the per-file work
// runs in a background goroutine. A start while a session is active fails
// fast with ErrScanActive and leaves the active session untouched.
func (s *Scanner) Start(ctx context.Context, opts Options) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !s.session.terminal() {
		return Snapshot{}, ErrScanActive
	}

	roots := opts.Folders
	if len(roots) == 0 {
		roots = s.cfg.Paths.ModelRoots
	}
	if len(roots) == 0 {
		return Snapshot{}, ErrNoRoots
	}
	if !anyRootExists(roots) {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrNoRoots, roots)
	}

	sess := &session{
		id:        uuid.NewString(),
		force:     opts.Force,
		status:    StatusDiscovering,
		startedAt: time.Now(),
	}

	discovered, err := walker.Discover(ctx, roots, s.logger)
	if err != nil {
		return Snapshot{}, fmt.Errorf("discover model files: %w", err)
	}
	if len(discovered.Files) == 0 {
		return Snapshot{}, ErrNoCandidates
	}
	sess.setTotal(len(discovered.Files))

	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	s.session = sess

	s.logger.Info("scan session started",
		logging.String(logging.FieldSessionID, sess.id),
		logging.Int("total", len(discovered.Files)),
		logging.Bool("force", opts.Force),
		logging.Bool("include_cached", opts.IncludeCached))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(runCtx, sess, discovered.Files, opts)
	}()

	return sess.snapshot(), nil
}

// Progress returns the current session snapshot. With no session it reports
// an idle, inactive state.
func (s *Scanner) Progress() Snapshot {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return Snapshot{Status: StatusIdle}
	}
	return sess.snapshot()
}

// Cancel requests cooperative cancellation of the live session. It returns
// true when a session was active to receive the request; the session
// transitions to cancelled within one file's processing time.
func (s *Scanner) Cancel() bool {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil || sess.terminal() {
		return false
	}
	sess.cancelRequested.Store(true)
	if sess.cancel != nil {
		sess.cancel()
	}
	s.logger.Info("scan cancellation requested",
		logging.String(logging.FieldSessionID, sess.id))
	return true
}

// Acknowledge discards a terminal session, returning the scanner to idle.
// It reports whether a terminal session was cleared.
func (s *Scanner) Acknowledge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.session.terminal() {
		return false
	}
	s.session = nil
	return true
}

// Stop cancels any live session and waits for the worker to finish.
func (s *Scanner) Stop() {
	s.Cancel()
	s.wg.Wait()
}

func anyRootExists(roots []string) bool {
	for _, root := range roots {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
