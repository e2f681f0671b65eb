package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"modelshelf/internal/catalog"
	"modelshelf/internal/config"
	"modelshelf/internal/fingerprint"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/testsupport"
)

// fakeFetcher is a scripted catalog.Fetcher that records which fingerprints
// were looked up.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	err     error
	block   chan struct{}
	version *catalog.ModelVersion
}

func (f *fakeFetcher) Lookup(ctx context.Context, fp string) (*catalog.ModelVersion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fp)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.version != nil {
		return f.version, nil
	}
	raw := json.RawMessage(`{"id": 9, "name": "v1", "model": {"name": "Fake", "type": "LORA"}}`)
	return &catalog.ModelVersion{
		ID:    9,
		Name:  "v1",
		Model: catalog.ModelInfo{Name: "Fake", Type: "LORA"},
		Raw:   raw,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScanner(t *testing.T, cfg *config.Config, fetcher catalog.Fetcher) (*Scanner, *modelcache.Store) {
	t.Helper()
	store, err := modelcache.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s := New(cfg, store, fetcher, nil)
	t.Cleanup(s.Stop)
	return s, store
}

func writeModel(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitForTerminal(t *testing.T, s *Scanner) Snapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Progress()
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached a terminal state: %+v", s.Progress())
	return Snapshot{}
}

func TestScanCachedFileSkipsCatalog(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	fetcher := &fakeFetcher{}
	s, store := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	cached := writeModel(t, root, "checkpoints/cached.safetensors", []byte("cached"))
	writeModel(t, root, "loras/new1.safetensors", []byte("one"))
	writeModel(t, root, "loras/new2.safetensors", []byte("two"))

	// Pre-seed the cache for the first file: fingerprint plus enrichment.
	fp, err := fingerprint.File(ctx, cached)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertPath(ctx, modelcache.PathRecord{Path: cached, Fingerprint: fp}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertEntry(ctx, modelcache.Entry{
		Fingerprint: fp,
		Enrichment:  json.RawMessage(`{"id": 1}`),
		VersionID:   1,
	}); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Start(ctx, Options{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.Total != 3 {
		t.Errorf("total: got %d, want 3", snap.Total)
	}

	final := waitForTerminal(t, s)
	if final.Status != StatusCompleted {
		t.Fatalf("status: got %q, want completed (fatal: %s)", final.Status, final.FatalError)
	}
	if final.ErrorCount != 0 {
		t.Errorf("error count: got %d, want 0", final.ErrorCount)
	}
	if final.Current != 3 {
		t.Errorf("current: got %d, want 3", final.Current)
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("catalog calls: got %d, want 2", got)
	}
}

func TestScanIdempotentFingerprints(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	s, store := newTestScanner(t, cfg, nil)
	ctx := context.Background()

	writeModel(t, root, "a.safetensors", []byte("alpha"))
	writeModel(t, root, "b.safetensors", []byte("bravo"))

	runScan := func() map[string]string {
		t.Helper()
		if _, err := s.Start(ctx, Options{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if snap := waitForTerminal(t, s); snap.Status != StatusCompleted {
			t.Fatalf("status: %q", snap.Status)
		}
		s.Acknowledge()

		records, err := store.ListPaths(ctx)
		if err != nil {
			t.Fatal(err)
		}
		fps := make(map[string]string, len(records))
		for _, rec := range records {
			fps[rec.Path] = rec.Fingerprint
		}
		return fps
	}

	first := runScan()
	second := runScan()

	if len(first) != 2 {
		t.Fatalf("expected 2 records, got %d", len(first))
	}
	for path, fp := range first {
		if fp == "" {
			t.Errorf("empty fingerprint for %s", path)
		}
		if second[path] != fp {
			t.Errorf("fingerprint changed for %s: %s vs %s", path, fp, second[path])
		}
	}
}

func TestStartWhileActiveFailsFast(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	block := make(chan struct{})
	fetcher := &fakeFetcher{block: block}
	s, _ := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	writeModel(t, root, "a.safetensors", []byte("alpha"))

	first, err := s.Start(ctx, Options{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err = s.Start(ctx, Options{})
	if !errors.Is(err, ErrScanActive) {
		t.Errorf("expected ErrScanActive, got %v", err)
	}

	// The active session is unaffected by the rejected start.
	snap := s.Progress()
	if snap.SessionID != first.SessionID {
		t.Errorf("session replaced: %s vs %s", snap.SessionID, first.SessionID)
	}
	if snap.Status.Terminal() {
		t.Errorf("active session unexpectedly terminal: %q", snap.Status)
	}

	close(block)
	waitForTerminal(t, s)
}

func TestCancelPreservesCacheWrites(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	block := make(chan struct{})
	fetcher := &fakeFetcher{block: block}
	s, store := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	writeModel(t, root, "a.safetensors", []byte("alpha"))
	writeModel(t, root, "b.safetensors", []byte("bravo"))

	if _, err := s.Start(ctx, Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait until the first file reached the catalog, then cancel mid-fetch.
	deadline := time.Now().Add(5 * time.Second)
	for fetcher.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fetcher.callCount() == 0 {
		t.Fatal("fetcher never called")
	}

	if !s.Cancel() {
		t.Fatal("Cancel returned false for an active session")
	}
	final := waitForTerminal(t, s)
	if final.Status != StatusCancelled {
		t.Fatalf("status: got %q, want cancelled", final.Status)
	}

	// The first file's path record was written before cancellation and must
	// survive it.
	records, err := store.ListPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 {
		t.Error("cache writes made before cancellation were lost")
	}
}

func TestCancelWithoutSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, _ := newTestScanner(t, cfg, nil)
	if s.Cancel() {
		t.Error("Cancel should return false with no session")
	}
}

func TestProgressMonotonic(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	s, _ := newTestScanner(t, cfg, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		writeModel(t, root, filepath.Join("loras", string(rune('a'+i))+".safetensors"), []byte{byte(i)})
	}

	if _, err := s.Start(ctx, Options{}); err != nil {
		t.Fatal(err)
	}

	last := 0
	for {
		snap := s.Progress()
		if snap.Current < last {
			t.Fatalf("current went backwards: %d -> %d", last, snap.Current)
		}
		if snap.Current > snap.Total {
			t.Fatalf("current %d exceeds total %d", snap.Current, snap.Total)
		}
		last = snap.Current
		if snap.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMissingRootDoesNotFailScan(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "not-there")
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(missing, root))
	s, _ := newTestScanner(t, cfg, nil)
	ctx := context.Background()

	writeModel(t, root, "a.safetensors", []byte("alpha"))

	snap, err := s.Start(ctx, Options{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.Total != 1 {
		t.Errorf("total: got %d, want 1", snap.Total)
	}

	final := waitForTerminal(t, s)
	if final.Status != StatusCompleted {
		t.Errorf("status: got %q, want completed", final.Status)
	}
	if final.ErrorCount != 0 {
		t.Errorf("error count: got %d, want 0", final.ErrorCount)
	}
}

func TestStartValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots())
	s, _ := newTestScanner(t, cfg, nil)
	ctx := context.Background()

	if _, err := s.Start(ctx, Options{}); !errors.Is(err, ErrNoRoots) {
		t.Errorf("no roots: expected ErrNoRoots, got %v", err)
	}

	empty := t.TempDir()
	if _, err := s.Start(ctx, Options{Folders: []string{empty}}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("empty root: expected ErrNoCandidates, got %v", err)
	}

	// Failed starts leave the scanner idle.
	if snap := s.Progress(); snap.Status != StatusIdle {
		t.Errorf("status after failed starts: got %q, want idle", snap.Status)
	}
}

func TestBlacklistRespectedUnlessForced(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t, testsupport.WithModelRoots(root))
	fetcher := &fakeFetcher{}
	s, store := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	path := writeModel(t, root, "a.safetensors", []byte("alpha"))
	fp, err := fingerprint.File(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertPath(ctx, modelcache.PathRecord{Path: path, Fingerprint: fp}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetBlacklisted(ctx, fp, true); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Start(ctx, Options{}); err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, s)
	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("blacklisted entry reached the catalog without force: %d calls", got)
	}
	s.Acknowledge()

	if _, err := s.Start(ctx, Options{Force: true, IncludeCached: true}); err != nil {
		t.Fatal(err)
	}
	waitForTerminal(t, s)
	if got := fetcher.callCount(); got != 1 {
		t.Errorf("forced scan should reach the catalog for blacklisted entries: %d calls", got)
	}

	// Successful forced lookup clears the blacklist.
	entry, found, err := store.LookupByFingerprint(ctx, fp)
	if err != nil || !found {
		t.Fatalf("entry lookup: found=%v err=%v", found, err)
	}
	if entry.Blacklisted {
		t.Error("blacklist not cleared after successful forced refresh")
	}
}

func TestNetworkFailureThresholdEscalates(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t,
		testsupport.WithModelRoots(root),
		testsupport.WithNetworkFailureThreshold(2))
	fetcher := &fakeFetcher{err: &catalog.RequestError{Err: errors.New("connection refused")}}
	s, _ := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d"} {
		writeModel(t, root, name+".safetensors", []byte(name))
	}

	if _, err := s.Start(ctx, Options{}); err != nil {
		t.Fatal(err)
	}
	final := waitForTerminal(t, s)
	if final.Status != StatusError {
		t.Fatalf("status: got %q, want error", final.Status)
	}
	if final.FatalError == "" {
		t.Error("fatal error message missing")
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("expected exactly %d catalog calls before escalation, got %d", 2, got)
	}
}

func TestNotFoundBlacklistsAfterRepeats(t *testing.T) {
	root := t.TempDir()
	cfg := testsupport.NewConfig(t,
		testsupport.WithModelRoots(root),
		testsupport.WithBlacklistAfterNotFound(2))
	fetcher := &fakeFetcher{err: catalog.ErrNotFound}
	s, store := newTestScanner(t, cfg, fetcher)
	ctx := context.Background()

	path := writeModel(t, root, "a.safetensors", []byte("alpha"))

	runOnce := func() Snapshot {
		t.Helper()
		if _, err := s.Start(ctx, Options{}); err != nil {
			t.Fatal(err)
		}
		snap := waitForTerminal(t, s)
		s.Acknowledge()
		return snap
	}

	if snap := runOnce(); snap.Status != StatusCompleted {
		t.Fatalf("first scan status: %q", snap.Status)
	}
	if snap := runOnce(); snap.Status != StatusCompleted {
		t.Fatalf("second scan status: %q", snap.Status)
	}

	fp, err := fingerprint.File(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	entry, found, err := store.LookupByFingerprint(ctx, fp)
	if err != nil || !found {
		t.Fatalf("entry: found=%v err=%v", found, err)
	}
	if !entry.Blacklisted {
		t.Error("entry should be blacklisted after two not-found scans")
	}
	if entry.NotFoundCount != 2 {
		t.Errorf("not found count: got %d, want 2", entry.NotFoundCount)
	}
}
