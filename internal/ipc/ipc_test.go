package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modelshelf/internal/config"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
	"modelshelf/internal/testsupport"

	daemonpkg "modelshelf/internal/daemon"
)

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*Client, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store, err := modelcache.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	scan := scanner.New(cfg, store, nil, logging.NewNop())
	d, err := daemonpkg.New(cfg, store, scan, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	srv, err := NewServer(context.Background(), cfg.SocketPath(), d, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, cfg
}

func TestPingAndStatus(t *testing.T) {
	client, cfg := newTestServer(t)

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if ping.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", ping.PID)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running || status.Scan.Status != string(scanner.StatusIdle) {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LockPath != cfg.LockPath() {
		t.Fatalf("lock path mismatch: %q", status.LockPath)
	}
}

func TestScanStartReportsRefusalInMessage(t *testing.T) {
	client, _ := newTestServer(t, testsupport.WithModelRoots(filepath.Join(t.TempDir(), "absent")))

	resp, err := client.ScanStart(ScanStartRequest{})
	if err != nil {
		t.Fatalf("scan start: %v", err)
	}
	if resp.Started || resp.Message == "" {
		t.Fatalf("expected refusal with message, got %+v", resp)
	}
}

func TestScanRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "loras", "style.safetensors")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	client, _ := newTestServer(t, testsupport.WithModelRoots(root))

	started, err := client.ScanStart(ScanStartRequest{})
	if err != nil {
		t.Fatalf("scan start: %v", err)
	}
	if !started.Started || started.Total != 1 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := client.ScanStatus()
		if err != nil {
			t.Fatalf("scan status: %v", err)
		}
		if !status.Scan.Active {
			if status.Scan.Status != string(scanner.StatusCompleted) {
				t.Fatalf("unexpected terminal status: %+v", status.Scan)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scan did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	models, err := client.ModelsList(ModelsListRequest{})
	if err != nil {
		t.Fatalf("models list: %v", err)
	}
	if len(models.Models) != 1 || models.Models[0].Category != "lora" {
		t.Fatalf("unexpected models: %+v", models.Models)
	}

	ack, err := client.ScanAcknowledge()
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if !ack.Acknowledged {
		t.Fatal("expected session to be acknowledged")
	}
	status, err := client.ScanStatus()
	if err != nil {
		t.Fatalf("scan status: %v", err)
	}
	if status.Scan.Status != string(scanner.StatusIdle) {
		t.Fatalf("expected idle after acknowledge, got %+v", status.Scan)
	}
}

func TestModelsListRejectsUnknownCategory(t *testing.T) {
	client, _ := newTestServer(t)
	if _, err := client.ModelsList(ModelsListRequest{Category: "nonsense"}); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestCacheMaintenanceOverIPC(t *testing.T) {
	client, _ := newTestServer(t)

	health, err := client.CacheHealth()
	if err != nil {
		t.Fatalf("cache health: %v", err)
	}
	if !health.Health.DatabaseExists || !health.Health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health.Health)
	}

	cleared, err := client.CacheClear()
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if cleared.Removed != 0 {
		t.Fatalf("empty cache should clear nothing, got %d", cleared.Removed)
	}

	pruned, err := client.CachePrune()
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	if pruned.Pruned != 0 {
		t.Fatalf("empty cache should prune nothing, got %d", pruned.Pruned)
	}
}

func TestSettingsRedactAPIKey(t *testing.T) {
	client, cfg := newTestServer(t)
	resp, err := client.SettingsGet()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if resp.Settings.CacheDir != cfg.Paths.CacheDir {
		t.Fatalf("cache dir mismatch: %+v", resp.Settings)
	}
	if resp.Settings.HasAPIKey {
		t.Fatal("no api key configured")
	}
}
