package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modelshelf/internal/api"
	"modelshelf/internal/config"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
	"modelshelf/internal/testsupport"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store, err := modelcache.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	scan := scanner.New(cfg, store, nil, logging.NewNop())
	d, err := New(cfg, store, scan, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, cfg
}

func startDaemon(t *testing.T, d *Daemon) string {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	addr := d.api.addr()
	if addr == "" {
		t.Fatal("api server has no address")
	}
	return "http://" + addr
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	d, cfg := newDaemon(t)
	base := startDaemon(t, d)
	defer d.Stop()
	_ = base

	store2, err := modelcache.OpenPath(filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("open second store: %v", err)
	}
	defer store2.Close()
	scan2 := scanner.New(cfg, store2, nil, logging.NewNop())
	second, err := New(cfg, store2, scan2, logging.NewNop())
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon should fail to acquire the lock")
	}
}

func TestScanEndpoints(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "checkpoints", "model.safetensors")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, _ := newDaemon(t, testsupport.WithModelRoots(root))
	base := startDaemon(t, d)
	defer d.Stop()

	var status api.ScanStatus
	if code := getJSON(t, base+"/api/scan/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status.Active || status.Status != string(scanner.StatusIdle) {
		t.Fatalf("expected idle status, got %+v", status)
	}

	var started api.ScanStartResponse
	if code := postJSON(t, base+"/api/scan/start", api.ScanStartRequest{}, &started); code != http.StatusAccepted {
		t.Fatalf("start code %d", code)
	}
	if started.SessionID == "" || started.Total != 1 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if code := getJSON(t, base+"/api/scan/status", &status); code != http.StatusOK {
			t.Fatalf("status code %d", code)
		}
		if !status.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan did not finish: %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Status != string(scanner.StatusCompleted) || status.Current != 1 {
		t.Fatalf("unexpected terminal status: %+v", status)
	}

	var models api.ModelListResponse
	if code := getJSON(t, base+"/api/models", &models); code != http.StatusOK {
		t.Fatalf("models code %d", code)
	}
	if models.Count != 1 || models.Models[0].Category != "checkpoint" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestScanStartRejectsMissingRoots(t *testing.T) {
	d, _ := newDaemon(t, testsupport.WithModelRoots(filepath.Join(t.TempDir(), "absent")))
	base := startDaemon(t, d)
	defer d.Stop()

	code := postJSON(t, base+"/api/scan/start", api.ScanStartRequest{}, nil)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestCancelWithoutActiveScan(t *testing.T) {
	d, _ := newDaemon(t)
	base := startDaemon(t, d)
	defer d.Stop()

	var result map[string]bool
	if code := postJSON(t, base+"/api/scan/cancel", nil, &result); code != http.StatusOK {
		t.Fatalf("cancel code %d", code)
	}
	if result["cancelled"] {
		t.Fatal("nothing to cancel")
	}
}

func TestSettingsAndHealthEndpoints(t *testing.T) {
	d, cfg := newDaemon(t)
	base := startDaemon(t, d)
	defer d.Stop()

	var settings api.Settings
	if code := getJSON(t, base+"/api/settings", &settings); code != http.StatusOK {
		t.Fatalf("settings code %d", code)
	}
	if settings.CacheDir != cfg.Paths.CacheDir || settings.HasAPIKey {
		t.Fatalf("unexpected settings: %+v", settings)
	}

	var health api.CacheHealth
	if code := getJSON(t, base+"/api/health", &health); code != http.StatusOK {
		t.Fatalf("health code %d", code)
	}
	if !health.DatabaseExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestModelUsedEndpoint(t *testing.T) {
	d, _ := newDaemon(t)
	base := startDaemon(t, d)
	defer d.Stop()

	ctx := context.Background()
	path := "/models/loras/style.safetensors"
	if err := d.store.UpsertPath(ctx, modelcache.PathRecord{Path: path, Fingerprint: "fp-used"}); err != nil {
		t.Fatalf("seed path: %v", err)
	}
	if err := d.store.UpsertEntry(ctx, modelcache.Entry{Fingerprint: "fp-used", ModelName: "Style"}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	if code := postJSON(t, base+"/api/models/used", api.ModelUsedRequest{Path: path}, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	entry, found, err := d.store.LookupByFingerprint(ctx, "fp-used")
	if err != nil || !found {
		t.Fatalf("lookup after touch: found=%v err=%v", found, err)
	}
	if entry.LastUsedAt.IsZero() {
		t.Fatal("last-used timestamp was not recorded")
	}

	if code := postJSON(t, base+"/api/models/used", api.ModelUsedRequest{Path: "/models/absent.ckpt"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", code)
	}
	if code := postJSON(t, base+"/api/models/used", api.ModelUsedRequest{}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty path, got %d", code)
	}
}

func TestModelsQueryValidation(t *testing.T) {
	d, _ := newDaemon(t)
	base := startDaemon(t, d)
	defer d.Stop()

	if code := getJSON(t, base+"/api/models?category=nonsense", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", code)
	}
	if code := getJSON(t, fmt.Sprintf("%s/api/models?used_within=%s", base, "-5h"), nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative window, got %d", code)
	}
}
