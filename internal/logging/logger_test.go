package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewJSONLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := New(Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("scan started", String(FieldSessionID, "session-1"), Int("total", 3))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("parse log line %q: %v", line, err)
	}
	if entry["msg"] != "scan started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry[FieldSessionID] != "session-1" {
		t.Fatalf("missing session id: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts: %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestComponentLoggerCarriesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	base, err := New(Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	NewComponentLogger(base, "scanner").Info("hello")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entry[FieldComponent] != "scanner" {
		t.Fatalf("missing component: %v", entry)
	}
}

func TestErrorAttrHandlesNil(t *testing.T) {
	attr := Error(nil)
	if attr.Key != "error" {
		t.Fatalf("unexpected key %q", attr.Key)
	}
	attr = Error(errors.New("boom"))
	if got := attr.Value.String(); got != "boom" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("ignored", String("key", "value"))
	logger.Error("also ignored")
}
