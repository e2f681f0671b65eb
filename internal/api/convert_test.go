package api

import (
	"testing"
	"time"

	"modelshelf/internal/browse"
	"modelshelf/internal/classify"
	"modelshelf/internal/config"
	"modelshelf/internal/scanner"
)

func TestFromSnapshotFormatsTimestamps(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	snap := scanner.Snapshot{
		SessionID:  "session-1",
		Active:     true,
		Status:     scanner.StatusHashing,
		Current:    3,
		Total:      10,
		ErrorCount: 1,
		StartedAt:  started,
	}

	dto := FromSnapshot(snap)
	if dto.Status != "hashing" || !dto.Active {
		t.Fatalf("unexpected status: %+v", dto)
	}
	if dto.StartedAt != "2026-03-14T09:26:53.589Z" {
		t.Fatalf("unexpected startedAt: %q", dto.StartedAt)
	}
	if dto.FinishedAt != "" {
		t.Fatalf("finishedAt should be empty for active session, got %q", dto.FinishedAt)
	}
}

func TestFromModelsPreservesOrder(t *testing.T) {
	models := []browse.Model{
		{Path: "/a", Name: "a", Category: classify.CategoryCheckpoint, OnDisk: true},
		{Path: "/b", Name: "b", Category: classify.CategoryLoRA, Cached: true, Blacklisted: true},
	}
	resp := FromModels(models)
	if resp.Count != 2 || len(resp.Models) != 2 {
		t.Fatalf("unexpected count: %+v", resp)
	}
	if resp.Models[0].Path != "/a" || resp.Models[1].Path != "/b" {
		t.Fatalf("order not preserved: %+v", resp.Models)
	}
	if resp.Models[1].Category != "lora" || !resp.Models[1].Blacklisted {
		t.Fatalf("record fields wrong: %+v", resp.Models[1])
	}
}

func TestFromConfigRedactsAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.APIKey = "secret-token"
	cfg.Paths.ModelRoots = []string{"/models"}

	settings := FromConfig(&cfg)
	if !settings.HasAPIKey {
		t.Fatal("expected HasAPIKey to be set")
	}
	if settings.CatalogBaseURL == "" {
		t.Fatal("expected catalog base URL")
	}
	settings.ModelRoots[0] = "/mutated"
	if cfg.Paths.ModelRoots[0] != "/models" {
		t.Fatal("settings should not alias config slices")
	}
}
