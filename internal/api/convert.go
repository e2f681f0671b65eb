package api

import (
	"modelshelf/internal/browse"
	"modelshelf/internal/config"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
)

// FromSnapshot converts a scan session snapshot to its API representation.
func FromSnapshot(snap scanner.Snapshot) ScanStatus {
	dto := ScanStatus{
		SessionID:   snap.SessionID,
		Active:      snap.Active,
		Status:      string(snap.Status),
		Current:     snap.Current,
		Total:       snap.Total,
		CurrentFile: snap.CurrentFile,
		ErrorCount:  snap.ErrorCount,
		FatalError:  snap.FatalError,
	}
	if !snap.StartedAt.IsZero() {
		dto.StartedAt = snap.StartedAt.UTC().Format(dateTimeFormat)
	}
	if !snap.FinishedAt.IsZero() {
		dto.FinishedAt = snap.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromModel converts a merged library record into its API representation.
func FromModel(model browse.Model) ModelRecord {
	dto := ModelRecord{
		Path:            model.Path,
		Name:            model.Name,
		Fingerprint:     model.Fingerprint,
		Category:        string(model.Category),
		SizeBytes:       model.SizeBytes,
		OnDisk:          model.OnDisk,
		Cached:          model.Cached,
		ModelName:       model.ModelName,
		ModelType:       model.ModelType,
		VersionName:     model.VersionName,
		UpdateAvailable: model.UpdateAvailable,
		Blacklisted:     model.Blacklisted,
	}
	if !model.LastUsedAt.IsZero() {
		dto.LastUsedAt = model.LastUsedAt.UTC().Format(dateTimeFormat)
	}
	if !model.ScannedAt.IsZero() {
		dto.ScannedAt = model.ScannedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromModels converts a slice of library records into API DTOs.
func FromModels(models []browse.Model) ModelListResponse {
	out := make([]ModelRecord, 0, len(models))
	for _, model := range models {
		out = append(out, FromModel(model))
	}
	return ModelListResponse{Models: out, Count: len(out)}
}

// FromHealth converts cache diagnostics into the API payload.
func FromHealth(health modelcache.DatabaseHealth) CacheHealth {
	return CacheHealth{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		IntegrityCheck:   health.IntegrityCheck,
		PathCount:        health.PathCount,
		EntryCount:       health.EntryCount,
		BlacklistedCount: health.BlacklistedCount,
		OrphanCount:      health.OrphanCount,
		DatabaseBytes:    health.DatabaseBytes,
		FreeDiskBytes:    health.FreeDiskBytes,
		Error:            health.Error,
	}
}

// FromConfig exposes the effective settings with the API key redacted to a
// presence flag.
func FromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	roots := make([]string, len(cfg.Paths.ModelRoots))
	copy(roots, cfg.Paths.ModelRoots)
	return Settings{
		ModelRoots:     roots,
		CacheDir:       cfg.Paths.CacheDir,
		LogDir:         cfg.Paths.LogDir,
		APIBind:        cfg.Paths.APIBind,
		CatalogEnabled: cfg.Catalog.Enabled,
		CatalogBaseURL: cfg.Catalog.BaseURL,
		HasAPIKey:      cfg.Catalog.APIKey != "",
		WatcherEnabled: cfg.Watcher.Enabled,
	}
}
