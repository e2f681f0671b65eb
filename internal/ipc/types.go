package ipc

import "modelshelf/internal/api"

// ScanStatus mirrors the HTTP API scan DTO for IPC callers.
type ScanStatus = api.ScanStatus

// ModelRecord mirrors the HTTP API library row DTO.
type ModelRecord = api.ModelRecord

// CacheHealth mirrors the HTTP API cache diagnostics DTO.
type CacheHealth = api.CacheHealth

// Settings mirrors the HTTP API settings DTO.
type Settings = api.Settings

// ScanStartRequest begins a scan session.
type ScanStartRequest struct {
	Folders       []string `json:"folders"`
	Force         bool     `json:"force"`
	IncludeCached bool     `json:"include_cached"`
}

// ScanStartResponse reports the created session, or the refusal reason.
type ScanStartResponse struct {
	Started   bool   `json:"started"`
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// ScanStatusRequest fetches scan progress.
type ScanStatusRequest struct{}

// ScanStatusResponse carries the progress snapshot.
type ScanStatusResponse struct {
	Scan ScanStatus `json:"scan"`
}

// ScanCancelRequest requests cancellation of the active scan.
type ScanCancelRequest struct{}

// ScanCancelResponse reports whether a session was cancelled.
type ScanCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ScanAcknowledgeRequest clears a finished session.
type ScanAcknowledgeRequest struct{}

// ScanAcknowledgeResponse reports whether a session was cleared.
type ScanAcknowledgeResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// ModelsListRequest filters and sorts the merged library view.
type ModelsListRequest struct {
	Search             string `json:"search"`
	Category           string `json:"category"`
	UsedWithinHours    int    `json:"used_within_hours"`
	UpdatesOnly        bool   `json:"updates_only"`
	IncludeBlacklisted bool   `json:"include_blacklisted"`
	Sort               string `json:"sort"`
	Descending         bool   `json:"descending"`
}

// ModelsListResponse contains the merged library rows.
type ModelsListResponse struct {
	Models []ModelRecord `json:"models"`
}

// CacheHealthRequest fetches cache database diagnostics.
type CacheHealthRequest struct{}

// CacheHealthResponse carries cache database diagnostics.
type CacheHealthResponse struct {
	Health CacheHealth `json:"health"`
}

// CacheClearRequest removes all cached paths and entries.
type CacheClearRequest struct{}

// CacheClearResponse reports the number of removed path records.
type CacheClearResponse struct {
	Removed int64 `json:"removed"`
}

// CachePruneRequest removes path records for files missing on disk.
type CachePruneRequest struct{}

// CachePruneResponse reports the number of pruned path records.
type CachePruneResponse struct {
	Pruned int64 `json:"pruned"`
}

// SettingsRequest fetches the effective configuration.
type SettingsRequest struct{}

// SettingsResponse carries the effective configuration.
type SettingsResponse struct {
	Settings Settings `json:"settings"`
}

// StatusRequest fetches daemon runtime information.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running        bool       `json:"running"`
	PID            int        `json:"pid"`
	DatabasePath   string     `json:"database_path"`
	LockPath       string     `json:"lock_path"`
	ChangesPending bool       `json:"changes_pending"`
	Scan           ScanStatus `json:"scan"`
}

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse confirms daemon liveness.
type PingResponse struct {
	PID int `json:"pid"`
}
