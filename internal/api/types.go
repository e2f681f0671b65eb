package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ScanStatus describes a scan session in a transport-friendly format.
type ScanStatus struct {
	SessionID   string `json:"sessionId,omitempty"`
	Active      bool   `json:"active"`
	Status      string `json:"status"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentFile string `json:"currentFile,omitempty"`
	ErrorCount  int    `json:"errorCount"`
	FatalError  string `json:"fatalError,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
	FinishedAt  string `json:"finishedAt,omitempty"`
}

// ScanStartRequest carries the options for starting a scan.
type ScanStartRequest struct {
	Folders       []string `json:"folders,omitempty"`
	Force         bool     `json:"force"`
	IncludeCached bool     `json:"includeCached"`
}

// ScanStartResponse reports the session created for an accepted scan.
type ScanStartResponse struct {
	SessionID string `json:"sessionId"`
	Total     int    `json:"total"`
}

// ModelUsedRequest identifies the model file the host application just used.
type ModelUsedRequest struct {
	Path string `json:"path"`
}

// ModelRecord is one merged library row.
type ModelRecord struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Fingerprint     string `json:"fingerprint,omitempty"`
	Category        string `json:"category"`
	SizeBytes       int64  `json:"sizeBytes"`
	OnDisk          bool   `json:"onDisk"`
	Cached          bool   `json:"cached"`
	ModelName       string `json:"modelName,omitempty"`
	ModelType       string `json:"modelType,omitempty"`
	VersionName     string `json:"versionName,omitempty"`
	UpdateAvailable bool   `json:"updateAvailable"`
	Blacklisted     bool   `json:"blacklisted"`
	LastUsedAt      string `json:"lastUsedAt,omitempty"`
	ScannedAt       string `json:"scannedAt,omitempty"`
}

// ModelListResponse wraps a collection of library rows.
type ModelListResponse struct {
	Models []ModelRecord `json:"models"`
	Count  int           `json:"count"`
}

// CacheHealth reports cache database diagnostics.
type CacheHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    int    `json:"schemaVersion"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	PathCount        int    `json:"pathCount"`
	EntryCount       int    `json:"entryCount"`
	BlacklistedCount int    `json:"blacklistedCount"`
	OrphanCount      int    `json:"orphanCount"`
	DatabaseBytes    int64  `json:"databaseBytes"`
	FreeDiskBytes    uint64 `json:"freeDiskBytes"`
	Error            string `json:"error,omitempty"`
}

// Settings exposes the effective daemon configuration with secrets redacted.
type Settings struct {
	ModelRoots     []string `json:"modelRoots"`
	CacheDir       string   `json:"cacheDir"`
	LogDir         string   `json:"logDir"`
	APIBind        string   `json:"apiBind"`
	CatalogEnabled bool     `json:"catalogEnabled"`
	CatalogBaseURL string   `json:"catalogBaseUrl"`
	HasAPIKey      bool     `json:"hasApiKey"`
	WatcherEnabled bool     `json:"watcherEnabled"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool       `json:"running"`
	PID            int        `json:"pid"`
	DatabasePath   string     `json:"databasePath"`
	LockFilePath   string     `json:"lockFilePath"`
	ChangesPending bool       `json:"changesPending"`
	Scan           ScanStatus `json:"scan"`
}
