package modelcache

import (
	"encoding/json"
	"errors"
	"time"

	"modelshelf/internal/classify"
)

// ErrEntryNotFound indicates no cached entry exists for a fingerprint.
var ErrEntryNotFound = errors.New("entry not found in cache")

// PathRecord is one scanned file path and its fingerprint linkage.
type PathRecord struct {
	Path           string
	Fingerprint    string
	FolderCategory classify.Category
	FileSize       int64
	ScannedAt      time.Time
}

// Entry is the cached enrichment record for a content fingerprint.
type Entry struct {
	Fingerprint     string
	Enrichment      json.RawMessage
	ModelName       string
	ModelType       string
	VersionID       int64
	VersionName     string
	UpdateAvailable bool
	Blacklisted     bool
	NotFoundCount   int
	LastUsedAt      time.Time
	RefreshedAt     time.Time
}

// Row pairs a path record with its entry, if any. Orphan cache entries
// (fingerprints whose paths vanished from disk) appear with an empty Path.
type Row struct {
	Path  PathRecord
	Entry *Entry
}

// DatabaseHealth captures diagnostic information about the cache database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	PathCount        int
	EntryCount       int
	BlacklistedCount int
	OrphanCount      int
	DatabaseBytes    int64
	FreeDiskBytes    uint64
	Error            string
}
