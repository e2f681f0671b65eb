// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal scanner and cache models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// ScanStatus: transport representation of a scan session with counts,
// per-file errors, and lifecycle status.
//
// ModelRecord: one merged library row combining filesystem presence and
// cached enrichment.
//
// CacheHealth: cache database diagnostics.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (scanner.Status,
// classify.Category) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
