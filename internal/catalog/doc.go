// Package catalog implements the rate-limited client for the remote model
// catalog. Lookups are keyed by content fingerprint; the client enforces a
// minimum delay between consecutive requests because the provider throttles
// aggressive callers, and retries transient failures with capped backoff.
package catalog
