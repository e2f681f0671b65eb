// Package scanner runs the model scan state machine: it walks configured
// folders, fingerprints files, reconciles the cache, and fetches enrichment
// metadata from the catalog, all within a single cancellable session. At
// most one session is active at a time; progress is exposed as a cheap
// read-only snapshot suitable for 1 Hz polling.
package scanner
