// Package daemon coordinates the long-running modelshelf process.
//
// It wires configuration, the cache store, the scan orchestrator, and the
// filesystem watcher into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon exposes the scan, library, and
// maintenance operations consumed by the IPC and HTTP API layers.
//
// Keep orchestration logic here: scanning semantics live in the scanner
// package while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
