// Package modelcache persists the durable model metadata cache: the mapping
// from file path to content fingerprint, and from fingerprint to the
// enrichment record fetched from the remote catalog. SQLite is the backing
// store so entries survive restarts and each upsert is atomic from a
// concurrent reader's perspective.
package modelcache
