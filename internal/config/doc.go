// Package config loads, normalizes, and validates modelshelf configuration
// from TOML. All path fields are tilde-expanded and absolute after Load.
package config
