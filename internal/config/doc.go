// Package config loads, normalizes, and validates the TOML configuration
// shared by the salience CLI and daemon.
package config
