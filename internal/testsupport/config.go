// Package testsupport provides shared helpers for configuring and seeding
// tests across the repository.
package testsupport

import (
	"path/filepath"
	"testing"

	"salience/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "testsupport-signing-secret"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithTags overrides the tag family constants on the test config.
func WithTags(totalTags, minDistance, minMatch int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tags.TotalTags = totalTags
		cfg.Tags.MinDistance = minDistance
		cfg.Tags.MinMatch = minMatch
	}
}
