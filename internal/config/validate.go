package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateTags(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/salience/config.toml"
		}
		return fmt.Errorf("auth.jwt_secret is required. Set SALIENCE_JWT_SECRET env var or edit %s (create with 'salience config init')", defaultPath)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return errors.New("auth.token_ttl_hours must be positive")
	}
	return nil
}

func (c *Config) validateTags() error {
	const tagsPerSample = 4
	if c.Tags.TotalTags < tagsPerSample {
		return fmt.Errorf("tags.total_tags must be at least %d", tagsPerSample)
	}
	if c.Tags.MinDistance < 1 || c.Tags.MinDistance > tagsPerSample {
		return fmt.Errorf("tags.min_distance must be between 1 and %d", tagsPerSample)
	}
	if c.Tags.MinMatch < 1 || c.Tags.MinMatch > tagsPerSample {
		return fmt.Errorf("tags.min_match must be between 1 and %d", tagsPerSample)
	}
	if c.Tags.SearchPool < tagsPerSample {
		return fmt.Errorf("tags.search_pool must be at least %d", tagsPerSample)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
