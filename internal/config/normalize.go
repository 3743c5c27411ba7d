package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAuth()
	c.normalizeTags()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeAuth() {
	if secret, ok := os.LookupEnv("SALIENCE_JWT_SECRET"); ok && strings.TrimSpace(secret) != "" {
		c.Auth.JWTSecret = strings.TrimSpace(secret)
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaultTokenTTLHours
	}
}

func (c *Config) normalizeTags() {
	if c.Tags.TotalTags <= 0 {
		c.Tags.TotalTags = defaultTotalTags
	}
	if c.Tags.MinDistance <= 0 {
		c.Tags.MinDistance = defaultMinDistance
	}
	if c.Tags.MinMatch <= 0 {
		c.Tags.MinMatch = defaultMinMatch
	}
	if c.Tags.SearchPool <= 0 {
		c.Tags.SearchPool = defaultSearchPool
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
