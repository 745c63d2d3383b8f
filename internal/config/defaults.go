package config

import (
	"path/filepath"
	"strings"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	// ScratchNamingMediaID names scratch files after the media id.
	ScratchNamingMediaID = "media-id"
	// ScratchNamingURL names scratch files after the last URL path segment.
	// Distinct sources sharing that segment collide.
	ScratchNamingURL = "url"

	defaultDataDir = "./data"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DataDir:       defaultDataDir,
		ScratchNaming: ScratchNamingMediaID,
		Instagram: Instagram{
			BaseURL:        "https://graph.instagram.com",
			TimeoutSeconds: 30,
		},
		Ghost: Ghost{
			RequestsPerSecond: 5,
			TimeoutSeconds:    60,
		},
		Database: Database{
			Driver: DriverSQLite,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

func (c *Config) normalize() error {
	var err error
	if c.DataDir, err = expandPath(strings.TrimSpace(c.DataDir)); err != nil {
		return err
	}
	if strings.TrimSpace(c.ScratchDir) == "" {
		c.ScratchDir = filepath.Join(c.DataDir, "ig-images")
	}
	if c.ScratchDir, err = expandPath(strings.TrimSpace(c.ScratchDir)); err != nil {
		return err
	}

	c.ScratchNaming = strings.ToLower(strings.TrimSpace(c.ScratchNaming))
	if c.ScratchNaming == "" {
		c.ScratchNaming = ScratchNamingMediaID
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Driver == "" || c.Database.Driver == "sqlite" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "staging.db")
	}

	c.Instagram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Instagram.BaseURL), "/")
	c.Ghost.URL = strings.TrimRight(strings.TrimSpace(c.Ghost.URL), "/")
	return nil
}
