package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver: unsupported value %q (supported: sqlite3, postgres)", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set for the postgres driver")
	}
	switch c.ScratchNaming {
	case ScratchNamingMediaID, ScratchNamingURL:
	default:
		return fmt.Errorf("scratch_naming: unsupported value %q (supported: media-id, url)", c.ScratchNaming)
	}
	if c.Ghost.RequestsPerSecond < 0 {
		return errors.New("ghost.requests_per_second must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// RequireInstagram checks the settings needed to ingest.
func (c *Config) RequireInstagram() error {
	if strings.TrimSpace(c.Instagram.AccessToken) == "" {
		return errors.New("instagram.access_token is required. Set IG2GHOST_INSTAGRAM_TOKEN or edit the config file (create with 'ig2ghost config init')")
	}
	return nil
}

// RequireGhost checks the settings needed to talk to the Admin API.
func (c *Config) RequireGhost() error {
	if c.Ghost.URL == "" {
		return errors.New("ghost.url is required. Set IG2GHOST_GHOST_URL or edit the config file")
	}
	if strings.TrimSpace(c.Ghost.AdminAPIKey) == "" {
		return errors.New("ghost.admin_api_key is required. Set IG2GHOST_GHOST_ADMIN_KEY or edit the config file")
	}
	if !strings.Contains(c.Ghost.AdminAPIKey, ":") {
		return errors.New("ghost.admin_api_key must have the form <id>:<secret>")
	}
	return nil
}

// RequireAuthor checks the author identity used for created and reassigned posts.
func (c *Config) RequireAuthor() error {
	if strings.TrimSpace(c.Ghost.AuthorEmail) == "" {
		return errors.New("ghost.author_email is required. Set IG2GHOST_AUTHOR_EMAIL or edit the config file")
	}
	return nil
}
