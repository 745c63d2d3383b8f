package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Instagram contains Graph API settings.
type Instagram struct {
	AccessToken    string `toml:"access_token"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Ghost contains Admin API settings for the destination blog.
type Ghost struct {
	URL               string `toml:"url"`
	AdminAPIKey       string `toml:"admin_api_key"`
	AuthorEmail       string `toml:"author_email"`
	RequestsPerSecond int    `toml:"requests_per_second"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Database selects the staging store backend.
type Database struct {
	Driver string `toml:"driver"` // "sqlite3" or "postgres"
	DSN    string `toml:"dsn"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Sentry enables fatal error reporting when DSN is set.
type Sentry struct {
	DSN         string `toml:"dsn"`
	Environment string `toml:"environment"`
}

// Config encapsulates all configuration values for ig2ghost.
type Config struct {
	DataDir       string `toml:"data_dir"`
	ScratchDir    string `toml:"scratch_dir"`
	ScratchNaming string `toml:"scratch_naming"`

	Instagram Instagram `toml:"instagram"`
	Ghost     Ghost     `toml:"ghost"`
	Database  Database  `toml:"database"`
	Logging   Logging   `toml:"logging"`
	Sentry    Sentry    `toml:"sentry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ig2ghost/config.toml")
}

// Load locates and parses a configuration file, applies .env and environment
// overrides, and normalizes paths. Command-specific requirements are checked
// separately through the Require* methods.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// .env is optional
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ig2ghost.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"IG2GHOST_INSTAGRAM_TOKEN", &c.Instagram.AccessToken},
		{"IG2GHOST_GHOST_URL", &c.Ghost.URL},
		{"IG2GHOST_GHOST_ADMIN_KEY", &c.Ghost.AdminAPIKey},
		{"IG2GHOST_AUTHOR_EMAIL", &c.Ghost.AuthorEmail},
		{"IG2GHOST_DATABASE_DRIVER", &c.Database.Driver},
		{"IG2GHOST_DATABASE_DSN", &c.Database.DSN},
		{"SENTRY_DSN", &c.Sentry.DSN},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

// EnsureDirectories creates the data and scratch directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the file guarding the staging store against concurrent writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "ig2ghost.lock")
}

// IndexPath is the caption index location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "bleve")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
