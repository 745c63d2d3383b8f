package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/renderinc/ig2ghost/internal/config"
	"github.com/renderinc/ig2ghost/internal/ghost"
	"github.com/renderinc/ig2ghost/internal/instagram"
	"github.com/renderinc/ig2ghost/internal/logging"
	"github.com/renderinc/ig2ghost/internal/search"
	"github.com/renderinc/ig2ghost/internal/storage"
)

// errLocked is returned when another writer holds the run lock.
var errLocked = errors.New("another ig2ghost run holds the lock")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if err := initSentry(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return logging.WithRun(logger, cmd.Name()), nil
}

func (c *commandContext) openStore() (*storage.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open staging store: %w", err)
	}
	return db, nil
}

func (c *commandContext) openIndex() (*search.Index, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	idx, err := search.Open(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("open caption index: %w", err)
	}
	return idx, nil
}

func (c *commandContext) instagramClient() (*instagram.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireInstagram(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Instagram.TimeoutSeconds) * time.Second
	return instagram.NewClient(cfg.Instagram.BaseURL, cfg.Instagram.AccessToken, timeout), nil
}

func (c *commandContext) ghostClient() (*ghost.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireGhost(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Ghost.TimeoutSeconds) * time.Second
	client, err := ghost.NewClient(cfg.Ghost.URL, cfg.Ghost.AdminAPIKey, cfg.Ghost.RequestsPerSecond, timeout)
	if err != nil {
		return nil, fmt.Errorf("ghost client: %w", err)
	}
	return client, nil
}

// withLock runs fn while holding the single-writer lock on the data directory.
func (c *commandContext) withLock(logger *slog.Logger, fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (%s)", errLocked, cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", slog.String("error", err.Error()))
		}
	}()
	return fn()
}

func initSentry(cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// reportError sends a fatal error to Sentry when it was initialised.
func reportError(err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
