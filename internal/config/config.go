// Package config provides configuration management for grimoire.
//
// The config file holds where things live (listen address, journal
// database, catalog directory, event feed); the database holds what the
// mirror has learned and can be wiped without touching the config.
//
// Config file locations (priority order):
//  1. $GRIMOIRE_CONFIG
//  2. ./grimoire.yaml
//  3. ~/.config/grimoire/config.yaml
//  4. /etc/grimoire/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Server:   ServerConfig{Addr: ":3000"},
		Database: DatabaseConfig{Path: "./grimoire.db"},
		Catalog:  CatalogConfig{},
		Feed:     FeedConfig{},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./grimoire.db"
	}
}

// WatchEnabled reports whether the catalog directory should be watched for
// changes. Defaults to true; meaningful only when a catalog dir is set.
func (c *Config) WatchEnabled() bool {
	if c.Catalog.Watch != nil {
		return *c.Catalog.Watch
	}
	return true
}

// FollowEnabled reports whether the event log should be tailed while the
// session runs. Defaults to true; meaningful only when a feed path is set.
func (c *Config) FollowEnabled() bool {
	if c.Feed.Follow != nil {
		return *c.Feed.Follow
	}
	return true
}

// EffectiveDebounce returns the catalog reload debounce (default 500ms)
func (c *Config) EffectiveDebounce() time.Duration {
	if c.Catalog.Debounce > 0 {
		return c.Catalog.Debounce.Duration()
	}
	return 500 * time.Millisecond
}

// EffectivePollInterval returns the feed poll interval (default 2s)
func (c *Config) EffectivePollInterval() time.Duration {
	if c.Feed.PollInterval > 0 {
		return c.Feed.PollInterval.Duration()
	}
	return 2 * time.Second
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Database: %s\n", c.Server.Addr, c.Database.Path)

	if c.Catalog.Dir != "" {
		summary += fmt.Sprintf("Catalog: %s (watch=%v, debounce=%s)\n",
			c.Catalog.Dir, c.WatchEnabled(), c.EffectiveDebounce())
	} else {
		summary += "Catalog: built-ins only\n"
	}

	if c.Feed.Path != "" {
		summary += fmt.Sprintf("Feed: %s (follow=%v, poll=%s)",
			c.Feed.Path, c.FollowEnabled(), c.EffectivePollInterval())
	} else {
		summary += "Feed: none"
	}
	if c.Replay.Path != "" {
		summary += fmt.Sprintf(", Replay: %s", c.Replay.Path)
	}

	return summary
}
