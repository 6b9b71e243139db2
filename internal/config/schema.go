package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Feed     FeedConfig     `yaml:"feed"`
	Replay   ReplayConfig   `yaml:"replay,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds journal database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig holds the definition/verb catalog directory settings
type CatalogConfig struct {
	Dir      string   `yaml:"dir"`
	Watch    *bool    `yaml:"watch,omitempty"`    // nil = watch when a dir is set
	Debounce Duration `yaml:"debounce,omitempty"` // reload debounce, default 500ms
}

// FeedConfig holds the host engine event log feed settings
type FeedConfig struct {
	Path         string   `yaml:"path,omitempty"`
	Follow       *bool    `yaml:"follow,omitempty"` // nil = follow
	PollInterval Duration `yaml:"poll_interval,omitempty"`
	Priority     int      `yaml:"priority,omitempty"`
}

// ReplayConfig holds batch replay settings (a recorded event log served once)
type ReplayConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
