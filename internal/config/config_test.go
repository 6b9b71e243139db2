package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Server.Addr = %s, want :3000", cfg.Server.Addr)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should not be empty")
	}
	if cfg.Catalog.Dir != "" {
		t.Errorf("Catalog.Dir = %s, want empty (built-ins only)", cfg.Catalog.Dir)
	}

	// Watch and follow default on when left unset
	if !cfg.WatchEnabled() {
		t.Error("WatchEnabled() should default to true")
	}
	if !cfg.FollowEnabled() {
		t.Error("FollowEnabled() should default to true")
	}
}

func TestApplyDefaultsOnLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Partial file: only the catalog dir is set
	partial := "catalog:\n  dir: ./spells\n"
	if err := os.WriteFile(configPath, []byte(partial), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, _, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1 (default)", cfg.Version)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Server.Addr = %s, want :3000 (default)", cfg.Server.Addr)
	}
	if cfg.Database.Path != "./grimoire.db" {
		t.Errorf("Database.Path = %s, want ./grimoire.db (default)", cfg.Database.Path)
	}
	if cfg.Catalog.Dir != "./spells" {
		t.Errorf("Catalog.Dir = %s, want ./spells", cfg.Catalog.Dir)
	}
}

func TestEffectiveDurations(t *testing.T) {
	cfg := DefaultConfig()

	// Defaults
	if got := cfg.EffectiveDebounce(); got != 500*time.Millisecond {
		t.Errorf("EffectiveDebounce() = %s, want 500ms", got)
	}
	if got := cfg.EffectivePollInterval(); got != 2*time.Second {
		t.Errorf("EffectivePollInterval() = %s, want 2s", got)
	}

	// Explicit values win
	cfg.Catalog.Debounce = Duration(50 * time.Millisecond)
	cfg.Feed.PollInterval = Duration(10 * time.Second)

	if got := cfg.EffectiveDebounce(); got != 50*time.Millisecond {
		t.Errorf("EffectiveDebounce() = %s, want 50ms", got)
	}
	if got := cfg.EffectivePollInterval(); got != 10*time.Second {
		t.Errorf("EffectivePollInterval() = %s, want 10s", got)
	}
}

func TestWatchAndFollowOverrides(t *testing.T) {
	cfg := DefaultConfig()

	off := false
	cfg.Catalog.Watch = &off
	if cfg.WatchEnabled() {
		t.Error("WatchEnabled() should honor explicit false")
	}

	cfg.Feed.Follow = &off
	if cfg.FollowEnabled() {
		t.Error("FollowEnabled() should honor explicit false")
	}

	on := true
	cfg.Catalog.Watch = &on
	if !cfg.WatchEnabled() {
		t.Error("WatchEnabled() should honor explicit true")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":4000"
	cfg.Catalog.Dir = "./spells"
	cfg.Catalog.Debounce = Duration(250 * time.Millisecond)
	cfg.Feed.Path = "./session.jsonl"
	follow := false
	cfg.Feed.Follow = &follow

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}

	if loaded.Server.Addr != ":4000" {
		t.Errorf("Server.Addr = %s, want :4000", loaded.Server.Addr)
	}
	if loaded.Catalog.Dir != "./spells" {
		t.Errorf("Catalog.Dir = %s, want ./spells", loaded.Catalog.Dir)
	}
	if loaded.EffectiveDebounce() != 250*time.Millisecond {
		t.Errorf("EffectiveDebounce() = %s, want 250ms", loaded.EffectiveDebounce())
	}
	if loaded.Feed.Path != "./session.jsonl" {
		t.Errorf("Feed.Path = %s, want ./session.jsonl", loaded.Feed.Path)
	}
	if loaded.FollowEnabled() {
		t.Error("FollowEnabled() should survive a save/load round trip")
	}
}

func TestLoadErrors(t *testing.T) {
	tmpDir := t.TempDir()

	if _, _, err := LoadFromPath(filepath.Join(tmpDir, "absent.yaml")); err == nil {
		t.Error("LoadFromPath() should fail for a missing file")
	}

	badPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(badPath, []byte("server: [:::"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, _, err := LoadFromPath(badPath); err == nil {
		t.Error("LoadFromPath() should fail for unparseable YAML")
	}

	badDuration := filepath.Join(tmpDir, "duration.yaml")
	if err := os.WriteFile(badDuration, []byte("catalog:\n  debounce: fast\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if _, _, err := LoadFromPath(badDuration); err == nil {
		t.Error("LoadFromPath() should fail for an unparseable duration")
	}
}

func TestFindConfigPath(t *testing.T) {
	// Create temp directory with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Set working directory to temp
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	// Should find config in working directory
	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Should prefer explicit env var
	os.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	defer os.Unsetenv(EnvConfigPath)

	// Explicit path doesn't exist, should fall back
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	// Test YAML marshaling
	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}
