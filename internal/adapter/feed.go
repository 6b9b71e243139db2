package adapter

import (
	"context"

	"grimoire/internal/engine"
)

// FeedType defines how a feed produces events
type FeedType string

const (
	// FeedTypePolling - feed is drained on a schedule while the session runs
	FeedTypePolling FeedType = "polling"
	// FeedTypeOneShot - manual trigger only (e.g. batch replay)
	FeedTypeOneShot FeedType = "oneshot"
)

// FeedConfig holds configuration for a feed instance
type FeedConfig struct {
	// Enabled determines if the feed should run
	Enabled bool `json:"enabled"`
	// Priority orders feeds when several are drained together (higher first)
	Priority int `json:"priority"`
	// PollInterval for polling feeds (e.g. "2s", "1m")
	PollInterval string `json:"poll_interval,omitempty"`
}

// Feed defines the interface for host engine event sources
type Feed interface {
	// Name returns the unique identifier for this feed
	Name() string

	// Type returns how this feed produces events
	Type() FeedType

	// Start initializes the feed (called once on startup)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the feed
	Stop() error

	// Sync drains the feed, returning the events that arrived since the
	// previous call in the order the host engine emitted them
	Sync(ctx context.Context) ([]engine.Event, error)
}
