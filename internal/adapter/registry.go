package adapter

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"grimoire/internal/engine"
)

// DeliverFunc is called with each drained event, attributed to the feed
// it came from. Delivery order within one sync matches emission order.
type DeliverFunc func(source string, ev engine.Event)

// Registry manages all registered feeds and their lifecycle
type Registry struct {
	mu      sync.RWMutex
	feeds   map[string]Feed
	configs map[string]FeedConfig
	deliver DeliverFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRegistry creates a new feed registry
func NewRegistry(deliver DeliverFunc) *Registry {
	return &Registry{
		feeds:   make(map[string]Feed),
		configs: make(map[string]FeedConfig),
		deliver: deliver,
	}
}

// Register adds a feed to the registry
func (r *Registry) Register(feed Feed, config FeedConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := feed.Name()
	if name == "" {
		return fmt.Errorf("feed has no name")
	}
	if _, exists := r.feeds[name]; exists {
		return fmt.Errorf("feed %s already registered", name)
	}

	r.feeds[name] = feed
	r.configs[name] = config
	log.Printf("Registered feed: %s (type=%s, priority=%d, enabled=%v)",
		name, feed.Type(), config.Priority, config.Enabled)

	return nil
}

// Start initializes all enabled feeds and begins their polling cycles
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)

	for _, name := range r.orderedNames() {
		feed := r.feeds[name]
		config := r.configs[name]
		if !config.Enabled {
			log.Printf("Feed %s is disabled, skipping", name)
			continue
		}

		if err := feed.Start(r.ctx); err != nil {
			log.Printf("Failed to start feed %s: %v", name, err)
			continue
		}

		if feed.Type() == FeedTypePolling {
			r.startPollingLoop(name, feed, config)
		}
	}

	return nil
}

// Stop gracefully shuts down all feeds
func (r *Registry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	// Wait for all polling loops to finish
	r.wg.Wait()

	for name, feed := range r.feeds {
		if err := feed.Stop(); err != nil {
			log.Printf("Error stopping feed %s: %v", name, err)
		}
	}

	return nil
}

// TriggerSync manually drains a specific feed
func (r *Registry) TriggerSync(ctx context.Context, name string) error {
	r.mu.RLock()
	feed, exists := r.feeds[name]
	config := r.configs[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("feed %s not found", name)
	}

	if !config.Enabled {
		return fmt.Errorf("feed %s is disabled", name)
	}

	return r.runSync(ctx, name, feed)
}

// TriggerSyncAll manually drains every enabled feed, highest priority
// first
func (r *Registry) TriggerSyncAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.orderedNames() {
		config := r.configs[name]
		if !config.Enabled {
			continue
		}

		if err := r.runSync(ctx, name, r.feeds[name]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("sync errors: %v", errs)
	}
	return nil
}

// ListFeeds returns information about registered feeds, highest priority
// first
func (r *Registry) ListFeeds() []FeedInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]FeedInfo, 0, len(r.feeds))
	for _, name := range r.orderedNames() {
		feed := r.feeds[name]
		config := r.configs[name]
		infos = append(infos, FeedInfo{
			Name:         name,
			Type:         feed.Type(),
			Priority:     config.Priority,
			Enabled:      config.Enabled,
			PollInterval: config.PollInterval,
		})
	}
	return infos
}

// FeedInfo provides read-only information about a feed
type FeedInfo struct {
	Name         string   `json:"name"`
	Type         FeedType `json:"type"`
	Priority     int      `json:"priority"`
	Enabled      bool     `json:"enabled"`
	PollInterval string   `json:"poll_interval,omitempty"`
}

// orderedNames returns feed names sorted by priority (higher first), then
// name. Callers must hold at least a read lock.
func (r *Registry) orderedNames() []string {
	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	sort.Slice(names, func(i, k int) bool {
		pi, pk := r.configs[names[i]].Priority, r.configs[names[k]].Priority
		if pi != pk {
			return pi > pk
		}
		return names[i] < names[k]
	})
	return names
}

// startPollingLoop starts a goroutine that drains the feed on schedule
func (r *Registry) startPollingLoop(name string, feed Feed, config FeedConfig) {
	interval, err := time.ParseDuration(config.PollInterval)
	if err != nil || interval <= 0 {
		log.Printf("Invalid poll interval for %s (%q), using 2s default", name, config.PollInterval)
		interval = 2 * time.Second
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		// Run initial sync
		if err := r.runSync(r.ctx, name, feed); err != nil {
			log.Printf("Initial sync failed for %s: %v", name, err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				log.Printf("Stopping polling loop for %s", name)
				return
			case <-ticker.C:
				if err := r.runSync(r.ctx, name, feed); err != nil {
					log.Printf("Sync failed for %s: %v", name, err)
				}
			}
		}
	}()

	log.Printf("Started polling loop for %s (interval=%s)", name, interval)
}

// runSync drains a feed once and delivers the events in order
func (r *Registry) runSync(ctx context.Context, name string, feed Feed) error {
	events, err := feed.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		r.deliver(name, ev)
	}

	log.Printf("Feed %s delivered %d events", name, len(events))
	return nil
}
