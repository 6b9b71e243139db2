package adapter

import (
	"context"
	"sync"

	"grimoire/internal/engine"
)

// BatchFeed serves a fixed batch of events exactly once. It backs replay
// and seeding, where a recorded session is pushed through the mirror on
// demand.
type BatchFeed struct {
	name string

	mu     sync.Mutex
	events []engine.Event
	served bool
}

// NewBatchFeed creates a oneshot feed over events. The slice is used as
// given; callers must not mutate it afterwards.
func NewBatchFeed(name string, events []engine.Event) *BatchFeed {
	return &BatchFeed{name: name, events: events}
}

// Name returns the feed identifier
func (b *BatchFeed) Name() string { return b.name }

// Type is always oneshot
func (b *BatchFeed) Type() FeedType { return FeedTypeOneShot }

// Start does nothing; the batch is already in memory
func (b *BatchFeed) Start(ctx context.Context) error { return nil }

// Stop does nothing
func (b *BatchFeed) Stop() error { return nil }

// Sync returns the batch on the first call and nothing afterwards
func (b *BatchFeed) Sync(ctx context.Context) ([]engine.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.served {
		return nil, nil
	}
	b.served = true
	return b.events, nil
}
