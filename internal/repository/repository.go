package repository

import (
	"context"
	"time"

	"grimoire/internal/domain"
	"grimoire/internal/engine"
)

// StoredEvent is one ingested host engine event as the journal keeps it
type StoredEvent struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	Event      engine.Event `json:"event"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Journal defines the persistence boundary. The in-memory knowledge base
// is authoritative; journaling is best effort and read back only for the
// HTTP surface and post-session analysis.
type Journal interface {
	// Write operations, called by the knowledge base and the mirror
	SaveDefinition(ctx context.Context, def *domain.Definition) error
	SaveInstance(ctx context.Context, in *domain.Instance) error
	ArchiveInstance(ctx context.Context, c domain.Canonical) error
	RecordExecution(ctx context.Context, ex *domain.Execution) error
	RecordEvent(ctx context.Context, source string, ev engine.Event) error
	RecordDivergence(ctx context.Context, d *domain.Divergence) error

	// Read operations, serving the HTTP surface
	RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error)
	Executions(ctx context.Context, verb string, limit int) ([]*domain.Execution, error)
	Divergences(ctx context.Context, limit int) ([]*domain.Divergence, error)
	ArchivedInstances(ctx context.Context, class string, limit int) ([]domain.Canonical, error)

	// Close releases resources
	Close() error
}
