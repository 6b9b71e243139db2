package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"grimoire/internal/domain"
	"grimoire/internal/engine"
	"grimoire/internal/repository"
)

// ============================================================================
// Timestamp Helpers
// ============================================================================

// formatTime renders t as RFC 3339 UTC text for storage
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored RFC 3339 timestamp
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ============================================================================
// Definition Serialization
// ============================================================================

// definitionRecord is the stored JSON form of a class definition. Live
// definitions are rebuilt from the catalog at boot, so the record keeps
// domain constraints as descriptions only.
type definitionRecord struct {
	Class       string           `json:"class"`
	Description string           `json:"description,omitempty"`
	Properties  []propertyRecord `json:"properties"`
	Required    []string         `json:"required,omitempty"`
}

// propertyRecord is one property prototype inside a definitionRecord
type propertyRecord struct {
	Name    string `json:"name"`
	Default any    `json:"default"`
	Domain  string `json:"domain,omitempty"`
}

// newDefinitionRecord flattens a definition into its stored form
func newDefinitionRecord(def *domain.Definition) definitionRecord {
	names := def.PropertyNames()
	rec := definitionRecord{
		Class:       def.Class(),
		Description: def.Description(),
		Properties:  make([]propertyRecord, 0, len(names)),
		Required:    def.Required(),
	}
	for _, name := range names {
		p, ok := def.Prototype(name)
		if !ok {
			continue
		}
		pr := propertyRecord{Name: name, Default: p.Value()}
		if p.Domain != nil {
			pr.Domain = p.Domain.Describe()
		}
		rec.Properties = append(rec.Properties, pr)
	}
	return rec
}

// ============================================================================
// Event Row Scanner
// ============================================================================

// eventRow holds all columns from an events query for scanning
type eventRow struct {
	ID         int64
	Source     string
	DataJSON   []byte
	ReceivedAt string
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match the SELECT column order: id, source, data, received_at
func (r *eventRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.Source,
		&r.DataJSON,
		&r.ReceivedAt,
	}
}

// toStored converts the scanned row to a repository.StoredEvent
func (r *eventRow) toStored() (repository.StoredEvent, error) {
	var ev engine.Event
	if err := json.Unmarshal(r.DataJSON, &ev); err != nil {
		return repository.StoredEvent{}, fmt.Errorf("unmarshal event data: %w", err)
	}

	received, err := parseTime(r.ReceivedAt)
	if err != nil {
		return repository.StoredEvent{}, fmt.Errorf("parse received_at: %w", err)
	}

	return repository.StoredEvent{
		ID:         strconv.FormatInt(r.ID, 10),
		Source:     r.Source,
		Event:      ev,
		ReceivedAt: received,
	}, nil
}
