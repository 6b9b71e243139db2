package domain

import "time"

// Execution is the audit record of one applied verb instance. The live,
// undoable instance is retained by the verb catalog; this record is what
// the knowledge base logs, journals, and serves.
type Execution struct {
	ID        string         `json:"id"`
	Verb      string         `json:"verb"`
	Category  string         `json:"category,omitempty"`
	SourceID  string         `json:"source_id,omitempty"`
	TargetIDs []string       `json:"target_ids,omitempty"`
	Bindings  map[string]any `json:"bindings,omitempty"`
	Fizzled   bool           `json:"fizzled,omitempty"`
	Undone    bool           `json:"undone,omitempty"`
	Writes    int            `json:"writes"`
	AppliedAt time.Time      `json:"applied_at"`
	UndoneAt  *time.Time     `json:"undone_at,omitempty"`
}

// Divergence records an absolute value reported by the host engine that
// disagreed with the mirrored value at the moment of ingestion. The
// reported value wins; the record is informational.
type Divergence struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	Class      string    `json:"class,omitempty"`
	Property   string    `json:"property"`
	Mirrored   any       `json:"mirrored"`
	Reported   any       `json:"reported"`
	Source     string    `json:"source,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
