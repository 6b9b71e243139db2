package mirror

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"grimoire/internal/domain"
	"grimoire/internal/engine"
	"grimoire/internal/kb"
	"grimoire/internal/repository"
	"grimoire/internal/verb"
)

// Mirror is the ingestion boundary between the host engine's event stream
// and the knowledge base
type Mirror struct {
	kb      *kb.KnowledgeBase
	catalog *verb.Catalog
	journal repository.Journal

	game atomic.Value

	total   atomic.Int64
	handled atomic.Int64
	ignored atomic.Int64
	dropped atomic.Int64
}

// Stats counts what happened to ingested events
type Stats struct {
	Total   int64 `json:"total"`
	Handled int64 `json:"handled"`
	Ignored int64 `json:"ignored"`
	Dropped int64 `json:"dropped"`
}

// New builds a mirror over the knowledge base. The catalog may be nil to
// disable verb auditing; the journal may be nil to skip raw event records.
// Baseline card, token, player, and game schemas are registered for any
// class the knowledge base does not already define, so lazily created
// instances always have a definition to hang off.
func New(k *kb.KnowledgeBase, catalog *verb.Catalog, journal repository.Journal) (*Mirror, error) {
	m := &Mirror{kb: k, catalog: catalog, journal: journal}
	if err := m.ensureSchemas(); err != nil {
		return nil, fmt.Errorf("registering baseline schemas: %w", err)
	}
	return m, nil
}

// Stats returns a snapshot of the ingestion counters
func (m *Mirror) Stats() Stats {
	return Stats{
		Total:   m.total.Load(),
		Handled: m.handled.Load(),
		Ignored: m.ignored.Load(),
		Dropped: m.dropped.Load(),
	}
}

// Ingest processes one inbound event. Handler errors and panics are
// logged with the event kind and counted as dropped; they never propagate
// to the caller. Unknown and deliberately unhandled kinds count as
// ignored.
func (m *Mirror) Ingest(source string, ev engine.Event) {
	m.total.Add(1)
	defer func() {
		if r := recover(); r != nil {
			m.dropped.Add(1)
			log.Printf("Mirror: %s event dropped: %v", ev.Kind, r)
		}
	}()
	m.journalEvent(source, ev)

	handled, err := m.dispatch(source, ev)
	if err != nil {
		m.dropped.Add(1)
		log.Printf("Mirror: %s event dropped: %v", ev.Kind, err)
		return
	}
	if handled {
		m.handled.Add(1)
	} else {
		m.ignored.Add(1)
	}
}

func (m *Mirror) journalEvent(source string, ev engine.Event) {
	if m.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.journal.RecordEvent(ctx, source, ev); err != nil {
		log.Printf("Mirror: journal event failed: %v", err)
	}
}

// write applies a property batch and tells subscribers. The batch is
// all-or-nothing, so a domain violation surfaces with nothing applied.
func (m *Mirror) write(in *domain.Instance, values map[string]any) error {
	if err := in.UpdateProperties(values); err != nil {
		return err
	}
	m.kb.NotifyUpdated(in)
	return nil
}

// adjust adds a delta to a numeric property. A non-numeric current value
// counts as zero; clampZero keeps the result from going negative.
func (m *Mirror) adjust(in *domain.Instance, property string, delta int64, clampZero bool) error {
	v, err := in.GetProperty(property)
	if err != nil {
		return err
	}
	current, ok := domain.AsInt64(v)
	if !ok {
		current = 0
	}
	next := current + delta
	if clampZero && next < 0 {
		next = 0
	}
	return m.write(in, map[string]any{property: next})
}

// audit executes a catalog verb so the execution log tracks the engine's
// action history. Returns false when the catalog cannot run it; the
// caller then falls back to a direct write.
func (m *Mirror) audit(name string, source *domain.Instance, targets []*domain.Instance) bool {
	if m.catalog == nil {
		return false
	}
	if _, err := m.catalog.Execute(m.kb, name, source, targets); err != nil {
		log.Printf("Mirror: audit %s failed: %v", name, err)
		return false
	}
	return true
}

// checkAbsolute records a divergence when an absolute reported value
// disagrees with the mirrored one. Informational only: the caller writes
// the reported value regardless.
func (m *Mirror) checkAbsolute(source string, in *domain.Instance, property string, mirrored, reported any) {
	if domain.EquivalentValues(mirrored, reported) {
		return
	}
	m.kb.RecordDivergence(&domain.Divergence{
		ID:         uuid.NewString(),
		InstanceID: in.ID(),
		Class:      in.Class(),
		Property:   property,
		Mirrored:   mirrored,
		Reported:   reported,
		Source:     source,
		DetectedAt: time.Now().UTC(),
	})
}

// ensureCard finds or lazily creates the card or token an event is about
func (m *Mirror) ensureCard(ev engine.Event) (*domain.Instance, bool, error) {
	if ev.ObjectID == "" {
		return nil, false, fmt.Errorf("event has no object id")
	}
	class := ClassCard
	if ev.Kind == engine.KindTokenCreated {
		class = ClassToken
	}
	overrides := map[string]any{}
	if ev.ObjectName != "" {
		overrides["name"] = ev.ObjectName
	}
	return m.kb.GetOrCreate(class, ev.ObjectID, overrides)
}

// ensurePlayer resolves the player an event refers to, creating one only
// when resolution fails outright
func (m *Mirror) ensurePlayer(ev engine.Event) (*domain.Instance, bool, error) {
	if in, ok := m.resolvePlayer(ev.PlayerID, ev.PlayerName); ok {
		return in, false, nil
	}
	id := ev.PlayerID
	if id == "" {
		id = ev.PlayerName
	}
	if id == "" {
		return nil, false, fmt.Errorf("event has no player")
	}
	overrides := map[string]any{}
	if ev.PlayerName != "" {
		overrides["name"] = ev.PlayerName
	}
	return m.kb.GetOrCreate(ClassPlayer, id, overrides)
}

// ensureGame finds or creates the game instance. Events that carry no
// object id attach to the most recently started game.
func (m *Mirror) ensureGame(ev engine.Event) (*domain.Instance, bool, error) {
	id := ev.ObjectID
	if id == "" {
		if current, ok := m.game.Load().(string); ok && current != "" {
			id = current
		} else {
			id = "game"
		}
	}
	return m.kb.GetOrCreate(ClassGame, id, nil)
}

func payloadString(ev engine.Event, key string) string {
	if v, ok := ev.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func payloadInt(ev engine.Event, key string) (int64, bool) {
	v, ok := ev.Payload[key]
	if !ok {
		return 0, false
	}
	return domain.AsInt64(v)
}
