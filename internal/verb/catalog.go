package verb

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// appliedRetention caps how many applied instances the catalog keeps for
// undo. The oldest age out first and can no longer be undone.
const appliedRetention = 1024

// Catalog registers verb definitions by name and retains applied instances
// so executions can be undone later. Name collisions across catalogs are a
// configuration error, surfaced by Register.
type Catalog struct {
	mu      sync.RWMutex
	verbs   map[string]*Definition
	applied map[string]*Instance
	order   []string
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		verbs:   make(map[string]*Definition),
		applied: make(map[string]*Instance),
	}
}

// Register adds a definition. Registering a name twice is an error.
func (c *Catalog) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("verb definition has no name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.verbs[def.Name]; exists {
		return fmt.Errorf("verb %q already registered", def.Name)
	}
	c.verbs[def.Name] = def
	return nil
}

// Upsert adds or replaces a definition. The catalog loader uses it so hot
// reloads win over earlier registrations.
func (c *Catalog) Upsert(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("verb definition has no name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbs[def.Name] = def
	return nil
}

// Get looks up a definition by name
func (c *Catalog) Get(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.verbs[name]
	return def, ok
}

// Names returns all registered verb names, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.verbs))
	for name := range c.verbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all registered definitions, sorted by name
func (c *Catalog) Definitions() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]*Definition, 0, len(c.verbs))
	for _, def := range c.verbs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Available returns the names of every verb whose prerequisites, targeting,
// and costs pass against the given source and candidates, sorted
func (c *Catalog) Available(k *kb.KnowledgeBase, source *domain.Instance, candidates []*domain.Instance) []string {
	names := make([]string, 0)
	for _, def := range c.Definitions() {
		if def.IsAvailable(k, source, candidates) {
			names = append(names, def.Name)
		}
	}
	return names
}

// Applied looks up a retained applied instance by execution id
func (c *Catalog) Applied(executionID string) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vi, ok := c.applied[executionID]
	return vi, ok
}

// Execute binds and applies a verb by name, records the execution in the
// knowledge base, and retains the applied instance for undo. A fizzled
// execution is recorded but not retained, since it wrote nothing. A hard
// error from a cost payment or effect rolls back the writes made before
// it and propagates without recording.
func (c *Catalog) Execute(k *kb.KnowledgeBase, name string, source *domain.Instance, targets []*domain.Instance) (*domain.Execution, error) {
	def, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("verb %q not found", name)
	}
	vi, err := def.Bind(k, source, targets)
	if err != nil {
		return nil, err
	}
	if err := vi.Apply(k); err != nil {
		if undoErr := vi.Undo(); undoErr != nil {
			log.Printf("Catalog: rollback of %s after failed apply: %v", name, undoErr)
		}
		return nil, err
	}
	rec := vi.Record()
	k.RecordExecution(rec)
	if !vi.Fizzled() {
		c.retain(vi)
		for _, in := range vi.TouchedInstances() {
			k.NotifyUpdated(in)
		}
	}
	return rec, nil
}

// Preview binds a verb and returns its effects' preview strings without
// mutating anything
func (c *Catalog) Preview(k *kb.KnowledgeBase, name string, source *domain.Instance, targets []*domain.Instance) ([]string, error) {
	def, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("verb %q not found", name)
	}
	vi, err := def.Bind(k, source, targets)
	if err != nil {
		return nil, err
	}
	return vi.Preview(k), nil
}

// Undo rolls back a retained execution: the applied instance restores every
// write, the knowledge base marks the record undone, and subscribers are
// told about each touched instance
func (c *Catalog) Undo(k *kb.KnowledgeBase, executionID string) error {
	c.mu.RLock()
	vi, ok := c.applied[executionID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("execution %q not found", executionID)
	}
	touched := vi.TouchedInstances()
	if err := vi.Undo(); err != nil {
		return err
	}
	if err := k.MarkExecutionUndone(executionID); err != nil {
		return err
	}
	for _, in := range touched {
		k.NotifyUpdated(in)
	}
	return nil
}

func (c *Catalog) retain(vi *Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[vi.ID()] = vi
	c.order = append(c.order, vi.ID())
	for len(c.order) > appliedRetention {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.applied, oldest)
	}
}
