package kb

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sort"
	"sync"
	"time"

	"grimoire/internal/domain"
	"grimoire/internal/repository"
)

var (
	// ErrUnknownClass is returned when an operation names a class with no
	// registered definition.
	ErrUnknownClass = errors.New("unknown class")
	// ErrDuplicateID is returned by CreateInstance when the id is taken.
	ErrDuplicateID = errors.New("duplicate instance id")
)

// createStripes sizes the per-id creation lock table
const createStripes = 64

// KnowledgeBase is the process-wide registry of definitions and instances,
// the query surface, and the origin of change events. Registries are
// guarded by one RWMutex; find-or-create is additionally serialized per id
// so concurrent ingestion of the same external object cannot double-create.
type KnowledgeBase struct {
	mu               sync.RWMutex
	definitions      map[string]*domain.Definition
	instances        map[string]*domain.Instance
	instancesByClass map[string][]*domain.Instance
	executions       []*domain.Execution
	executionsByID   map[string]*domain.Execution
	divergences      []*domain.Divergence

	bus     *EventBus
	journal repository.Journal

	createLocks [createStripes]sync.Mutex
}

// New creates an empty knowledge base with its own event bus
func New() *KnowledgeBase {
	return &KnowledgeBase{
		definitions:      make(map[string]*domain.Definition),
		instances:        make(map[string]*domain.Instance),
		instancesByClass: make(map[string][]*domain.Instance),
		executionsByID:   make(map[string]*domain.Execution),
		bus:              NewEventBus(),
	}
}

// SetJournal attaches an optional journal. Journaling is best effort: a
// journal failure is logged and never propagated to the mutating caller.
func (k *KnowledgeBase) SetJournal(j repository.Journal) {
	k.journal = j
}

// Bus returns the knowledge base's event bus
func (k *KnowledgeBase) Bus() *EventBus {
	return k.bus
}

func (k *KnowledgeBase) journalWrite(op string, fn func(context.Context, repository.Journal) error) {
	if k.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, k.journal); err != nil {
		log.Printf("KB: journal %s failed: %v", op, err)
	}
}

// RegisterDefinition registers a definition, replacing any previous one of
// the same class. Instances already minted keep their original definition.
func (k *KnowledgeBase) RegisterDefinition(def *domain.Definition) error {
	if def == nil {
		return fmt.Errorf("nil definition")
	}
	k.mu.Lock()
	k.definitions[def.Class()] = def
	if _, ok := k.instancesByClass[def.Class()]; !ok {
		k.instancesByClass[def.Class()] = make([]*domain.Instance, 0)
	}
	k.mu.Unlock()

	k.journalWrite("definition", func(ctx context.Context, j repository.Journal) error {
		return j.SaveDefinition(ctx, def)
	})
	k.bus.Publish(Event{Type: EventDefinitionRegistered, Payload: map[string]string{"class": def.Class()}})
	return nil
}

// GetDefinition returns the registered definition for a class
func (k *KnowledgeBase) GetDefinition(class string) (*domain.Definition, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	def, ok := k.definitions[class]
	return def, ok
}

// Definitions returns every registered definition, sorted by class
func (k *KnowledgeBase) Definitions() []*domain.Definition {
	k.mu.RLock()
	defs := make([]*domain.Definition, 0, len(k.definitions))
	for _, def := range k.definitions {
		defs = append(defs, def)
	}
	k.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Class() < defs[j].Class() })
	return defs
}

// CreateInstance mints and indexes a new instance of a registered class.
// Overrides are applied as one atomic batch before the instance becomes
// visible, so a rejected override map never leaves a half-written record.
//
// The instance is built and its overrides validated before k.mu is taken:
// a reference-domain override resolves through HasInstance, which needs
// the read lock, so validating under the write lock would deadlock.
func (k *KnowledgeBase) CreateInstance(class, id string, overrides map[string]any) (*domain.Instance, error) {
	def, ok := k.GetDefinition(class)
	if !ok {
		return nil, fmt.Errorf("class %q: %w", class, ErrUnknownClass)
	}
	if k.HasInstance(id) {
		return nil, fmt.Errorf("instance %q: %w", id, ErrDuplicateID)
	}
	in, err := def.NewInstance(id)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := in.UpdateProperties(overrides); err != nil {
			return nil, err
		}
	}

	k.mu.Lock()
	if _, taken := k.instances[id]; taken {
		k.mu.Unlock()
		return nil, fmt.Errorf("instance %q: %w", id, ErrDuplicateID)
	}
	k.instances[id] = in
	k.instancesByClass[class] = append(k.instancesByClass[class], in)
	k.mu.Unlock()

	k.journalWrite("instance", func(ctx context.Context, j repository.Journal) error {
		return j.SaveInstance(ctx, in)
	})
	k.bus.Publish(Event{Type: EventInstanceCreated, Payload: map[string]string{"id": id, "class": class}})
	return in, nil
}

// GetOrCreate returns the instance with the given id, creating it when
// absent. The find and the create are serialized per id through a striped
// lock, so concurrent events about the same external object resolve to one
// instance. Reports whether a creation happened.
func (k *KnowledgeBase) GetOrCreate(class, id string, overrides map[string]any) (*domain.Instance, bool, error) {
	lock := &k.createLocks[stripe(id)]
	lock.Lock()
	defer lock.Unlock()

	if in, ok := k.GetInstance(id); ok {
		return in, false, nil
	}
	in, err := k.CreateInstance(class, id, overrides)
	if err != nil {
		return nil, false, err
	}
	return in, true, nil
}

func stripe(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() % createStripes
}

// GetInstance returns the instance with the given id
func (k *KnowledgeBase) GetInstance(id string) (*domain.Instance, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	in, ok := k.instances[id]
	return in, ok
}

// HasInstance reports whether an id is registered. Satisfies
// domain.Resolver, so reference domains validate against live state.
func (k *KnowledgeBase) HasInstance(id string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.instances[id]
	return ok
}

// GetInstancesByClass returns a copy of the class index slice. Callers own
// the slice; the instances themselves are live.
func (k *KnowledgeBase) GetInstancesByClass(class string) []*domain.Instance {
	k.mu.RLock()
	defer k.mu.RUnlock()
	indexed := k.instancesByClass[class]
	out := make([]*domain.Instance, len(indexed))
	copy(out, indexed)
	return out
}

// InstanceCount returns the number of registered instances
func (k *KnowledgeBase) InstanceCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.instances)
}

// Query returns the instances of a class satisfying every condition.
// Conditions apply left to right and the scan short-circuits as soon as no
// instance survives.
func (k *KnowledgeBase) Query(class string, conds ...domain.Condition) []*domain.Instance {
	matched := k.GetInstancesByClass(class)
	for _, c := range conds {
		if len(matched) == 0 {
			return matched
		}
		kept := matched[:0]
		for _, in := range matched {
			if in.Matches(c) {
				kept = append(kept, in)
			}
		}
		matched = kept
	}
	return matched
}

// UpdateInstance applies an atomic property batch to a registered instance
// and announces the change
func (k *KnowledgeBase) UpdateInstance(id string, values map[string]any) error {
	in, ok := k.GetInstance(id)
	if !ok {
		return fmt.Errorf("instance %s not found", id)
	}
	if err := in.UpdateProperties(values); err != nil {
		return err
	}
	k.journalWrite("instance", func(ctx context.Context, j repository.Journal) error {
		return j.SaveInstance(ctx, in)
	})
	k.bus.Publish(Event{Type: EventInstanceUpdated, Payload: map[string]string{"id": id, "class": in.Class()}})
	return nil
}

// NotifyUpdated journals and announces an instance mutated outside
// UpdateInstance, such as by a verb effect
func (k *KnowledgeBase) NotifyUpdated(in *domain.Instance) {
	if in == nil {
		return
	}
	k.journalWrite("instance", func(ctx context.Context, j repository.Journal) error {
		return j.SaveInstance(ctx, in)
	})
	k.bus.Publish(Event{Type: EventInstanceUpdated, Payload: map[string]string{"id": in.ID(), "class": in.Class()}})
}

// RemoveInstance unindexes an instance, archiving its final canonical form
// to the journal
func (k *KnowledgeBase) RemoveInstance(id string) error {
	k.mu.Lock()
	in, ok := k.instances[id]
	if !ok {
		k.mu.Unlock()
		return fmt.Errorf("instance %s not found", id)
	}
	delete(k.instances, id)
	class := in.Class()
	indexed := k.instancesByClass[class]
	for i, candidate := range indexed {
		if candidate == in {
			k.instancesByClass[class] = append(indexed[:i], indexed[i+1:]...)
			break
		}
	}
	k.mu.Unlock()

	final := in.CanonicalForm()
	k.journalWrite("archive", func(ctx context.Context, j repository.Journal) error {
		return j.ArchiveInstance(ctx, final)
	})
	k.bus.Publish(Event{Type: EventInstanceRemoved, Payload: map[string]string{"id": id, "class": class}})
	return nil
}

// RecordExecution appends a verb execution record to the log
func (k *KnowledgeBase) RecordExecution(ex *domain.Execution) {
	if ex == nil {
		return
	}
	k.mu.Lock()
	k.executions = append(k.executions, ex)
	k.executionsByID[ex.ID] = ex
	k.mu.Unlock()

	k.journalWrite("execution", func(ctx context.Context, j repository.Journal) error {
		return j.RecordExecution(ctx, ex)
	})
	k.bus.Publish(Event{Type: EventExecutionRecorded, Payload: ex})
}

// MarkExecutionUndone flags a logged execution as undone
func (k *KnowledgeBase) MarkExecutionUndone(id string) error {
	k.mu.Lock()
	ex, ok := k.executionsByID[id]
	if !ok {
		k.mu.Unlock()
		return fmt.Errorf("execution %s not found", id)
	}
	now := time.Now().UTC()
	ex.Undone = true
	ex.UndoneAt = &now
	k.mu.Unlock()

	k.journalWrite("execution", func(ctx context.Context, j repository.Journal) error {
		return j.RecordExecution(ctx, ex)
	})
	k.bus.Publish(Event{Type: EventExecutionUndone, Payload: map[string]string{"id": id}})
	return nil
}

// GetExecution returns a logged execution by id
func (k *KnowledgeBase) GetExecution(id string) (*domain.Execution, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ex, ok := k.executionsByID[id]
	return ex, ok
}

// Executions returns a copy of the execution log, oldest first
func (k *KnowledgeBase) Executions() []*domain.Execution {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*domain.Execution, len(k.executions))
	copy(out, k.executions)
	return out
}

// RecordDivergence appends a divergence record
func (k *KnowledgeBase) RecordDivergence(d *domain.Divergence) {
	if d == nil {
		return
	}
	k.mu.Lock()
	k.divergences = append(k.divergences, d)
	k.mu.Unlock()

	k.journalWrite("divergence", func(ctx context.Context, j repository.Journal) error {
		return j.RecordDivergence(ctx, d)
	})
	k.bus.Publish(Event{Type: EventDivergenceFound, Payload: d})
}

// Divergences returns a copy of the divergence log, oldest first
func (k *KnowledgeBase) Divergences() []*domain.Divergence {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*domain.Divergence, len(k.divergences))
	copy(out, k.divergences)
	return out
}
