package codec

import (
	"fmt"
	"sort"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// Strategy controls how an imported snapshot meets existing state
type Strategy string

const (
	// StrategyMerge upserts snapshot content over whatever is present
	StrategyMerge Strategy = "merge"

	// StrategyReplace removes instances absent from the snapshot, then merges
	StrategyReplace Strategy = "replace"
)

// Snapshot is the interchange form of the knowledge base: every registered
// definition and the canonical form of every instance. Definitions carry
// domain declarations, so an imported snapshot can re-register classes the
// receiving side has never seen.
type Snapshot struct {
	Definitions []DefinitionSnapshot `json:"definitions" yaml:"definitions"`
	Instances   []InstanceSnapshot   `json:"instances" yaml:"instances"`
}

// DefinitionSnapshot is one entity class in interchange form
type DefinitionSnapshot struct {
	Class       string             `json:"class" yaml:"class"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  []PropertySnapshot `json:"properties" yaml:"properties"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
}

// PropertySnapshot is one property prototype: name, default value and an
// optional domain declaration
type PropertySnapshot struct {
	Name    string       `json:"name" yaml:"name"`
	Default any          `json:"default" yaml:"default"`
	Domain  *domain.Decl `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// InstanceSnapshot is one instance in canonical property order
type InstanceSnapshot struct {
	Class      string          `json:"class" yaml:"class"`
	ID         string          `json:"id" yaml:"id"`
	Properties []ValueSnapshot `json:"properties" yaml:"properties"`
}

// ValueSnapshot is one named property value
type ValueSnapshot struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Property returns the named value and whether the instance carries it
func (is InstanceSnapshot) Property(name string) (any, bool) {
	for _, v := range is.Properties {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// SnapshotDefinition renders one definition in interchange form
func SnapshotDefinition(def *domain.Definition) DefinitionSnapshot {
	ds := DefinitionSnapshot{
		Class:       def.Class(),
		Description: def.Description(),
		Properties:  make([]PropertySnapshot, 0),
		Required:    def.Required(),
	}
	for _, name := range def.PropertyNames() {
		p, ok := def.Prototype(name)
		if !ok {
			continue
		}
		ds.Properties = append(ds.Properties, PropertySnapshot{
			Name:    name,
			Default: p.Value(),
			Domain:  domain.DeclOf(p.Domain),
		})
	}
	return ds
}

// SnapshotInstance renders one instance in interchange form
func SnapshotInstance(in *domain.Instance) InstanceSnapshot {
	canon := in.CanonicalForm()
	is := InstanceSnapshot{
		Class:      canon.Class,
		ID:         canon.ID,
		Properties: make([]ValueSnapshot, 0, len(canon.Properties)),
	}
	for _, cp := range canon.Properties {
		is.Properties = append(is.Properties, ValueSnapshot{Name: cp.Name, Value: cp.Value})
	}
	return is
}

// Capture builds a snapshot of everything the knowledge base holds.
// Definitions come back sorted by class and instances by class then id, so
// repeated captures of the same state render identically.
func Capture(k *kb.KnowledgeBase) *Snapshot {
	snap := &Snapshot{
		Definitions: make([]DefinitionSnapshot, 0),
		Instances:   make([]InstanceSnapshot, 0),
	}

	for _, def := range k.Definitions() {
		snap.Definitions = append(snap.Definitions, SnapshotDefinition(def))

		instances := k.GetInstancesByClass(def.Class())
		sort.Slice(instances, func(i, j int) bool { return instances[i].ID() < instances[j].ID() })
		for _, in := range instances {
			snap.Instances = append(snap.Instances, SnapshotInstance(in))
		}
	}

	return snap
}

// Apply imports a snapshot into the knowledge base. Definitions register
// first (an upsert, with the knowledge base serving as resolver for
// reference domains), then instances are created or updated in snapshot
// order. Under StrategyReplace, instances the snapshot does not name are
// removed before any instance writes.
func Apply(k *kb.KnowledgeBase, snap *Snapshot, strategy Strategy) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if strategy != StrategyMerge && strategy != StrategyReplace {
		return fmt.Errorf("unknown import strategy %q", strategy)
	}

	for _, ds := range snap.Definitions {
		def, err := buildDefinition(ds, k)
		if err != nil {
			return fmt.Errorf("failed to build definition %s: %w", ds.Class, err)
		}
		if err := k.RegisterDefinition(def); err != nil {
			return fmt.Errorf("failed to register definition %s: %w", ds.Class, err)
		}
	}

	if strategy == StrategyReplace {
		named := make(map[string]bool, len(snap.Instances))
		for _, is := range snap.Instances {
			named[is.ID] = true
		}
		for _, def := range k.Definitions() {
			for _, in := range k.GetInstancesByClass(def.Class()) {
				if named[in.ID()] {
					continue
				}
				if err := k.RemoveInstance(in.ID()); err != nil {
					return fmt.Errorf("failed to remove instance %s: %w", in.ID(), err)
				}
			}
		}
	}

	for _, is := range snap.Instances {
		values := make(map[string]any, len(is.Properties))
		for _, v := range is.Properties {
			values[v.Name] = v.Value
		}
		if in, ok := k.GetInstance(is.ID); ok {
			if in.Class() != is.Class {
				return fmt.Errorf("instance %s is a %s here but a %s in the snapshot", is.ID, in.Class(), is.Class)
			}
			if err := k.UpdateInstance(is.ID, values); err != nil {
				return fmt.Errorf("failed to update instance %s: %w", is.ID, err)
			}
			continue
		}
		if _, err := k.CreateInstance(is.Class, is.ID, values); err != nil {
			return fmt.Errorf("failed to create instance %s: %w", is.ID, err)
		}
	}

	return nil
}

func buildDefinition(ds DefinitionSnapshot, resolver domain.Resolver) (*domain.Definition, error) {
	prototypes := make([]*domain.Property, 0, len(ds.Properties))
	for _, ps := range ds.Properties {
		d, err := ps.Domain.Build(resolver)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", ps.Name, err)
		}
		p, err := domain.NewProperty(ps.Name, ps.Default, d)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", ps.Name, err)
		}
		prototypes = append(prototypes, p)
	}
	return domain.NewDefinition(ds.Class, ds.Description, prototypes, ds.Required)
}
