package domain

import (
	"fmt"
	"sort"
	"time"
)

// Definition is an immutable named prototype for one class of entity: a set
// of property cells with default values and domains, a subset marked
// required, and a description. Instances are minted from it and never feed
// changes back.
type Definition struct {
	class       string
	description string
	prototypes  map[string]*Property
	required    map[string]struct{}
}

// NewDefinition builds a definition. Prototype names must be unique and
// every required name must refer to a prototype.
func NewDefinition(class, description string, prototypes []*Property, required []string) (*Definition, error) {
	if class == "" {
		return nil, fmt.Errorf("definition class is empty")
	}
	d := &Definition{
		class:       class,
		description: description,
		prototypes:  make(map[string]*Property, len(prototypes)),
		required:    make(map[string]struct{}, len(required)),
	}
	for _, p := range prototypes {
		if p == nil {
			return nil, fmt.Errorf("definition %q has a nil prototype", class)
		}
		if _, dup := d.prototypes[p.Name]; dup {
			return nil, fmt.Errorf("definition %q declares property %q twice", class, p.Name)
		}
		d.prototypes[p.Name] = p.Copy()
	}
	for _, name := range required {
		if _, ok := d.prototypes[name]; !ok {
			return nil, fmt.Errorf("definition %q marks unknown property %q required", class, name)
		}
		d.required[name] = struct{}{}
	}
	return d, nil
}

// Class returns the class name
func (d *Definition) Class() string { return d.class }

// Description returns the human description
func (d *Definition) Description() string { return d.description }

// PropertyNames returns the declared property names, sorted
func (d *Definition) PropertyNames() []string {
	names := make([]string, 0, len(d.prototypes))
	for name := range d.prototypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prototype returns a copy of the named property prototype
func (d *Definition) Prototype(name string) (*Property, bool) {
	p, ok := d.prototypes[name]
	if !ok {
		return nil, false
	}
	return p.Copy(), true
}

// Required returns the required property names, sorted
func (d *Definition) Required() []string {
	names := make([]string, 0, len(d.required))
	for name := range d.required {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRequired reports whether the named property is marked required
func (d *Definition) IsRequired(name string) bool {
	_, ok := d.required[name]
	return ok
}

// NewInstance mints a fresh instance whose cells are independent copies of
// the prototypes, so instance mutation never reaches the definition or
// sibling instances.
func (d *Definition) NewInstance(id string) (*Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("instance id is empty")
	}
	now := time.Now().UTC()
	in := &Instance{
		def:          d,
		id:           id,
		properties:   make(map[string]*Property, len(d.prototypes)),
		createdAt:    now,
		lastModified: now,
		metadata:     make(map[string]any),
	}
	for name, proto := range d.prototypes {
		in.properties[name] = proto.Copy()
	}
	return in, nil
}
