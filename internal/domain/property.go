package domain

import "fmt"

// Property is a named, optionally domain-constrained mutable value holder.
// Every write passes through domain validation. Map-backed properties get
// incremental mutation that validates the prospective whole map before
// committing, so a partially-invalid map state is never observable.
type Property struct {
	Name   string
	Domain Domain
	value  any
}

// NewProperty creates a property cell. When a domain is given the initial
// value must already satisfy it.
func NewProperty(name string, value any, d Domain) (*Property, error) {
	if name == "" {
		return nil, fmt.Errorf("property name is empty")
	}
	p := &Property{Name: name, Domain: d}
	if err := p.Set(value); err != nil {
		return nil, err
	}
	return p, nil
}

// MustProperty is NewProperty for statically-known-good cells; it panics on
// error and is meant for package-level prototype tables.
func MustProperty(name string, value any, d Domain) *Property {
	p, err := NewProperty(name, value, d)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the current value. Map and list values are returned live;
// callers must not mutate them directly.
func (p *Property) Value() any { return p.value }

// Set validates value against the domain, then stores it
func (p *Property) Set(value any) error {
	if p.Domain != nil && !p.Domain.Contains(value) {
		return &ViolationError{Property: p.Name, Value: value, Domain: p.Domain.Describe()}
	}
	p.value = value
	return nil
}

// Put adds or replaces one key in a map-backed property. The prospective
// map is validated wholesale before the live map changes.
func (p *Property) Put(key string, value any) error {
	return p.mutateMap(func(m map[string]any) {
		m[key] = value
	})
}

// PutAll merges entries into a map-backed property atomically
func (p *Property) PutAll(entries map[string]any) error {
	return p.mutateMap(func(m map[string]any) {
		for k, v := range entries {
			m[k] = v
		}
	})
}

// RemoveKey removes one key from a map-backed property
func (p *Property) RemoveKey(key string) error {
	return p.mutateMap(func(m map[string]any) {
		delete(m, key)
	})
}

// ClearMap empties a map-backed property
func (p *Property) ClearMap() error {
	return p.mutateMap(func(m map[string]any) {
		for k := range m {
			delete(m, k)
		}
	})
}

// mutateMap applies op to a copy of the current map, validates the result,
// and only then replays op on the live map
func (p *Property) mutateMap(op func(map[string]any)) error {
	current, err := p.mapValue()
	if err != nil {
		return err
	}
	prospective := make(map[string]any, len(current)+1)
	for k, v := range current {
		prospective[k] = v
	}
	op(prospective)
	if p.Domain != nil && !p.Domain.Contains(prospective) {
		return &ViolationError{Property: p.Name, Value: prospective, Domain: p.Domain.Describe()}
	}
	if current == nil {
		current = make(map[string]any, len(prospective))
		p.value = current
	}
	op(current)
	return nil
}

// mapValue returns the live map, treating nil as an empty map
func (p *Property) mapValue() (map[string]any, error) {
	if p.value == nil {
		return nil, nil
	}
	m, ok := p.value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property %q does not hold a map", p.Name)
	}
	return m, nil
}

// Copy returns an independent cell. Map and list values are copied deeply,
// other values shallowly; the domain is shared by reference.
func (p *Property) Copy() *Property {
	return &Property{Name: p.Name, Domain: p.Domain, value: copyValue(p.value)}
}

// CloneValue returns an independent copy of a property value: maps and
// lists are copied deeply, scalars pass through. Use it when retaining a
// value past the life of the cell it came from, e.g. in undo logs.
func CloneValue(v any) any { return copyValue(v) }

// copyValue deep-copies maps and lists, passes everything else through
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		copied := make(map[string]any, len(val))
		for k, e := range val {
			copied[k] = copyValue(e)
		}
		return copied
	case []any:
		copied := make([]any, len(val))
		for i, e := range val {
			copied[i] = copyValue(e)
		}
		return copied
	}
	return v
}
