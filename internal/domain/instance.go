package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Instance is a mutable record minted from a definition: an id, live copies
// of the prototype cells, timestamps, and free-form metadata. Instances are
// created through the knowledge base, mutated by event ingestion and verb
// effects, and expected to have a single writer at a time.
type Instance struct {
	def          *Definition
	id           string
	properties   map[string]*Property
	createdAt    time.Time
	lastModified time.Time
	metadata     map[string]any
}

// Class returns the owning definition's class name
func (in *Instance) Class() string { return in.def.class }

// ID returns the instance id
func (in *Instance) ID() string { return in.id }

// Definition returns the owning definition
func (in *Instance) Definition() *Definition { return in.def }

// CreatedAt returns the creation timestamp
func (in *Instance) CreatedAt() time.Time { return in.createdAt }

// LastModified returns the last property-write timestamp
func (in *Instance) LastModified() time.Time { return in.lastModified }

// SetMetadata stores a free-form metadata entry
func (in *Instance) SetMetadata(key string, value any) {
	in.metadata[key] = value
}

// Metadata returns a free-form metadata entry
func (in *Instance) Metadata(key string) (any, bool) {
	v, ok := in.metadata[key]
	return v, ok
}

// PropertyNames returns the instance's property names, sorted
func (in *Instance) PropertyNames() []string {
	names := make([]string, 0, len(in.properties))
	for name := range in.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProperty returns the current value of the named property
func (in *Instance) GetProperty(name string) (any, error) {
	cell, ok := in.properties[name]
	if !ok {
		return nil, &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	return cell.Value(), nil
}

// GetString returns the named property as a string, empty when absent or
// not a string
func (in *Instance) GetString(name string) string {
	v, err := in.GetProperty(name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SetProperty writes one property through its cell's domain
func (in *Instance) SetProperty(name string, value any) error {
	cell, ok := in.properties[name]
	if !ok {
		return &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	if err := cell.Set(value); err != nil {
		return err
	}
	in.touch()
	return nil
}

// UpdateProperties applies a batch of writes atomically: every entry is
// validated against its cell's domain before any entry is committed, so the
// batch fully applies or the instance is left untouched.
func (in *Instance) UpdateProperties(values map[string]any) error {
	for name, value := range values {
		cell, ok := in.properties[name]
		if !ok {
			return &UnknownPropertyError{Class: in.Class(), Property: name}
		}
		if cell.Domain != nil && !cell.Domain.Contains(value) {
			return &ViolationError{Property: name, Value: value, Domain: cell.Domain.Describe()}
		}
	}
	for name, value := range values {
		// Validated above; Set cannot fail now.
		in.properties[name].Set(value)
	}
	if len(values) > 0 {
		in.touch()
	}
	return nil
}

// PutMapEntry adds or replaces one key in a map-backed property
func (in *Instance) PutMapEntry(name, key string, value any) error {
	cell, ok := in.properties[name]
	if !ok {
		return &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	if err := cell.Put(key, value); err != nil {
		return err
	}
	in.touch()
	return nil
}

// PutMapEntries merges entries into a map-backed property atomically
func (in *Instance) PutMapEntries(name string, entries map[string]any) error {
	cell, ok := in.properties[name]
	if !ok {
		return &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	if err := cell.PutAll(entries); err != nil {
		return err
	}
	in.touch()
	return nil
}

// RemoveMapKey removes one key from a map-backed property
func (in *Instance) RemoveMapKey(name, key string) error {
	cell, ok := in.properties[name]
	if !ok {
		return &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	if err := cell.RemoveKey(key); err != nil {
		return err
	}
	in.touch()
	return nil
}

// ClearMap empties a map-backed property
func (in *Instance) ClearMap(name string) error {
	cell, ok := in.properties[name]
	if !ok {
		return &UnknownPropertyError{Class: in.Class(), Property: name}
	}
	if err := cell.ClearMap(); err != nil {
		return err
	}
	in.touch()
	return nil
}

// Matches evaluates a single-property condition against the current value.
// A condition on a property the instance does not carry never matches.
func (in *Instance) Matches(c Condition) bool {
	cell, ok := in.properties[c.Property]
	if !ok {
		return false
	}
	return c.Matches(cell.Value())
}

func (in *Instance) touch() {
	in.lastModified = time.Now().UTC()
}

// Canonical is the observable state of an instance: class, id, and property
// values sorted by name. Two instances with equal canonical forms are equal
// regardless of object identity.
type Canonical struct {
	Class      string              `json:"class"`
	ID         string              `json:"id"`
	Properties []CanonicalProperty `json:"properties"`
}

// CanonicalProperty is one name/value pair of a canonical form
type CanonicalProperty struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// CanonicalForm returns the instance's observable state with properties
// sorted by name
func (in *Instance) CanonicalForm() Canonical {
	names := in.PropertyNames()
	c := Canonical{
		Class:      in.Class(),
		ID:         in.id,
		Properties: make([]CanonicalProperty, 0, len(names)),
	}
	for _, name := range names {
		c.Properties = append(c.Properties, CanonicalProperty{Name: name, Value: in.properties[name].Value()})
	}
	return c
}

// Equal reports whether two instances have equal observable state
func (in *Instance) Equal(other *Instance) bool {
	if other == nil {
		return false
	}
	if in.Class() != other.Class() || in.id != other.id {
		return false
	}
	a, b := in.CanonicalForm(), other.CanonicalForm()
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for i := range a.Properties {
		if a.Properties[i].Name != b.Properties[i].Name {
			return false
		}
		if !EquivalentValues(a.Properties[i].Value, b.Properties[i].Value) {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable hash of the canonical form, usable as a
// content-addressed key
func (in *Instance) Fingerprint() string {
	c := in.CanonicalForm()
	var b strings.Builder
	b.WriteString(c.Class)
	b.WriteByte('|')
	b.WriteString(c.ID)
	for _, p := range c.Properties {
		b.WriteByte('|')
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(canonicalString(p.Value))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalString renders a value deterministically for fingerprinting,
// recursing into maps (keys sorted) and lists
func canonicalString(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(canonicalString(val[k]))
		}
		b.WriteByte('}')
		return b.String()
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(canonicalString(e))
		}
		b.WriteByte(']')
		return b.String()
	}
	return formatValue(v)
}
