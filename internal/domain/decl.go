package domain

import "fmt"

// Decl is the declarative form of a domain: a plain struct that catalog
// files and snapshots carry in place of a live Domain. Build reconstructs
// the Domain through the package constructors, so a Decl can only express
// what the constructors accept.
//
// Numeric bounds are typed any so that a Decl decoded from JSON (floats)
// and one decoded from YAML (ints) both build; Build coerces with the same
// helpers the comparison engine uses.
type Decl struct {
	Kind         Kind   `json:"kind" yaml:"kind"`
	Min          any    `json:"min,omitempty" yaml:"min,omitempty"`
	Max          any    `json:"max,omitempty" yaml:"max,omitempty"`
	ExclusiveMin bool   `json:"exclusive_min,omitempty" yaml:"exclusive_min,omitempty"`
	ExclusiveMax bool   `json:"exclusive_max,omitempty" yaml:"exclusive_max,omitempty"`
	Members      []any  `json:"members,omitempty" yaml:"members,omitempty"`
	MinLength    *int   `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength    *int   `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Pattern      string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinSize      *int   `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize      *int   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	NoDuplicates bool   `json:"no_duplicates,omitempty" yaml:"no_duplicates,omitempty"`
	Elements     []any  `json:"elements,omitempty" yaml:"elements,omitempty"`
	Keys         *Decl  `json:"keys,omitempty" yaml:"keys,omitempty"`
	Values       *Decl  `json:"values,omitempty" yaml:"values,omitempty"`
}

// DeclOf returns the declarative form of a domain, or nil for a nil or
// unrecognized domain. Reference domains keep their pattern but lose the
// resolver; Build reattaches one.
func DeclOf(d Domain) *Decl {
	switch v := d.(type) {
	case BooleanDomain:
		return &Decl{Kind: KindBoolean}
	case IntegerDomain:
		dec := &Decl{Kind: KindInteger}
		if v.Min != nil {
			dec.Min = *v.Min
		}
		if v.Max != nil {
			dec.Max = *v.Max
		}
		return dec
	case RealDomain:
		dec := &Decl{Kind: KindReal, ExclusiveMin: v.ExclusiveMin, ExclusiveMax: v.ExclusiveMax}
		if v.Min != nil {
			dec.Min = *v.Min
		}
		if v.Max != nil {
			dec.Max = *v.Max
		}
		return dec
	case EnumDomain:
		return &Decl{Kind: KindEnum, Members: v.Members()}
	case TextDomain:
		return &Decl{
			Kind:      KindText,
			MinLength: cloneIntPtr(v.MinLength),
			MaxLength: cloneIntPtr(v.MaxLength),
			Pattern:   v.Pattern(),
		}
	case ListDomain:
		return &Decl{
			Kind:         KindList,
			MinSize:      cloneIntPtr(v.MinSize),
			MaxSize:      cloneIntPtr(v.MaxSize),
			NoDuplicates: v.NoDuplicates,
			Elements:     v.AllowedElements(),
		}
	case MapDomain:
		return &Decl{
			Kind:    KindMap,
			MinSize: cloneIntPtr(v.MinSize),
			MaxSize: cloneIntPtr(v.MaxSize),
			Keys:    DeclOf(v.KeyDomain),
			Values:  DeclOf(v.ValueDomain),
		}
	case ReferenceDomain:
		return &Decl{Kind: KindReference, Pattern: v.Pattern()}
	}
	return nil
}

// Build reconstructs the live domain a Decl describes. The resolver is
// consulted only by reference domains and may be nil for every other kind.
func (d *Decl) Build(resolver Resolver) (Domain, error) {
	if d == nil {
		return nil, nil
	}
	switch d.Kind {
	case KindBoolean:
		return NewBooleanDomain(), nil
	case KindInteger:
		min, err := intBound("min", d.Min)
		if err != nil {
			return nil, err
		}
		max, err := intBound("max", d.Max)
		if err != nil {
			return nil, err
		}
		return NewIntegerDomain(min, max)
	case KindReal:
		min, err := realBound("min", d.Min)
		if err != nil {
			return nil, err
		}
		max, err := realBound("max", d.Max)
		if err != nil {
			return nil, err
		}
		return NewRealDomain(min, max, d.ExclusiveMin, d.ExclusiveMax)
	case KindEnum:
		if len(d.Members) == 0 {
			return nil, fmt.Errorf("enum domain declares no members")
		}
		return NewEnumDomain(d.Members...), nil
	case KindText:
		return NewTextDomain(d.MinLength, d.MaxLength, d.Pattern)
	case KindList:
		if len(d.Elements) > 0 {
			return NewRestrictedListDomain(d.MinSize, d.MaxSize, d.NoDuplicates, d.Elements)
		}
		return NewListDomain(d.MinSize, d.MaxSize, d.NoDuplicates)
	case KindMap:
		keys, err := d.Keys.Build(resolver)
		if err != nil {
			return nil, fmt.Errorf("map key domain: %w", err)
		}
		values, err := d.Values.Build(resolver)
		if err != nil {
			return nil, fmt.Errorf("map value domain: %w", err)
		}
		return NewMapDomain(d.MinSize, d.MaxSize, keys, values)
	case KindReference:
		return NewReferenceDomain(d.Pattern, resolver)
	case "":
		return nil, fmt.Errorf("domain declaration has no kind")
	}
	return nil, fmt.Errorf("unknown domain kind %q", d.Kind)
}

func intBound(name string, v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := AsInt64(v)
	if !ok {
		return nil, fmt.Errorf("integer domain %s %v is not an integer", name, v)
	}
	return &n, nil
}

func realBound(name string, v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, ok := AsNumber(v)
	if !ok {
		return nil, fmt.Errorf("real domain %s %v is not a number", name, v)
	}
	return &f, nil
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}
