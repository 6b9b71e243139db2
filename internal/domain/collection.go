package domain

import "fmt"

// ListDomain accepts []any values with optional size bounds, optional
// duplicate forbidding, and an optional allowed-element set
type ListDomain struct {
	MinSize      *int
	MaxSize      *int
	NoDuplicates bool
	allowed      []any
	restricted   bool
}

// NewListDomain creates a list domain with no element-membership constraint
func NewListDomain(minSize, maxSize *int, noDuplicates bool) (ListDomain, error) {
	if err := checkSizeBounds("list", minSize, maxSize); err != nil {
		return ListDomain{}, err
	}
	return ListDomain{MinSize: minSize, MaxSize: maxSize, NoDuplicates: noDuplicates}, nil
}

// NewRestrictedListDomain creates a list domain whose elements must all be
// members of the allowed set. An empty allowed set rejects every element.
func NewRestrictedListDomain(minSize, maxSize *int, noDuplicates bool, allowed []any) (ListDomain, error) {
	d, err := NewListDomain(minSize, maxSize, noDuplicates)
	if err != nil {
		return ListDomain{}, err
	}
	d.allowed = make([]any, len(allowed))
	copy(d.allowed, allowed)
	d.restricted = true
	return d, nil
}

// Kind returns the domain variant
func (ListDomain) Kind() Kind { return KindList }

// Contains reports whether value is a list satisfying every constraint
func (d ListDomain) Contains(value any) bool {
	list, ok := value.([]any)
	if !ok {
		return false
	}
	if d.MinSize != nil && len(list) < *d.MinSize {
		return false
	}
	if d.MaxSize != nil && len(list) > *d.MaxSize {
		return false
	}
	if d.restricted {
		for _, elem := range list {
			if !d.allowedMember(elem) {
				return false
			}
		}
	}
	if d.NoDuplicates {
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if EquivalentValues(list[i], list[j]) {
					return false
				}
			}
		}
	}
	return true
}

func (d ListDomain) allowedMember(elem any) bool {
	for _, a := range d.allowed {
		if EquivalentValues(a, elem) {
			return true
		}
	}
	return false
}

// AllowedElements returns a copy of the allowed-element set, nil when the
// list is unrestricted
func (d ListDomain) AllowedElements() []any {
	if !d.restricted {
		return nil
	}
	copied := make([]any, len(d.allowed))
	copy(copied, d.allowed)
	return copied
}

// Describe returns a human-readable description
func (d ListDomain) Describe() string {
	desc := "list"
	if clause := sizeClause("size", d.MinSize, d.MaxSize); clause != "" {
		desc += ", " + clause
	}
	if d.NoDuplicates {
		desc += ", no duplicates"
	}
	if d.restricted {
		desc += ", elements " + NewEnumDomain(d.allowed...).Describe()
	}
	return desc
}

// MapDomain accepts map[string]any values with optional size bounds and
// optional sub-domains applied to every key and every value independently
type MapDomain struct {
	MinSize     *int
	MaxSize     *int
	KeyDomain   Domain
	ValueDomain Domain
}

// NewMapDomain creates a map domain. Nil sub-domains leave the matching
// side of each entry unconstrained.
func NewMapDomain(minSize, maxSize *int, keys, values Domain) (MapDomain, error) {
	if err := checkSizeBounds("map", minSize, maxSize); err != nil {
		return MapDomain{}, err
	}
	return MapDomain{MinSize: minSize, MaxSize: maxSize, KeyDomain: keys, ValueDomain: values}, nil
}

// Kind returns the domain variant
func (MapDomain) Kind() Kind { return KindMap }

// Contains reports whether value is a map whose size and every entry
// satisfy the constraints
func (d MapDomain) Contains(value any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	if d.MinSize != nil && len(m) < *d.MinSize {
		return false
	}
	if d.MaxSize != nil && len(m) > *d.MaxSize {
		return false
	}
	for k, v := range m {
		if d.KeyDomain != nil && !d.KeyDomain.Contains(k) {
			return false
		}
		if d.ValueDomain != nil && !d.ValueDomain.Contains(v) {
			return false
		}
	}
	return true
}

// Describe returns a human-readable description
func (d MapDomain) Describe() string {
	desc := "map"
	if clause := sizeClause("size", d.MinSize, d.MaxSize); clause != "" {
		desc += ", " + clause
	}
	if d.KeyDomain != nil {
		desc += ", keys: " + d.KeyDomain.Describe()
	}
	if d.ValueDomain != nil {
		desc += ", values: " + d.ValueDomain.Describe()
	}
	return desc
}

func checkSizeBounds(noun string, min, max *int) error {
	if min != nil && *min < 0 {
		return fmt.Errorf("%s domain min size %d is negative", noun, *min)
	}
	if min != nil && max != nil && *min > *max {
		return fmt.Errorf("%s domain min size %d exceeds max size %d", noun, *min, *max)
	}
	return nil
}
