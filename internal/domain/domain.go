package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind identifies a domain variant
type Kind string

const (
	KindBoolean   Kind = "boolean"
	KindInteger   Kind = "integer"
	KindReal      Kind = "real"
	KindEnum      Kind = "enum"
	KindText      Kind = "text"
	KindList      Kind = "list"
	KindMap       Kind = "map"
	KindReference Kind = "reference"
)

// Domain is a stateless validator for one value type. Contains is a pure
// predicate over the candidate value and the domain's own parameters;
// Describe returns a human-readable statement of what the domain accepts.
// The set of variants is fixed; dispatch on Kind for exhaustive handling.
type Domain interface {
	Kind() Kind
	Contains(value any) bool
	Describe() string
}

// BooleanDomain accepts boolean values
type BooleanDomain struct{}

// NewBooleanDomain creates a boolean domain
func NewBooleanDomain() BooleanDomain {
	return BooleanDomain{}
}

// Kind returns the domain variant
func (BooleanDomain) Kind() Kind { return KindBoolean }

// Contains reports whether value is a non-nil boolean
func (BooleanDomain) Contains(value any) bool {
	_, ok := value.(bool)
	return ok
}

// Describe returns a human-readable description
func (BooleanDomain) Describe() string { return "boolean" }

// IntegerDomain accepts integer values within optional inclusive bounds.
// Whole-valued floats are accepted so that values arriving through JSON
// (which carries every number as a float) still validate.
type IntegerDomain struct {
	Min *int64
	Max *int64
}

// NewIntegerDomain creates an integer domain with optional inclusive bounds
func NewIntegerDomain(min, max *int64) (IntegerDomain, error) {
	if min != nil && max != nil && *min > *max {
		return IntegerDomain{}, fmt.Errorf("integer domain min %d exceeds max %d", *min, *max)
	}
	return IntegerDomain{Min: min, Max: max}, nil
}

// Kind returns the domain variant
func (IntegerDomain) Kind() Kind { return KindInteger }

// Contains reports whether value is an integer within bounds
func (d IntegerDomain) Contains(value any) bool {
	n, ok := AsInt64(value)
	if !ok {
		return false
	}
	if d.Min != nil && n < *d.Min {
		return false
	}
	if d.Max != nil && n > *d.Max {
		return false
	}
	return true
}

// Describe returns a human-readable description
func (d IntegerDomain) Describe() string {
	switch {
	case d.Min != nil && d.Max != nil:
		return fmt.Sprintf("integer in [%d, %d]", *d.Min, *d.Max)
	case d.Min != nil:
		return fmt.Sprintf("integer >= %d", *d.Min)
	case d.Max != nil:
		return fmt.Sprintf("integer <= %d", *d.Max)
	}
	return "integer"
}

// RealDomain accepts numeric values within optional bounds, each of which
// may independently be exclusive
type RealDomain struct {
	Min          *float64
	Max          *float64
	ExclusiveMin bool
	ExclusiveMax bool
}

// NewRealDomain creates a real domain with optional bounds
func NewRealDomain(min, max *float64, exclusiveMin, exclusiveMax bool) (RealDomain, error) {
	if min != nil && max != nil && *min > *max {
		return RealDomain{}, fmt.Errorf("real domain min %v exceeds max %v", *min, *max)
	}
	return RealDomain{Min: min, Max: max, ExclusiveMin: exclusiveMin, ExclusiveMax: exclusiveMax}, nil
}

// Kind returns the domain variant
func (RealDomain) Kind() Kind { return KindReal }

// Contains reports whether value is numeric and within bounds
func (d RealDomain) Contains(value any) bool {
	f, ok := AsNumber(value)
	if !ok {
		return false
	}
	if d.Min != nil {
		if d.ExclusiveMin {
			if f <= *d.Min {
				return false
			}
		} else if f < *d.Min {
			return false
		}
	}
	if d.Max != nil {
		if d.ExclusiveMax {
			if f >= *d.Max {
				return false
			}
		} else if f > *d.Max {
			return false
		}
	}
	return true
}

// Describe returns a human-readable description
func (d RealDomain) Describe() string {
	switch {
	case d.Min != nil && d.Max != nil:
		lo, hi := "[", "]"
		if d.ExclusiveMin {
			lo = "("
		}
		if d.ExclusiveMax {
			hi = ")"
		}
		return fmt.Sprintf("real in %s%v, %v%s", lo, *d.Min, *d.Max, hi)
	case d.Min != nil:
		if d.ExclusiveMin {
			return fmt.Sprintf("real > %v", *d.Min)
		}
		return fmt.Sprintf("real >= %v", *d.Min)
	case d.Max != nil:
		if d.ExclusiveMax {
			return fmt.Sprintf("real < %v", *d.Max)
		}
		return fmt.Sprintf("real <= %v", *d.Max)
	}
	return "real"
}

// EnumDomain accepts values that are members of a fixed set. An empty set
// is legal and rejects every candidate.
type EnumDomain struct {
	members []any
}

// NewEnumDomain creates an enumerated-set domain over the given members
func NewEnumDomain(members ...any) EnumDomain {
	copied := make([]any, len(members))
	copy(copied, members)
	return EnumDomain{members: copied}
}

// Kind returns the domain variant
func (EnumDomain) Kind() Kind { return KindEnum }

// Contains reports whether value is a member of the set
func (d EnumDomain) Contains(value any) bool {
	if value == nil {
		return false
	}
	for _, m := range d.members {
		if EquivalentValues(m, value) {
			return true
		}
	}
	return false
}

// Members returns a copy of the allowed values
func (d EnumDomain) Members() []any {
	copied := make([]any, len(d.members))
	copy(copied, d.members)
	return copied
}

// Describe returns a human-readable description
func (d EnumDomain) Describe() string {
	parts := make([]string, len(d.members))
	for i, m := range d.members {
		parts[i] = formatValue(m)
	}
	return fmt.Sprintf("one of [%s]", strings.Join(parts, ", "))
}

// TextDomain accepts strings with optional length bounds and an optional
// fully-anchored pattern. Lengths are counted in runes.
type TextDomain struct {
	MinLength  *int
	MaxLength  *int
	pattern    *regexp.Regexp
	rawPattern string
}

// NewTextDomain creates a text domain. An empty pattern means unconstrained;
// a non-empty pattern must match the entire candidate string.
func NewTextDomain(minLength, maxLength *int, pattern string) (TextDomain, error) {
	if minLength != nil && *minLength < 0 {
		return TextDomain{}, fmt.Errorf("text domain min length %d is negative", *minLength)
	}
	if minLength != nil && maxLength != nil && *minLength > *maxLength {
		return TextDomain{}, fmt.Errorf("text domain min length %d exceeds max length %d", *minLength, *maxLength)
	}
	d := TextDomain{MinLength: minLength, MaxLength: maxLength, rawPattern: pattern}
	if pattern != "" {
		re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
		if err != nil {
			return TextDomain{}, fmt.Errorf("text domain pattern %q: %w", pattern, err)
		}
		d.pattern = re
	}
	return d, nil
}

// Kind returns the domain variant
func (TextDomain) Kind() Kind { return KindText }

// Contains reports whether value is a string satisfying the constraints
func (d TextDomain) Contains(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	length := utf8.RuneCountInString(s)
	if d.MinLength != nil && length < *d.MinLength {
		return false
	}
	if d.MaxLength != nil && length > *d.MaxLength {
		return false
	}
	if d.pattern != nil && !d.pattern.MatchString(s) {
		return false
	}
	return true
}

// Pattern returns the raw (unanchored) pattern, empty if none
func (d TextDomain) Pattern() string { return d.rawPattern }

// Describe returns a human-readable description
func (d TextDomain) Describe() string {
	desc := "text"
	if clause := sizeClause("length", d.MinLength, d.MaxLength); clause != "" {
		desc += ", " + clause
	}
	if d.rawPattern != "" {
		desc += fmt.Sprintf(", matching %s", d.rawPattern)
	}
	return desc
}

// sizeClause renders an optional min/max range as a short phrase
func sizeClause(noun string, min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%s in [%d, %d]", noun, *min, *max)
	case min != nil:
		return fmt.Sprintf("%s >= %d", noun, *min)
	case max != nil:
		return fmt.Sprintf("%s <= %d", noun, *max)
	}
	return ""
}
