package domain

import (
	"fmt"
	"regexp"
)

// DefaultIDPattern is the id shape used when a reference domain is built
// without an explicit pattern.
const DefaultIDPattern = `[A-Za-z0-9][A-Za-z0-9._:-]*`

// Resolver reports whether an id is currently registered. The knowledge
// base satisfies this; reference domains hold it so validation can check
// live registrations.
type Resolver interface {
	HasInstance(id string) bool
}

// ReferenceDomain accepts strings that both match an id-shape pattern and
// resolve to a currently-registered instance. This is the one domain whose
// validity depends on external state.
type ReferenceDomain struct {
	pattern    *regexp.Regexp
	rawPattern string
	resolver   Resolver
}

// NewReferenceDomain creates a reference domain. An empty pattern falls
// back to DefaultIDPattern.
func NewReferenceDomain(pattern string, resolver Resolver) (ReferenceDomain, error) {
	if resolver == nil {
		return ReferenceDomain{}, fmt.Errorf("reference domain requires a resolver")
	}
	if pattern == "" {
		pattern = DefaultIDPattern
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return ReferenceDomain{}, fmt.Errorf("reference domain pattern %q: %w", pattern, err)
	}
	return ReferenceDomain{pattern: re, rawPattern: pattern, resolver: resolver}, nil
}

// Kind returns the domain variant
func (ReferenceDomain) Kind() Kind { return KindReference }

// Contains reports whether value is a well-shaped id of a registered instance
func (d ReferenceDomain) Contains(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	if d.pattern == nil || !d.pattern.MatchString(s) {
		return false
	}
	return d.resolver.HasInstance(s)
}

// Pattern returns the raw (unanchored) id pattern
func (d ReferenceDomain) Pattern() string { return d.rawPattern }

// Describe returns a human-readable description
func (d ReferenceDomain) Describe() string {
	return fmt.Sprintf("reference to a registered instance, id matching %s", d.rawPattern)
}
