package verb

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// Well-known property names shared by the built-in costs and effects and by
// the event mirror. Catalog schemas that want tap or zone semantics declare
// properties with these names.
const (
	PropZone   = "zone"
	PropStatus = "status"

	StatusUntapped = "untapped"
	StatusTapped   = "tapped"
)

// Expr computes a value from an execution context. Expressions back verb
// variables, effect values, and cost amounts; they must not mutate anything.
type Expr func(*Context) any

// Const returns an expression that always yields v
func Const(v any) Expr {
	return func(*Context) any { return v }
}

// FromSource returns an expression that reads a property off the acting
// instance, or nil when there is no source or no such property
func FromSource(property string) Expr {
	return func(ctx *Context) any {
		if ctx.Source == nil {
			return nil
		}
		v, err := ctx.Source.GetProperty(property)
		if err != nil {
			return nil
		}
		return v
	}
}

// FromTarget returns an expression that reads a property off the i-th bound
// target, or nil when the index or property does not exist
func FromTarget(i int, property string) Expr {
	return func(ctx *Context) any {
		if i < 0 || i >= len(ctx.Targets) {
			return nil
		}
		v, err := ctx.Targets[i].GetProperty(property)
		if err != nil {
			return nil
		}
		return v
	}
}

// FromBinding returns an expression that reads a resolved variable binding
func FromBinding(name string) Expr {
	return func(ctx *Context) any {
		v, _ := ctx.Binding(name)
		return v
	}
}

func (e Expr) eval(ctx *Context) any {
	if e == nil {
		return nil
	}
	return e(ctx)
}

// Prerequisite is a named predicate over the acting instance. The name shows
// up in diagnostics; the check decides availability.
type Prerequisite struct {
	Name  string
	Check func(*domain.Instance) bool
}

func (p Prerequisite) holds(source *domain.Instance) bool {
	if p.Check == nil {
		return true
	}
	return p.Check(source)
}

// Filter narrows which instances a target spec accepts. A nil filter accepts
// everything.
type Filter struct {
	Name  string
	Match func(*domain.Instance) bool
}

// Matches reports whether the filter accepts the instance
func (f *Filter) Matches(in *domain.Instance) bool {
	if f == nil || f.Match == nil {
		return true
	}
	return f.Match(in)
}

// Where builds a filter that requires every condition clause to match
func Where(name string, conds ...domain.Condition) *Filter {
	return &Filter{
		Name: name,
		Match: func(in *domain.Instance) bool {
			for _, c := range conds {
				if !in.Matches(c) {
					return false
				}
			}
			return true
		},
	}
}

// TargetSpec describes one positional slot in a verb's target list. Class
// "" or "*" accepts any class. Max <= 0 means unbounded.
type TargetSpec struct {
	Class  string  `json:"class,omitempty"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Filter *Filter `json:"-"`
}

// Accepts reports whether the spec's class and filter admit the instance
func (s TargetSpec) Accepts(in *domain.Instance) bool {
	if in == nil {
		return false
	}
	if s.Class != "" && s.Class != "*" && in.Class() != s.Class {
		return false
	}
	return s.Filter.Matches(in)
}

// Definition is an unbound verb: what it needs, what it consumes, and what
// it does, all declaratively. Definitions are immutable once registered;
// binding never mutates them.
type Definition struct {
	Name        string
	Category    string
	Description string
	Prereqs     []Prerequisite
	Targets     []TargetSpec
	Costs       []Cost
	Effects     []Effect

	// Variables are resolved once at bind time, in sorted name order,
	// against a context holding only source and targets. Bindings are not
	// visible to each other.
	Variables map[string]Expr

	Metadata map[string]string
}

// IsAvailable reports whether the verb could be bound and applied right now:
// every prerequisite holds against source, the candidate list satisfies the
// target specs under the greedy cursor, and every cost is payable against a
// probe context with provisionally resolved variables. No state is mutated.
func (d *Definition) IsAvailable(k *kb.KnowledgeBase, source *domain.Instance, candidates []*domain.Instance) bool {
	for _, p := range d.Prereqs {
		if !p.holds(source) {
			return false
		}
	}
	targets, ok := d.matchTargets(candidates)
	if !ok {
		return false
	}
	ctx := &Context{KB: k, Source: source, Targets: targets}
	ctx.Bindings = d.resolveVariables(ctx)
	for _, c := range d.Costs {
		if !c.CanPay(ctx) {
			return false
		}
	}
	return true
}

// matchTargets runs the single-cursor greedy match. Each spec consumes
// candidates from the cursor while they satisfy it, up to its max; the first
// candidate a spec rejects ends that spec's run and stays available for the
// next spec. Rejected-and-passed candidates are never reconsidered. Trailing
// candidates no spec consumed are ignored.
func (d *Definition) matchTargets(candidates []*domain.Instance) ([]*domain.Instance, bool) {
	matched := make([]*domain.Instance, 0, len(candidates))
	cursor := 0
	for _, spec := range d.Targets {
		taken := 0
		for cursor < len(candidates) && (spec.Max <= 0 || taken < spec.Max) && spec.Accepts(candidates[cursor]) {
			matched = append(matched, candidates[cursor])
			cursor++
			taken++
		}
		if taken < spec.Min {
			return nil, false
		}
	}
	return matched, true
}

// Bind resolves the verb's variables against source and the chosen targets
// and returns a fresh bound instance. The targets must satisfy the target
// specs exactly: same greedy match as IsAvailable, but every given target
// must be consumed.
func (d *Definition) Bind(k *kb.KnowledgeBase, source *domain.Instance, targets []*domain.Instance) (*Instance, error) {
	matched, ok := d.matchTargets(targets)
	if !ok || len(matched) != len(targets) {
		return nil, fmt.Errorf("verb %q: targets do not satisfy target specs", d.Name)
	}
	ctx := &Context{KB: k, Source: source, Targets: targets}
	bindings := d.resolveVariables(ctx)

	bound := make([]*domain.Instance, len(targets))
	copy(bound, targets)
	return &Instance{
		def:      d,
		id:       uuid.NewString(),
		source:   source,
		targets:  bound,
		bindings: bindings,
		boundAt:  time.Now().UTC(),
	}, nil
}

// resolveVariables evaluates every variable expression once, in sorted name
// order, yielding the immutable binding map
func (d *Definition) resolveVariables(ctx *Context) map[string]any {
	if len(d.Variables) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Variables))
	for name := range d.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make(map[string]any, len(names))
	for _, name := range names {
		bindings[name] = d.Variables[name].eval(ctx)
	}
	return bindings
}
