package verb

import (
	"fmt"
	"time"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// undoEntry is one recorded property write: enough to put the old value back
type undoEntry struct {
	in       *domain.Instance
	property string
	previous any
}

// Instance is a bound verb: a Definition plus the concrete source, targets,
// and variable bindings it was resolved against. Applying it mutates the
// knowledge base's instances and fills the undo log; undoing it restores
// them and returns the instance to its bound state.
//
// Instances are not safe for concurrent use. Each one owns its undo log and
// bindings and shares nothing with other instances.
type Instance struct {
	def      *Definition
	id       string
	source   *domain.Instance
	targets  []*domain.Instance
	bindings map[string]any
	boundAt  time.Time

	executed  bool
	fizzled   bool
	countered bool
	replaced  bool
	appliedAt time.Time

	undo []undoEntry
}

// ID returns the instance's unique id, minted at bind time
func (vi *Instance) ID() string { return vi.id }

// Definition returns the definition this instance was bound from
func (vi *Instance) Definition() *Definition { return vi.def }

// Source returns the acting instance, which may be nil
func (vi *Instance) Source() *domain.Instance { return vi.source }

// Targets returns a copy of the bound target list
func (vi *Instance) Targets() []*domain.Instance {
	out := make([]*domain.Instance, len(vi.targets))
	copy(out, vi.targets)
	return out
}

// Bindings returns a copy of the resolved variable bindings
func (vi *Instance) Bindings() map[string]any {
	if vi.bindings == nil {
		return nil
	}
	out := make(map[string]any, len(vi.bindings))
	for k, v := range vi.bindings {
		out[k] = v
	}
	return out
}

// BoundAt returns when the instance was bound
func (vi *Instance) BoundAt() time.Time { return vi.boundAt }

// Executed reports whether Apply ran to completion
func (vi *Instance) Executed() bool { return vi.executed }

// Fizzled reports whether the last Apply aborted because a cost was unpayable
func (vi *Instance) Fizzled() bool { return vi.fizzled }

// Countered reports whether the instance was negated before resolving
func (vi *Instance) Countered() bool { return vi.countered }

// Replaced reports whether another action superseded this instance
func (vi *Instance) Replaced() bool { return vi.replaced }

// MarkCountered negates the instance; Apply becomes a no-op until Undo
func (vi *Instance) MarkCountered() { vi.countered = true }

// MarkReplaced supersedes the instance; Apply becomes a no-op until Undo
func (vi *Instance) MarkReplaced() { vi.replaced = true }

// Apply pays the costs and runs the effects. It is a no-op when the
// instance has already executed or has been countered or replaced.
//
// All costs are checked for payability first; if any check fails the
// instance fizzles and nothing is mutated. Once checks pass, cost payments
// and effects run in declared order and every property write lands in the
// undo log. A hard error from a payment or effect (unknown property, domain
// violation) propagates immediately; writes made before the error stay both
// applied and logged, so the caller can Undo to roll them back.
func (vi *Instance) Apply(k *kb.KnowledgeBase) error {
	if vi.executed || vi.countered || vi.replaced {
		return nil
	}
	vi.appliedAt = time.Now().UTC()

	probe := &Context{KB: k, Source: vi.source, Targets: vi.targets, Bindings: vi.bindings}
	for _, c := range vi.def.Costs {
		if !c.CanPay(probe) {
			vi.fizzled = true
			return nil
		}
	}

	run := &Context{KB: k, Source: vi.source, Targets: vi.targets, Bindings: vi.bindings, vi: vi}
	for _, c := range vi.def.Costs {
		if err := c.Pay(run); err != nil {
			return fmt.Errorf("verb %q: pay %s: %w", vi.def.Name, c.Name(), err)
		}
	}
	for _, e := range vi.def.Effects {
		if err := e.Apply(run); err != nil {
			return fmt.Errorf("verb %q: effect %s: %w", vi.def.Name, e.Name(), err)
		}
	}
	vi.executed = true
	vi.fizzled = false
	return nil
}

// Undo replays the undo log in reverse, restoring every written property to
// its previous value, then clears the log and resets the execution flags.
// The instance is bound-but-unexecuted afterward and may be applied again.
func (vi *Instance) Undo() error {
	for i := len(vi.undo) - 1; i >= 0; i-- {
		entry := vi.undo[i]
		if err := entry.in.SetProperty(entry.property, entry.previous); err != nil {
			return fmt.Errorf("verb %q: undo %s.%s: %w", vi.def.Name, entry.in.ID(), entry.property, err)
		}
	}
	vi.undo = nil
	vi.executed = false
	vi.fizzled = false
	vi.countered = false
	vi.replaced = false
	return nil
}

// Preview describes what Apply would do without doing it: each effect's
// preview string, in order. Costs are not consulted and nothing is written.
func (vi *Instance) Preview(k *kb.KnowledgeBase) []string {
	ctx := &Context{KB: k, Source: vi.source, Targets: vi.targets, Bindings: vi.bindings}
	out := make([]string, 0, len(vi.def.Effects))
	for _, e := range vi.def.Effects {
		out = append(out, e.Preview(ctx))
	}
	return out
}

// TouchedInstances returns the distinct instances the undo log mentions, in
// first-touched order
func (vi *Instance) TouchedInstances() []*domain.Instance {
	seen := make(map[string]bool, len(vi.undo))
	out := make([]*domain.Instance, 0, len(vi.undo))
	for _, entry := range vi.undo {
		if seen[entry.in.ID()] {
			continue
		}
		seen[entry.in.ID()] = true
		out = append(out, entry.in)
	}
	return out
}

// Record snapshots the instance into a plain execution record for the
// knowledge base's log and the journal
func (vi *Instance) Record() *domain.Execution {
	targetIDs := make([]string, 0, len(vi.targets))
	for _, t := range vi.targets {
		targetIDs = append(targetIDs, t.ID())
	}
	sourceID := ""
	if vi.source != nil {
		sourceID = vi.source.ID()
	}
	appliedAt := vi.appliedAt
	if appliedAt.IsZero() {
		appliedAt = vi.boundAt
	}
	return &domain.Execution{
		ID:        vi.id,
		Verb:      vi.def.Name,
		Category:  vi.def.Category,
		SourceID:  sourceID,
		TargetIDs: targetIDs,
		Bindings:  vi.Bindings(),
		Fizzled:   vi.fizzled,
		Writes:    len(vi.undo),
		AppliedAt: appliedAt,
	}
}
