package verb

import (
	"fmt"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// Context is the execution environment handed to expressions, costs, and
// effects. Probe contexts (availability checks, previews) carry no backing
// instance and refuse property writes; apply contexts route every write
// through the bound instance's undo log.
type Context struct {
	KB       *kb.KnowledgeBase
	Source   *domain.Instance
	Targets  []*domain.Instance
	Bindings map[string]any

	vi *Instance
}

// Binding looks up a resolved variable by name
func (ctx *Context) Binding(name string) (any, bool) {
	v, ok := ctx.Bindings[name]
	return v, ok
}

// Subjects returns the instances an effect should act on: the bound targets
// when there are any, otherwise the source
func (ctx *Context) Subjects() []*domain.Instance {
	if len(ctx.Targets) > 0 {
		return ctx.Targets
	}
	if ctx.Source != nil {
		return []*domain.Instance{ctx.Source}
	}
	return nil
}

// Write sets a property on an instance and records the previous value in
// the undo log. Unknown properties and domain violations surface as errors;
// a write that fails records nothing.
func (ctx *Context) Write(in *domain.Instance, property string, value any) error {
	if ctx.vi == nil {
		return fmt.Errorf("property write outside apply")
	}
	previous, err := in.GetProperty(property)
	if err != nil {
		return err
	}
	previous = domain.CloneValue(previous)
	if err := in.SetProperty(property, value); err != nil {
		return err
	}
	ctx.vi.undo = append(ctx.vi.undo, undoEntry{in: in, property: property, previous: previous})
	return nil
}

func (ctx *Context) verbName() string {
	if ctx.vi == nil {
		return ""
	}
	return ctx.vi.def.Name
}
