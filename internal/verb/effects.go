package verb

import (
	"fmt"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

// Effect is one composable unit of mutation. Apply runs against an apply
// context and routes writes through it; Preview describes the same action
// without touching anything.
type Effect interface {
	Name() string
	Apply(ctx *Context) error
	Preview(ctx *Context) string
}

func subjectsLabel(ctx *Context) string {
	subjects := ctx.Subjects()
	switch len(subjects) {
	case 0:
		return "nothing"
	case 1:
		return subjects[0].ID()
	}
	return fmt.Sprintf("%d instances", len(subjects))
}

// SetProperty writes a computed value to one property on every subject. The
// value expression is evaluated once per apply; map and list values are
// cloned per subject so subjects never share storage.
type SetProperty struct {
	Property string
	Value    Expr
}

func (e SetProperty) Name() string { return "set_property" }

func (e SetProperty) Apply(ctx *Context) error {
	value := e.Value.eval(ctx)
	for _, subject := range ctx.Subjects() {
		if err := ctx.Write(subject, e.Property, domain.CloneValue(value)); err != nil {
			return err
		}
	}
	return nil
}

func (e SetProperty) Preview(ctx *Context) string {
	return fmt.Sprintf("set %s = %v on %s", e.Property, e.Value.eval(ctx), subjectsLabel(ctx))
}

// AdjustProperty adds a computed numeric delta to a property on every
// subject. A non-numeric current value counts as zero; a non-numeric delta
// is a hard error. When both sides are whole numbers the result stays an
// integer, otherwise it goes float.
type AdjustProperty struct {
	Property string
	Delta    Expr
}

func (e AdjustProperty) Name() string { return "adjust_property" }

func (e AdjustProperty) Apply(ctx *Context) error {
	delta := e.Delta.eval(ctx)
	df, ok := domain.AsNumber(delta)
	if !ok {
		return fmt.Errorf("adjust %q: delta %v is not numeric", e.Property, delta)
	}
	di, deltaWhole := domain.AsInt64(delta)
	for _, subject := range ctx.Subjects() {
		current, err := subject.GetProperty(e.Property)
		if err != nil {
			return err
		}
		cf, numeric := domain.AsNumber(current)
		ci, currentWhole := domain.AsInt64(current)
		if !numeric {
			cf, ci, currentWhole = 0, 0, true
		}
		var next any
		if deltaWhole && currentWhole {
			next = ci + di
		} else {
			next = cf + df
		}
		if err := ctx.Write(subject, e.Property, next); err != nil {
			return err
		}
	}
	return nil
}

func (e AdjustProperty) Preview(ctx *Context) string {
	return fmt.Sprintf("adjust %s by %v on %s", e.Property, e.Delta.eval(ctx), subjectsLabel(ctx))
}

// MoveZone rewrites every subject's zone property from one named zone to
// another. A non-empty From is asserted against the current zone first; a
// mismatch is a hard error, since it means the verb was bound against stale
// state.
type MoveZone struct {
	From string
	To   string
}

func (e MoveZone) Name() string { return "move_zone" }

func (e MoveZone) Apply(ctx *Context) error {
	for _, subject := range ctx.Subjects() {
		if e.From != "" {
			current := subject.GetString(PropZone)
			if current != e.From {
				return fmt.Errorf("move %s: in zone %q, not %q", subject.ID(), current, e.From)
			}
		}
		if err := ctx.Write(subject, PropZone, e.To); err != nil {
			return err
		}
	}
	return nil
}

func (e MoveZone) Preview(ctx *Context) string {
	if e.From == "" {
		return fmt.Sprintf("move %s to %s", subjectsLabel(ctx), e.To)
	}
	return fmt.Sprintf("move %s from %s to %s", subjectsLabel(ctx), e.From, e.To)
}

// EmitEvent publishes a structured analytics payload on the knowledge base
// bus. Payload expressions are evaluated at apply time. Emitting writes no
// properties, so undo has nothing to restore and does not retract the event.
type EmitEvent struct {
	Event   string
	Payload map[string]Expr
}

func (e EmitEvent) Name() string { return "emit_event" }

func (e EmitEvent) Apply(ctx *Context) error {
	var data map[string]any
	if len(e.Payload) > 0 {
		data = make(map[string]any, len(e.Payload))
		for key, expr := range e.Payload {
			data[key] = expr.eval(ctx)
		}
	}
	ctx.KB.Bus().Publish(kb.Event{
		Type:    kb.EventAnalytics,
		Payload: kb.Analytics{Verb: ctx.verbName(), Name: e.Event, Data: data},
	})
	return nil
}

func (e EmitEvent) Preview(ctx *Context) string {
	return fmt.Sprintf("emit %s", e.Event)
}
