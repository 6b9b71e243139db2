package loader

import (
	"fmt"

	"grimoire/internal/domain"
	"grimoire/internal/verb"
)

// catalogYAML is the document shape of a catalog file. Definition files
// conventionally carry only the definitions section and verb files only the
// verbs section, but the parser accepts either section in either file.
type catalogYAML struct {
	Definitions []definitionYAML `yaml:"definitions,omitempty"`
	Verbs       []verbYAML       `yaml:"verbs,omitempty"`
}

// definitionYAML declares one entity class
type definitionYAML struct {
	Class       string         `yaml:"class"`
	Description string         `yaml:"description,omitempty"`
	Properties  []propertyYAML `yaml:"properties"`
	Required    []string       `yaml:"required,omitempty"`
}

type propertyYAML struct {
	Name    string       `yaml:"name"`
	Default any          `yaml:"default"`
	Domain  *domain.Decl `yaml:"domain,omitempty"`
}

// verbYAML declares one verb by composing named built-ins
type verbYAML struct {
	Name          string              `yaml:"name"`
	Category      string              `yaml:"category,omitempty"`
	Description   string              `yaml:"description,omitempty"`
	Prerequisites []prereqYAML        `yaml:"prerequisites,omitempty"`
	Targets       []targetYAML        `yaml:"targets,omitempty"`
	Costs         []costYAML          `yaml:"costs,omitempty"`
	Effects       []effectYAML        `yaml:"effects,omitempty"`
	Variables     map[string]exprYAML `yaml:"variables,omitempty"`
	Metadata      map[string]string   `yaml:"metadata,omitempty"`
}

type prereqYAML struct {
	Kind     string `yaml:"kind"`
	Property string `yaml:"property,omitempty"`
	Value    any    `yaml:"value,omitempty"`
}

type targetYAML struct {
	Class string             `yaml:"class,omitempty"`
	Min   int                `yaml:"min"`
	Max   int                `yaml:"max"`
	Where []domain.Condition `yaml:"where,omitempty"`
}

type costYAML struct {
	Kind     string    `yaml:"kind"`
	Property string    `yaml:"property,omitempty"`
	Amount   *exprYAML `yaml:"amount,omitempty"`
}

type effectYAML struct {
	Kind     string              `yaml:"kind"`
	Property string              `yaml:"property,omitempty"`
	Value    *exprYAML           `yaml:"value,omitempty"`
	Delta    *exprYAML           `yaml:"delta,omitempty"`
	From     string              `yaml:"from,omitempty"`
	To       string              `yaml:"to,omitempty"`
	Event    string              `yaml:"event,omitempty"`
	Payload  map[string]exprYAML `yaml:"payload,omitempty"`
}

// exprYAML declares a value: a literal constant or a read against the
// execution context
type exprYAML struct {
	Kind     string `yaml:"kind"`
	Value    any    `yaml:"value,omitempty"`
	Property string `yaml:"property,omitempty"`
	Index    int    `yaml:"index,omitempty"`
	Name     string `yaml:"name,omitempty"`
}

func buildDefinition(dy definitionYAML, resolver domain.Resolver) (*domain.Definition, error) {
	if dy.Class == "" {
		return nil, fmt.Errorf("definition has no class")
	}
	prototypes := make([]*domain.Property, 0, len(dy.Properties))
	for _, py := range dy.Properties {
		if py.Name == "" {
			return nil, fmt.Errorf("class %s: property has no name", dy.Class)
		}
		d, err := py.Domain.Build(resolver)
		if err != nil {
			return nil, fmt.Errorf("class %s property %s: %w", dy.Class, py.Name, err)
		}
		p, err := domain.NewProperty(py.Name, py.Default, d)
		if err != nil {
			return nil, fmt.Errorf("class %s property %s: %w", dy.Class, py.Name, err)
		}
		prototypes = append(prototypes, p)
	}
	def, err := domain.NewDefinition(dy.Class, dy.Description, prototypes, dy.Required)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", dy.Class, err)
	}
	return def, nil
}

func buildVerb(vy verbYAML) (*verb.Definition, error) {
	if vy.Name == "" {
		return nil, fmt.Errorf("verb has no name")
	}
	def := &verb.Definition{
		Name:        vy.Name,
		Category:    vy.Category,
		Description: vy.Description,
		Metadata:    vy.Metadata,
	}

	for i, py := range vy.Prerequisites {
		p, err := buildPrereq(py)
		if err != nil {
			return nil, fmt.Errorf("verb %s prerequisite %d: %w", vy.Name, i, err)
		}
		def.Prereqs = append(def.Prereqs, p)
	}

	for i, ty := range vy.Targets {
		spec, err := buildTarget(ty)
		if err != nil {
			return nil, fmt.Errorf("verb %s target %d: %w", vy.Name, i, err)
		}
		def.Targets = append(def.Targets, spec)
	}

	for i, cy := range vy.Costs {
		c, err := buildCost(cy)
		if err != nil {
			return nil, fmt.Errorf("verb %s cost %d: %w", vy.Name, i, err)
		}
		def.Costs = append(def.Costs, c)
	}

	for i, ey := range vy.Effects {
		e, err := buildEffect(ey)
		if err != nil {
			return nil, fmt.Errorf("verb %s effect %d: %w", vy.Name, i, err)
		}
		def.Effects = append(def.Effects, e)
	}

	if len(vy.Variables) > 0 {
		def.Variables = make(map[string]verb.Expr, len(vy.Variables))
		for name, ey := range vy.Variables {
			expr, err := buildExpr(&ey)
			if err != nil {
				return nil, fmt.Errorf("verb %s variable %s: %w", vy.Name, name, err)
			}
			def.Variables[name] = expr
		}
	}

	return def, nil
}

func buildPrereq(py prereqYAML) (verb.Prerequisite, error) {
	switch py.Kind {
	case "has_property":
		if py.Property == "" {
			return verb.Prerequisite{}, fmt.Errorf("has_property needs a property")
		}
		property := py.Property
		return verb.Prerequisite{
			Name: "has " + property,
			Check: func(in *domain.Instance) bool {
				if in == nil {
					return false
				}
				_, err := in.GetProperty(property)
				return err == nil
			},
		}, nil
	case "property_equals":
		if py.Property == "" {
			return verb.Prerequisite{}, fmt.Errorf("property_equals needs a property")
		}
		property, want := py.Property, py.Value
		return verb.Prerequisite{
			Name: fmt.Sprintf("%s equals %v", property, want),
			Check: func(in *domain.Instance) bool {
				if in == nil {
					return false
				}
				v, err := in.GetProperty(property)
				if err != nil {
					return false
				}
				return domain.EquivalentValues(v, want)
			},
		}, nil
	case "":
		return verb.Prerequisite{}, fmt.Errorf("prerequisite has no kind")
	}
	return verb.Prerequisite{}, fmt.Errorf("unknown prerequisite kind %q", py.Kind)
}

func buildTarget(ty targetYAML) (verb.TargetSpec, error) {
	if ty.Min < 0 {
		return verb.TargetSpec{}, fmt.Errorf("min %d is negative", ty.Min)
	}
	if ty.Max > 0 && ty.Max < ty.Min {
		return verb.TargetSpec{}, fmt.Errorf("max %d is below min %d", ty.Max, ty.Min)
	}
	spec := verb.TargetSpec{Class: ty.Class, Min: ty.Min, Max: ty.Max}
	if len(ty.Where) > 0 {
		for _, cond := range ty.Where {
			if cond.Property == "" {
				return verb.TargetSpec{}, fmt.Errorf("where clause has no property")
			}
			if !cond.Op.Valid() {
				return verb.TargetSpec{}, fmt.Errorf("unknown condition op %q", cond.Op)
			}
		}
		spec.Filter = verb.Where(whereName(ty.Where), ty.Where...)
	}
	return spec, nil
}

func whereName(conds []domain.Condition) string {
	name := ""
	for i, c := range conds {
		if i > 0 {
			name += " and "
		}
		name += fmt.Sprintf("%s %s %v", c.Property, c.Op, c.Value)
	}
	return name
}

func buildCost(cy costYAML) (verb.Cost, error) {
	switch cy.Kind {
	case "tap_source":
		return verb.TapSource{}, nil
	case "property_threshold":
		if cy.Property == "" {
			return nil, fmt.Errorf("property_threshold needs a property")
		}
		amount, err := buildExpr(cy.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		if amount == nil {
			return nil, fmt.Errorf("property_threshold needs an amount")
		}
		return verb.PropertyThreshold{Property: cy.Property, Amount: amount}, nil
	case "":
		return nil, fmt.Errorf("cost has no kind")
	}
	return nil, fmt.Errorf("unknown cost kind %q", cy.Kind)
}

func buildEffect(ey effectYAML) (verb.Effect, error) {
	switch ey.Kind {
	case "set_property":
		if ey.Property == "" {
			return nil, fmt.Errorf("set_property needs a property")
		}
		value, err := buildExpr(ey.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		if value == nil {
			return nil, fmt.Errorf("set_property needs a value")
		}
		return verb.SetProperty{Property: ey.Property, Value: value}, nil
	case "adjust_property":
		if ey.Property == "" {
			return nil, fmt.Errorf("adjust_property needs a property")
		}
		delta, err := buildExpr(ey.Delta)
		if err != nil {
			return nil, fmt.Errorf("delta: %w", err)
		}
		if delta == nil {
			return nil, fmt.Errorf("adjust_property needs a delta")
		}
		return verb.AdjustProperty{Property: ey.Property, Delta: delta}, nil
	case "move_zone":
		if ey.To == "" {
			return nil, fmt.Errorf("move_zone needs a destination")
		}
		return verb.MoveZone{From: ey.From, To: ey.To}, nil
	case "emit_event":
		if ey.Event == "" {
			return nil, fmt.Errorf("emit_event needs an event name")
		}
		effect := verb.EmitEvent{Event: ey.Event}
		if len(ey.Payload) > 0 {
			effect.Payload = make(map[string]verb.Expr, len(ey.Payload))
			for key, ev := range ey.Payload {
				expr, err := buildExpr(&ev)
				if err != nil {
					return nil, fmt.Errorf("payload %s: %w", key, err)
				}
				effect.Payload[key] = expr
			}
		}
		return effect, nil
	case "":
		return nil, fmt.Errorf("effect has no kind")
	}
	return nil, fmt.Errorf("unknown effect kind %q", ey.Kind)
}

func buildExpr(ey *exprYAML) (verb.Expr, error) {
	if ey == nil {
		return nil, nil
	}
	switch ey.Kind {
	case "const":
		return verb.Const(ey.Value), nil
	case "from_source":
		if ey.Property == "" {
			return nil, fmt.Errorf("from_source needs a property")
		}
		return verb.FromSource(ey.Property), nil
	case "from_target":
		if ey.Property == "" {
			return nil, fmt.Errorf("from_target needs a property")
		}
		if ey.Index < 0 {
			return nil, fmt.Errorf("from_target index %d is negative", ey.Index)
		}
		return verb.FromTarget(ey.Index, ey.Property), nil
	case "from_binding":
		if ey.Name == "" {
			return nil, fmt.Errorf("from_binding needs a name")
		}
		return verb.FromBinding(ey.Name), nil
	case "":
		return nil, fmt.Errorf("expression has no kind")
	}
	return nil, fmt.Errorf("unknown expression kind %q", ey.Kind)
}
