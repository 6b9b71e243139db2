package verb

import "grimoire/internal/domain"

// RegisterBuiltins installs the fixed library of generic card actions. The
// event mirror executes these to keep the execution log aligned with the
// host engine's action history; YAML catalogs layer game-specific verbs on
// top. Builtin names are reserved first, so a catalog colliding with one is
// caught at load time.
func RegisterBuiltins(c *Catalog) error {
	builtins := []*Definition{
		tapVerb(),
		untapVerb(),
		destroyVerb(),
		drawVerb(),
	}
	for _, def := range builtins {
		if err := c.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func hasProperty(name string) Prerequisite {
	return Prerequisite{
		Name: "has " + name,
		Check: func(in *domain.Instance) bool {
			if in == nil {
				return false
			}
			_, err := in.GetProperty(name)
			return err == nil
		},
	}
}

// tapVerb taps the acting permanent. The whole action is the cost: it
// fizzles when the source is already tapped, which is exactly the audit
// signal the mirror wants for duplicate tap events.
func tapVerb() *Definition {
	return &Definition{
		Name:        "tap",
		Category:    "permanent",
		Description: "Tap the acting permanent.",
		Prereqs:     []Prerequisite{hasProperty(PropStatus)},
		Costs:       []Cost{TapSource{}},
	}
}

func untapVerb() *Definition {
	return &Definition{
		Name:        "untap",
		Category:    "permanent",
		Description: "Untap the acting permanent.",
		Prereqs: []Prerequisite{{
			Name: "source tapped",
			Check: func(in *domain.Instance) bool {
				return in != nil && in.GetString(PropStatus) == StatusTapped
			},
		}},
		Effects: []Effect{SetProperty{Property: PropStatus, Value: Const(StatusUntapped)}},
	}
}

func destroyVerb() *Definition {
	return &Definition{
		Name:        "destroy",
		Category:    "permanent",
		Description: "Put the targeted card into its graveyard.",
		Targets:     []TargetSpec{{Class: "card", Min: 1, Max: 1}},
		Effects: []Effect{
			MoveZone{To: "graveyard"},
			EmitEvent{Event: "destroyed", Payload: map[string]Expr{"card": FromTarget(0, "name")}},
		},
	}
}

func drawVerb() *Definition {
	return &Definition{
		Name:        "draw",
		Category:    "player",
		Description: "Move the targeted card from its library to its owner's hand.",
		Targets:     []TargetSpec{{Class: "card", Min: 1, Max: 1}},
		Effects:     []Effect{MoveZone{From: "library", To: "hand"}},
	}
}
