package mirror

import (
	"grimoire/internal/domain"
	"grimoire/internal/verb"
)

// Classes the mirror maintains. Catalog files may pre-register richer
// revisions of these before the mirror is built; existing definitions win.
const (
	ClassCard   = "card"
	ClassToken  = "token"
	ClassPlayer = "player"
	ClassGame   = "game"
)

func (m *Mirror) ensureSchemas() error {
	builders := []struct {
		class string
		build func() (*domain.Definition, error)
	}{
		{ClassCard, func() (*domain.Definition, error) {
			return cardDefinition(ClassCard, "a card tracked from the host engine's events")
		}},
		{ClassToken, func() (*domain.Definition, error) {
			return cardDefinition(ClassToken, "a token permanent created during play")
		}},
		{ClassPlayer, playerDefinition},
		{ClassGame, gameDefinition},
	}
	for _, b := range builders {
		if _, ok := m.kb.GetDefinition(b.class); ok {
			continue
		}
		def, err := b.build()
		if err != nil {
			return err
		}
		if err := m.kb.RegisterDefinition(def); err != nil {
			return err
		}
	}
	return nil
}

// cardDefinition is deliberately permissive: zone and controller are free
// text because feeds disagree on vocabularies, and nothing is required
// because instances materialize from whatever event arrives first.
func cardDefinition(class, description string) (*domain.Definition, error) {
	power, err := domain.NewIntegerDomain(i64(-999), i64(999))
	if err != nil {
		return nil, err
	}
	toughness, err := domain.NewIntegerDomain(i64(-999), i64(999))
	if err != nil {
		return nil, err
	}
	damage, err := domain.NewIntegerDomain(i64(0), nil)
	if err != nil {
		return nil, err
	}
	counterValues, err := domain.NewIntegerDomain(i64(0), nil)
	if err != nil {
		return nil, err
	}
	counters, err := domain.NewMapDomain(nil, nil, nil, counterValues)
	if err != nil {
		return nil, err
	}
	props := []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("zone", "", nil),
		domain.MustProperty("status", verb.StatusUntapped, domain.NewEnumDomain(verb.StatusUntapped, verb.StatusTapped)),
		domain.MustProperty("power", int64(0), power),
		domain.MustProperty("toughness", int64(0), toughness),
		domain.MustProperty("damage", int64(0), damage),
		domain.MustProperty("controller", "", nil),
		domain.MustProperty("attached_to", "", nil),
		domain.MustProperty("attacking", false, domain.NewBooleanDomain()),
		domain.MustProperty("blocking", "", nil),
		domain.MustProperty("counters", map[string]any{}, counters),
	}
	return domain.NewDefinition(class, description, props, nil)
}

func playerDefinition() (*domain.Definition, error) {
	life, err := domain.NewIntegerDomain(nil, nil)
	if err != nil {
		return nil, err
	}
	nonNegative, err := domain.NewIntegerDomain(i64(0), nil)
	if err != nil {
		return nil, err
	}
	props := []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("life", int64(20), life),
		domain.MustProperty("poison", int64(0), nonNegative),
		domain.MustProperty("hand_size", int64(7), nonNegative),
		domain.MustProperty("mana", int64(0), nonNegative),
		domain.MustProperty("lost", false, domain.NewBooleanDomain()),
		domain.MustProperty("won", false, domain.NewBooleanDomain()),
	}
	return domain.NewDefinition(ClassPlayer, "a player seated in the mirrored game", props, nil)
}

func gameDefinition() (*domain.Definition, error) {
	turn, err := domain.NewIntegerDomain(i64(0), nil)
	if err != nil {
		return nil, err
	}
	props := []*domain.Property{
		domain.MustProperty("turn", int64(0), turn),
		domain.MustProperty("phase", "", nil),
		domain.MustProperty("step", "", nil),
		domain.MustProperty("active_player", "", nil),
		domain.MustProperty("started", false, domain.NewBooleanDomain()),
		domain.MustProperty("ended", false, domain.NewBooleanDomain()),
		domain.MustProperty("winner", "", nil),
	}
	return domain.NewDefinition(ClassGame, "the mirrored game itself", props, nil)
}

func i64(n int64) *int64 { return &n }
