package verb

import (
	"testing"

	"grimoire/internal/domain"
	"grimoire/internal/kb"
)

func newTestKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	k := kb.New()

	power, err := domain.NewIntegerDomain(int64Ptr(0), int64Ptr(999))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	damage, err := domain.NewIntegerDomain(int64Ptr(0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mana, err := domain.NewIntegerDomain(int64Ptr(0), int64Ptr(99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cardDef, err := domain.NewDefinition("card", "a game card", []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("power", int64(0), power),
		domain.MustProperty("damage", int64(0), damage),
		domain.MustProperty("mana", int64(0), mana),
		domain.MustProperty("weight", int64(0), nil),
		domain.MustProperty("status", "untapped", domain.NewEnumDomain("untapped", "tapped")),
		domain.MustProperty("zone", "library", domain.NewEnumDomain("library", "hand", "battlefield", "graveyard", "stack", "exile")),
	}, []string{"name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	life, err := domain.NewIntegerDomain(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	playerDef, err := domain.NewDefinition("player", "a player", []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("life", int64(20), life),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.RegisterDefinition(cardDef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.RegisterDefinition(playerDef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return k
}

func int64Ptr(n int64) *int64 { return &n }

func newCard(t *testing.T, k *kb.KnowledgeBase, id string, overrides map[string]any) *domain.Instance {
	t.Helper()
	if overrides == nil {
		overrides = map[string]any{}
	}
	if _, ok := overrides["name"]; !ok {
		overrides["name"] = id
	}
	in, err := k.CreateInstance("card", id, overrides)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return in
}

func newPlayer(t *testing.T, k *kb.KnowledgeBase, id string) *domain.Instance {
	t.Helper()
	in, err := k.CreateInstance("player", id, map[string]any{"name": id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return in
}

func TestTargetCursor(t *testing.T) {
	twoSpecs := &Definition{
		Name: "two-slot",
		Targets: []TargetSpec{
			{Class: "card", Min: 1, Max: 1},
			{Class: "player", Min: 1, Max: 2},
		},
	}

	t.Run("candidates in declared order satisfy the specs", func(t *testing.T) {
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		p1 := newPlayer(t, k, "p1")
		p2 := newPlayer(t, k, "p2")
		if !twoSpecs.IsAvailable(k, nil, []*domain.Instance{c1, p1, p2}) {
			t.Error("expected verb to be available")
		}
	})

	t.Run("cursor never backtracks past a rejected candidate", func(t *testing.T) {
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		p1 := newPlayer(t, k, "p1")
		p2 := newPlayer(t, k, "p2")
		if twoSpecs.IsAvailable(k, nil, []*domain.Instance{p1, c1, p2}) {
			t.Error("expected verb to be unavailable when the first slot's match comes second")
		}
	})

	t.Run("trailing unconsumed candidates are ignored", func(t *testing.T) {
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		c2 := newCard(t, k, "c2", nil)
		p1 := newPlayer(t, k, "p1")
		p2 := newPlayer(t, k, "p2")
		if !twoSpecs.IsAvailable(k, nil, []*domain.Instance{c1, p1, p2, c2}) {
			t.Error("expected verb to be available with extra trailing candidates")
		}
	})

	t.Run("a non-matching candidate ends the slot's run", func(t *testing.T) {
		def := &Definition{
			Name:    "pair",
			Targets: []TargetSpec{{Class: "card", Min: 2, Max: 2}},
		}
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		c2 := newCard(t, k, "c2", nil)
		p1 := newPlayer(t, k, "p1")
		if def.IsAvailable(k, nil, []*domain.Instance{c1, p1, c2}) {
			t.Error("expected the interrupting player to end the card run")
		}
	})

	t.Run("wildcard class accepts any instance", func(t *testing.T) {
		def := &Definition{
			Name:    "any-two",
			Targets: []TargetSpec{{Class: "*", Min: 2, Max: 2}},
		}
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		p1 := newPlayer(t, k, "p1")
		if !def.IsAvailable(k, nil, []*domain.Instance{c1, p1}) {
			t.Error("expected wildcard spec to accept mixed classes")
		}
	})

	t.Run("filter narrows acceptance", func(t *testing.T) {
		def := &Definition{
			Name: "tapped-only",
			Targets: []TargetSpec{{
				Class:  "card",
				Min:    1,
				Max:    1,
				Filter: Where("tapped", domain.Eq("status", "tapped")),
			}},
		}
		k := newTestKB(t)
		untapped := newCard(t, k, "c1", nil)
		tapped := newCard(t, k, "c2", map[string]any{"status": "tapped"})
		if def.IsAvailable(k, nil, []*domain.Instance{untapped}) {
			t.Error("expected untapped card to be rejected by the filter")
		}
		if !def.IsAvailable(k, nil, []*domain.Instance{tapped}) {
			t.Error("expected tapped card to pass the filter")
		}
	})

	t.Run("max of zero means unbounded", func(t *testing.T) {
		def := &Definition{
			Name:    "sweep",
			Targets: []TargetSpec{{Class: "card", Min: 1, Max: 0}},
		}
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		c2 := newCard(t, k, "c2", nil)
		c3 := newCard(t, k, "c3", nil)
		vi, err := def.Bind(k, nil, []*domain.Instance{c1, c2, c3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vi.Targets()) != 3 {
			t.Errorf("expected 3 bound targets, got %d", len(vi.Targets()))
		}
	})
}

func TestIsAvailable(t *testing.T) {
	t.Run("prerequisite failure short-circuits", func(t *testing.T) {
		def := &Definition{
			Name: "never",
			Prereqs: []Prerequisite{{
				Name:  "always false",
				Check: func(*domain.Instance) bool { return false },
			}},
		}
		k := newTestKB(t)
		if def.IsAvailable(k, nil, nil) {
			t.Error("expected failing prerequisite to make the verb unavailable")
		}
	})

	t.Run("cost payability is probed", func(t *testing.T) {
		def := &Definition{Name: "tap-me", Costs: []Cost{TapSource{}}}
		k := newTestKB(t)
		untapped := newCard(t, k, "c1", nil)
		tapped := newCard(t, k, "c2", map[string]any{"status": "tapped"})
		if !def.IsAvailable(k, untapped, nil) {
			t.Error("expected untapped source to afford the tap cost")
		}
		if def.IsAvailable(k, tapped, nil) {
			t.Error("expected tapped source to fail the tap cost")
		}
	})

	t.Run("the probe mutates nothing", func(t *testing.T) {
		def := &Definition{Name: "tap-me", Costs: []Cost{TapSource{}}}
		k := newTestKB(t)
		source := newCard(t, k, "c1", nil)
		if !def.IsAvailable(k, source, nil) {
			t.Fatal("expected verb to be available")
		}
		if got := source.GetString("status"); got != "untapped" {
			t.Errorf("expected probe to leave status untapped, got %s", got)
		}
	})
}

func TestBind(t *testing.T) {
	t.Run("variables resolve once at bind time", func(t *testing.T) {
		def := &Definition{
			Name:      "snapshot",
			Variables: map[string]Expr{"power_then": FromSource("power")},
		}
		k := newTestKB(t)
		source := newCard(t, k, "c1", map[string]any{"power": int64(4)})
		vi, err := def.Bind(k, source, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := source.SetProperty("power", int64(9)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := vi.Bindings()["power_then"]; got != int64(4) {
			t.Errorf("expected binding to hold the bind-time value 4, got %v", got)
		}
	})

	t.Run("returned bindings are copies", func(t *testing.T) {
		def := &Definition{
			Name:      "snapshot",
			Variables: map[string]Expr{"n": Const(int64(1))},
		}
		k := newTestKB(t)
		vi, err := def.Bind(k, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		vi.Bindings()["n"] = int64(99)
		if got := vi.Bindings()["n"]; got != int64(1) {
			t.Errorf("expected binding to stay 1, got %v", got)
		}
	})

	t.Run("targets must satisfy the specs exactly", func(t *testing.T) {
		def := &Definition{
			Name:    "one-card",
			Targets: []TargetSpec{{Class: "card", Min: 1, Max: 1}},
		}
		k := newTestKB(t)
		c1 := newCard(t, k, "c1", nil)
		c2 := newCard(t, k, "c2", nil)
		if _, err := def.Bind(k, nil, []*domain.Instance{c1, c2}); err == nil {
			t.Error("expected error for an extra unconsumed target")
		}
		p1 := newPlayer(t, k, "p1")
		if _, err := def.Bind(k, nil, []*domain.Instance{p1}); err == nil {
			t.Error("expected error for a wrong-class target")
		}
	})

	t.Run("bound instances get distinct ids", func(t *testing.T) {
		def := &Definition{Name: "noop"}
		k := newTestKB(t)
		a, err := def.Bind(k, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := def.Bind(k, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ID() == "" || b.ID() == "" {
			t.Fatal("expected non-empty instance ids")
		}
		if a.ID() == b.ID() {
			t.Error("expected distinct ids for distinct binds")
		}
	})
}
