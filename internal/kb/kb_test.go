package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"grimoire/internal/domain"
)

func newTestKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	k := New()

	power, err := domain.NewIntegerDomain(int64Ptr(0), int64Ptr(999))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cardDef, err := domain.NewDefinition("card", "a game card", []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("power", int64(0), power),
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

func TestRegisterDefinition(t *testing.T) {
	t.Run("registration is an upsert", func(t *testing.T) {
		k := newTestKB(t)
		replacement, _ := domain.NewDefinition("card", "second revision", []*domain.Property{
			domain.MustProperty("name", "", nil),
		}, nil)
		if err := k.RegisterDefinition(replacement); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		def, ok := k.GetDefinition("card")
		if !ok {
			t.Fatal("expected definition to exist")
		}
		if def.Description() != "second revision" {
			t.Errorf("expected replacement to win, got %s", def.Description())
		}
	})

	t.Run("nil definition is rejected", func(t *testing.T) {
		k := New()
		if err := k.RegisterDefinition(nil); err == nil {
			t.Error("expected error for nil definition")
		}
	})

	t.Run("definitions come back sorted", func(t *testing.T) {
		k := newTestKB(t)
		defs := k.Definitions()
		if len(defs) != 2 {
			t.Fatalf("expected 2 definitions, got %d", len(defs))
		}
		if defs[0].Class() != "card" || defs[1].Class() != "player" {
			t.Errorf("expected sorted classes, got %s, %s", defs[0].Class(), defs[1].Class())
		}
	})
}

func TestCreateInstance(t *testing.T) {
	t.Run("creates and indexes", func(t *testing.T) {
		k := newTestKB(t)
		in, err := k.CreateInstance("card", "card-001", map[string]any{"name": "Grizzly Bears", "power": int64(2)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.GetString("name") != "Grizzly Bears" {
			t.Errorf("expected override applied, got %s", in.GetString("name"))
		}
		got, ok := k.GetInstance("card-001")
		if !ok || got != in {
			t.Error("expected instance indexed by id")
		}
		byClass := k.GetInstancesByClass("card")
		if len(byClass) != 1 || byClass[0] != in {
			t.Error("expected instance indexed by class")
		}
		if !k.HasInstance("card-001") {
			t.Error("expected HasInstance to see the id")
		}
	})

	t.Run("unknown class", func(t *testing.T) {
		k := newTestKB(t)
		_, err := k.CreateInstance("planeswalker", "pw-1", nil)
		if !errors.Is(err, ErrUnknownClass) {
			t.Errorf("expected ErrUnknownClass, got %v", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		k := newTestKB(t)
		if _, err := k.CreateInstance("card", "card-001", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := k.CreateInstance("card", "card-001", nil)
		if !errors.Is(err, ErrDuplicateID) {
			t.Errorf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("rejected overrides leave no trace", func(t *testing.T) {
		k := newTestKB(t)
		_, err := k.CreateInstance("card", "card-002", map[string]any{"power": int64(5000)})
		if err == nil {
			t.Fatal("expected violation error")
		}
		var ve *domain.ViolationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ViolationError, got %T", err)
		}
		if k.HasInstance("card-002") {
			t.Error("expected no instance registered after rejected overrides")
		}
		if len(k.GetInstancesByClass("card")) != 0 {
			t.Error("expected class index untouched")
		}
	})
}

func TestGetOrCreate(t *testing.T) {
	t.Run("second call finds the first", func(t *testing.T) {
		k := newTestKB(t)
		a, created, err := k.GetOrCreate("card", "card-010", nil)
		if err != nil || !created {
			t.Fatalf("expected creation, got created=%v err=%v", created, err)
		}
		b, created, err := k.GetOrCreate("card", "card-010", nil)
		if err != nil || created {
			t.Fatalf("expected find, got created=%v err=%v", created, err)
		}
		if a != b {
			t.Error("expected both calls to resolve to one instance")
		}
	})

	t.Run("concurrent calls resolve to one instance", func(t *testing.T) {
		k := newTestKB(t)
		const workers = 16
		results := make([]*domain.Instance, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				in, _, err := k.GetOrCreate("card", "card-contested", nil)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				results[slot] = in
			}(i)
		}
		wg.Wait()
		for i := 1; i < workers; i++ {
			if results[i] != results[0] {
				t.Fatal("expected every worker to get the same instance")
			}
		}
		if len(k.GetInstancesByClass("card")) != 1 {
			t.Errorf("expected exactly one indexed instance, got %d", len(k.GetInstancesByClass("card")))
		}
	})
}

func TestQuery(t *testing.T) {
	k := newTestKB(t)
	seed := []struct {
		id    string
		name  string
		power int64
		zone  string
	}{
		{"card-a", "Grizzly Bears", 2, "battlefield"},
		{"card-b", "Hill Giant", 3, "battlefield"},
		{"card-c", "Storm Crow", 1, "graveyard"},
	}
	for _, s := range seed {
		if _, err := k.CreateInstance("card", s.id, map[string]any{
			"name": s.name, "power": s.power, "zone": s.zone,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	t.Run("single condition", func(t *testing.T) {
		got := k.Query("card", domain.Eq("zone", "battlefield"))
		if len(got) != 2 {
			t.Errorf("expected 2 matches, got %d", len(got))
		}
	})

	t.Run("conditions apply left to right", func(t *testing.T) {
		got := k.Query("card", domain.Eq("zone", "battlefield"), domain.Gt("power", int64(2)))
		if len(got) != 1 {
			t.Fatalf("expected 1 match, got %d", len(got))
		}
		if got[0].ID() != "card-b" {
			t.Errorf("expected card-b, got %s", got[0].ID())
		}
	})

	t.Run("empty intermediate short-circuits", func(t *testing.T) {
		got := k.Query("card", domain.Eq("zone", "exile"), domain.Gt("power", int64(0)))
		if len(got) != 0 {
			t.Errorf("expected no matches, got %d", len(got))
		}
	})

	t.Run("unknown class yields empty", func(t *testing.T) {
		if got := k.Query("token"); len(got) != 0 {
			t.Errorf("expected no matches, got %d", len(got))
		}
	})

	t.Run("no conditions returns the class", func(t *testing.T) {
		if got := k.Query("card"); len(got) != 3 {
			t.Errorf("expected 3 matches, got %d", len(got))
		}
	})
}

func TestGetInstancesByClassIsACopy(t *testing.T) {
	k := newTestKB(t)
	if _, err := k.CreateInstance("card", "card-a", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := k.GetInstancesByClass("card")
	got[0] = nil
	again := k.GetInstancesByClass("card")
	if again[0] == nil {
		t.Error("expected registry index unaffected by caller mutation")
	}
}

func TestRemoveInstance(t *testing.T) {
	t.Run("unindexes both maps", func(t *testing.T) {
		k := newTestKB(t)
		if _, err := k.CreateInstance("card", "card-a", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := k.RemoveInstance("card-a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if k.HasInstance("card-a") {
			t.Error("expected id index cleared")
		}
		if len(k.GetInstancesByClass("card")) != 0 {
			t.Error("expected class index cleared")
		}
	})

	t.Run("missing instance", func(t *testing.T) {
		k := newTestKB(t)
		if err := k.RemoveInstance("card-zzz"); err == nil {
			t.Error("expected error for missing instance")
		}
	})

	t.Run("id becomes reusable", func(t *testing.T) {
		k := newTestKB(t)
		if _, err := k.CreateInstance("card", "card-a", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := k.RemoveInstance("card-a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := k.CreateInstance("card", "card-a", nil); err != nil {
			t.Errorf("expected id to be reusable, got %v", err)
		}
	})
}

func TestUpdateInstance(t *testing.T) {
	k := newTestKB(t)
	if _, err := k.CreateInstance("card", "card-a", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("applies and announces", func(t *testing.T) {
		ch := make(chan Event, 4)
		k.Bus().Subscribe(ch)
		if err := k.UpdateInstance("card-a", map[string]any{"status": "tapped"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		in, _ := k.GetInstance("card-a")
		if in.GetString("status") != "tapped" {
			t.Errorf("expected tapped, got %s", in.GetString("status"))
		}
		select {
		case ev := <-ch:
			if ev.Type != EventInstanceUpdated {
				t.Errorf("expected instance_updated, got %s", ev.Type)
			}
		default:
			t.Error("expected a bus event")
		}
	})

	t.Run("missing instance", func(t *testing.T) {
		if err := k.UpdateInstance("card-zzz", nil); err == nil {
			t.Error("expected error for missing instance")
		}
	})

	t.Run("violation propagates unapplied", func(t *testing.T) {
		err := k.UpdateInstance("card-a", map[string]any{"power": int64(-4)})
		if err == nil {
			t.Fatal("expected violation error")
		}
	})
}

func TestExecutionLog(t *testing.T) {
	k := newTestKB(t)

	t.Run("record and mark undone", func(t *testing.T) {
		ex := &domain.Execution{ID: "ex-1", Verb: "tap", SourceID: "card-a", Writes: 1}
		k.RecordExecution(ex)
		got, ok := k.GetExecution("ex-1")
		if !ok {
			t.Fatal("expected execution to be logged")
		}
		if got.Verb != "tap" {
			t.Errorf("expected verb tap, got %s", got.Verb)
		}
		if err := k.MarkExecutionUndone("ex-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ = k.GetExecution("ex-1")
		if !got.Undone || got.UndoneAt == nil {
			t.Error("expected execution flagged undone")
		}
	})

	t.Run("mark unknown execution", func(t *testing.T) {
		if err := k.MarkExecutionUndone("ex-zzz"); err == nil {
			t.Error("expected error for unknown execution")
		}
	})

	t.Run("log preserves order", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			k.RecordExecution(&domain.Execution{ID: fmt.Sprintf("ex-order-%d", i), Verb: "tap"})
		}
		log := k.Executions()
		if len(log) < 3 {
			t.Fatalf("expected at least 3 records, got %d", len(log))
		}
		last := log[len(log)-1]
		if last.ID != "ex-order-2" {
			t.Errorf("expected newest last, got %s", last.ID)
		}
	})
}

// newRefKB extends the test registry with a "pet" class whose owner
// property is a reference domain resolved by the knowledge base itself,
// the wiring the catalog loader and snapshot import produce.
func newRefKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	k := newTestKB(t)
	if _, err := k.CreateInstance("player", "p1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, err := domain.NewReferenceDomain("", k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	petDef, err := domain.NewDefinition("pet", "a companion", []*domain.Property{
		domain.MustProperty("name", "", nil),
		domain.MustProperty("owner", "p1", ref),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := k.RegisterDefinition(petDef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return k
}

// await fails the test if fn does not return promptly; a create that
// validates reference overrides under the registry lock never returns.
func await(t *testing.T, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("expected the call to return, timed out")
		return nil
	}
}

func TestCreateInstanceWithReferenceOverride(t *testing.T) {
	t.Run("valid reference override resolves against live registrations", func(t *testing.T) {
		k := newRefKB(t)
		var in *domain.Instance
		err := await(t, func() error {
			created, err := k.CreateInstance("pet", "pet-1", map[string]any{"owner": "p1"})
			in = created
			return err
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.GetString("owner") != "p1" {
			t.Errorf("expected owner p1, got %s", in.GetString("owner"))
		}
	})

	t.Run("unresolvable reference override is rejected without a trace", func(t *testing.T) {
		k := newRefKB(t)
		err := await(t, func() error {
			_, err := k.CreateInstance("pet", "pet-2", map[string]any{"owner": "ghost"})
			return err
		})
		if err == nil {
			t.Fatal("expected violation error")
		}
		var ve *domain.ViolationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ViolationError, got %T", err)
		}
		if k.HasInstance("pet-2") {
			t.Error("expected no instance registered after rejected overrides")
		}
	})

	t.Run("get-or-create follows the same validation path", func(t *testing.T) {
		k := newRefKB(t)
		err := await(t, func() error {
			_, created, err := k.GetOrCreate("pet", "pet-3", map[string]any{"owner": "p1"})
			if err == nil && !created {
				return fmt.Errorf("expected creation")
			}
			return err
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !k.HasInstance("pet-3") {
			t.Error("expected instance registered")
		}
	})
}

func TestReferenceDomainAgainstKB(t *testing.T) {
	k := newTestKB(t)
	if _, err := k.CreateInstance("player", "p1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ref, err := domain.NewReferenceDomain("", k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ref.Contains("p1") {
		t.Error("expected registered id to validate")
	}
	if ref.Contains("p2") {
		t.Error("expected unregistered id to fail")
	}
}
