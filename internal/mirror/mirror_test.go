package mirror

import (
	"testing"

	"grimoire/internal/engine"
	"grimoire/internal/kb"
	"grimoire/internal/verb"
)

func newTestMirror(t *testing.T) (*Mirror, *kb.KnowledgeBase) {
	t.Helper()
	k := kb.New()
	c := verb.NewCatalog()
	if err := verb.RegisterBuiltins(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := New(k, c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m, k
}

type panicEffect struct{}

func (panicEffect) Name() string                 { return "boom" }
func (panicEffect) Apply(*verb.Context) error    { panic("boom") }
func (panicEffect) Preview(*verb.Context) string { return "boom" }

func TestIngestFaultIsolation(t *testing.T) {
	k := kb.New()
	c := verb.NewCatalog()
	if err := c.Register(&verb.Definition{Name: "tap", Effects: []verb.Effect{panicEffect{}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := New(k, c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Ingest("test", engine.New(engine.KindLifeGained, "").WithPlayer("p1", "Alice").WithAmount(3))
	m.Ingest("test", engine.New(engine.KindPermanentTapped, "c1"))
	m.Ingest("test", engine.New(engine.KindCardDrawn, "c2"))

	player, ok := k.GetInstance("p1")
	if !ok {
		t.Fatal("expected first event applied")
	}
	if v, _ := player.GetProperty("life"); v != int64(23) {
		t.Errorf("expected life 23 from the first event, got %v", v)
	}
	card, ok := k.GetInstance("c2")
	if !ok {
		t.Fatal("expected third event applied")
	}
	if got := card.GetString("zone"); got != "hand" {
		t.Errorf("expected zone hand from the third event, got %s", got)
	}
	stats := m.Stats()
	if stats.Dropped != 1 {
		t.Errorf("expected 1 dropped event, got %d", stats.Dropped)
	}
	if stats.Handled != 2 {
		t.Errorf("expected 2 handled events, got %d", stats.Handled)
	}
	if stats.Total != 3 {
		t.Errorf("expected 3 total events, got %d", stats.Total)
	}
}

func TestLazyInstanceCreation(t *testing.T) {
	t.Run("unknown cards materialize from their first event", func(t *testing.T) {
		m, k := newTestMirror(t)
		ev := engine.New(engine.KindZoneChanged, "c9").WithZones("library", "battlefield")
		ev.ObjectName = "Storm Crow"
		m.Ingest("feed", ev)

		card, ok := k.GetInstance("c9")
		if !ok {
			t.Fatal("expected card to be created")
		}
		if card.Class() != "card" {
			t.Errorf("expected class card, got %s", card.Class())
		}
		if got := card.GetString("name"); got != "Storm Crow" {
			t.Errorf("expected name from the event, got %s", got)
		}
		if got := card.GetString("zone"); got != "battlefield" {
			t.Errorf("expected zone battlefield, got %s", got)
		}
	})

	t.Run("tokens get their own class", func(t *testing.T) {
		m, k := newTestMirror(t)
		ev := engine.New(engine.KindTokenCreated, "t1").WithPlayer("p1", "Alice")
		ev.ObjectName = "Soldier"
		m.Ingest("feed", ev)

		token, ok := k.GetInstance("t1")
		if !ok {
			t.Fatal("expected token to be created")
		}
		if token.Class() != "token" {
			t.Errorf("expected class token, got %s", token.Class())
		}
		if got := token.GetString("zone"); got != "battlefield" {
			t.Errorf("expected zone battlefield, got %s", got)
		}
	})
}

func TestTapAudit(t *testing.T) {
	m, k := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindPermanentTapped, "c1"))
	card, ok := k.GetInstance("c1")
	if !ok {
		t.Fatal("expected card to be created")
	}
	if got := card.GetString("status"); got != "tapped" {
		t.Errorf("expected card tapped, got %s", got)
	}
	execs := k.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	if execs[0].Verb != "tap" || execs[0].Fizzled {
		t.Errorf("unexpected execution %+v", execs[0])
	}

	m.Ingest("feed", engine.New(engine.KindPermanentTapped, "c1"))
	execs = k.Executions()
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
	if !execs[1].Fizzled {
		t.Error("expected duplicate tap to fizzle in the audit log")
	}
	if got := card.GetString("status"); got != "tapped" {
		t.Errorf("expected card to stay tapped, got %s", got)
	}
}

func TestLifeDivergence(t *testing.T) {
	m, k := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindLifeGained, "").WithPlayer("p1", "Alice").WithAmount(5))
	m.Ingest("feed", engine.Event{Kind: engine.KindLifeSet, PlayerID: "p1", Amount: 30})

	player, _ := k.GetInstance("p1")
	if v, _ := player.GetProperty("life"); v != int64(30) {
		t.Errorf("expected the reported total to win, got %v", v)
	}
	divs := k.Divergences()
	if len(divs) != 1 {
		t.Fatalf("expected 1 divergence, got %d", len(divs))
	}
	d := divs[0]
	if d.InstanceID != "p1" || d.Property != "life" {
		t.Errorf("unexpected divergence %+v", d)
	}
	if d.Mirrored != int64(25) || d.Reported != int64(30) {
		t.Errorf("expected mirrored 25 reported 30, got %v and %v", d.Mirrored, d.Reported)
	}
	if d.Source != "feed" {
		t.Errorf("expected source feed, got %s", d.Source)
	}

	m.Ingest("feed", engine.Event{Kind: engine.KindLifeSet, PlayerID: "p2", PlayerName: "Bob", Amount: 40})
	if len(k.Divergences()) != 1 {
		t.Error("expected no divergence for a freshly created player")
	}
	p2, _ := k.GetInstance("p2")
	if v, _ := p2.GetProperty("life"); v != int64(40) {
		t.Errorf("expected life 40, got %v", v)
	}
}

func TestCounterEvents(t *testing.T) {
	m, k := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindCounterAdded, "c1").WithAmount(2).WithPayload("counter", "+1/+1"))
	card, _ := k.GetInstance("c1")
	v, err := card.GetProperty("counters")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts := v.(map[string]any)
	if counts["+1/+1"] != int64(2) {
		t.Errorf("expected 2 counters, got %v", counts["+1/+1"])
	}

	m.Ingest("feed", engine.New(engine.KindCounterRemoved, "c1").WithAmount(2).WithPayload("counter", "+1/+1"))
	if _, ok := counts["+1/+1"]; ok {
		t.Error("expected counter key removed at zero")
	}

	m.Ingest("feed", engine.New(engine.KindCounterAdded, "c1").WithAmount(1).
		WithPayload("counter", "charge").WithPayload("total", int64(5)))
	if counts["charge"] != int64(5) {
		t.Errorf("expected reported total to win, got %v", counts["charge"])
	}
	divs := k.Divergences()
	if len(divs) != 1 {
		t.Fatalf("expected 1 divergence, got %d", len(divs))
	}
	if divs[0].Property != "counters.charge" {
		t.Errorf("expected dotted counter property, got %s", divs[0].Property)
	}
}

func TestPlayerResolution(t *testing.T) {
	m, k := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindLifeGained, "").WithPlayer("p1", "Algernon").WithAmount(1))
	before := k.InstanceCount()

	m.Ingest("feed", engine.New(engine.KindLifeGained, "").WithPlayer("", "Algernom").WithAmount(1))
	if k.InstanceCount() != before {
		t.Error("expected the misspelled name to resolve to the existing player")
	}
	player, _ := k.GetInstance("p1")
	if v, _ := player.GetProperty("life"); v != int64(22) {
		t.Errorf("expected both gains on one player, got life %v", v)
	}

	m.Ingest("feed", engine.New(engine.KindLifeGained, "").WithPlayer("", "Zed").WithAmount(1))
	if k.InstanceCount() != before+1 {
		t.Error("expected a distant name to create a new player")
	}
}

func TestIgnoredAndDropped(t *testing.T) {
	m, _ := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindCoinFlipped, ""))
	if got := m.Stats().Ignored; got != 1 {
		t.Errorf("expected 1 ignored event, got %d", got)
	}

	m.Ingest("feed", engine.Event{Kind: engine.KindZoneChanged})
	if got := m.Stats().Dropped; got != 1 {
		t.Errorf("expected zone change without destination to be dropped, got %d", got)
	}
}

func TestGameLifecycle(t *testing.T) {
	m, k := newTestMirror(t)

	m.Ingest("feed", engine.New(engine.KindGameStarted, "g1"))
	m.Ingest("feed", engine.Event{Kind: engine.KindTurnStarted, Amount: 3, PlayerID: "p1", PlayerName: "Alice"})
	m.Ingest("feed", engine.Event{Kind: engine.KindPhaseChanged, Payload: map[string]any{"phase": "combat"}})

	game, ok := k.GetInstance("g1")
	if !ok {
		t.Fatal("expected game instance")
	}
	if v, _ := game.GetProperty("started"); v != true {
		t.Error("expected game started")
	}
	if v, _ := game.GetProperty("turn"); v != int64(3) {
		t.Errorf("expected turn 3, got %v", v)
	}
	if got := game.GetString("phase"); got != "combat" {
		t.Errorf("expected phase combat, got %s", got)
	}

	m.Ingest("feed", engine.New(engine.KindPlayerWon, "").WithPlayer("p1", "Alice"))
	if got := game.GetString("winner"); got != "Alice" {
		t.Errorf("expected winner Alice, got %s", got)
	}
	player, _ := k.GetInstance("p1")
	if v, _ := player.GetProperty("won"); v != true {
		t.Error("expected player marked as winner")
	}

	m.Ingest("feed", engine.New(engine.KindGameEnded, "g1"))
	if v, _ := game.GetProperty("ended"); v != true {
		t.Error("expected game ended")
	}
}
