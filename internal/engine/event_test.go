package engine

import (
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	t.Run("full event", func(t *testing.T) {
		data := []byte(`{
			"kind": "ZONE_CHANGED",
			"object_id": "card-77",
			"object_name": "Grizzly Bears",
			"player_id": "p1",
			"from_zone": "hand",
			"to_zone": "battlefield",
			"timestamp": "2026-04-01T12:00:00Z"
		}`)
		ev, err := Decode(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.Kind != KindZoneChanged {
			t.Errorf("expected ZONE_CHANGED, got %s", ev.Kind)
		}
		if ev.ObjectID != "card-77" {
			t.Errorf("expected object id card-77, got %s", ev.ObjectID)
		}
		if ev.FromZone != "hand" || ev.ToZone != "battlefield" {
			t.Errorf("expected zone transition, got %s -> %s", ev.FromZone, ev.ToZone)
		}
		want := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		if !ev.Timestamp.Equal(want) {
			t.Errorf("expected timestamp preserved, got %v", ev.Timestamp)
		}
	})

	t.Run("missing timestamp is stamped on arrival", func(t *testing.T) {
		ev, err := Decode([]byte(`{"kind":"CARD_DRAWN","player_id":"p1"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
	})

	t.Run("missing kind is rejected", func(t *testing.T) {
		if _, err := Decode([]byte(`{"object_id":"card-1"}`)); err == nil {
			t.Error("expected error for event without kind")
		}
	})

	t.Run("unknown kind still decodes", func(t *testing.T) {
		ev, err := Decode([]byte(`{"kind":"FUTURE_MECHANIC","object_id":"card-1"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ev.Kind.Known() {
			t.Error("expected kind to be unknown to this build")
		}
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		if _, err := Decode([]byte(`{"kind":`)); err == nil {
			t.Error("expected error for malformed json")
		}
	})
}

func TestKinds(t *testing.T) {
	t.Run("vocabulary is closed and known", func(t *testing.T) {
		all := Kinds()
		if len(all) < 40 {
			t.Errorf("expected at least 40 kinds, got %d", len(all))
		}
		seen := make(map[Kind]bool, len(all))
		for _, k := range all {
			if seen[k] {
				t.Errorf("duplicate kind %s", k)
			}
			seen[k] = true
			if !k.Known() {
				t.Errorf("expected %s to be known", k)
			}
		}
	})

	t.Run("absolute kinds", func(t *testing.T) {
		if !KindLifeSet.Absolute() {
			t.Error("expected LIFE_SET to be absolute")
		}
		if KindLifeGained.Absolute() {
			t.Error("expected LIFE_GAINED to be a delta")
		}
	})
}

func TestEventBuilders(t *testing.T) {
	t.Run("builders compose", func(t *testing.T) {
		ev := New(KindCounterAdded, "card-9").
			WithPlayer("p2", "Niv").
			WithAmount(2).
			WithPayload("counter_kind", "+1/+1")
		if ev.ObjectID != "card-9" || ev.PlayerID != "p2" || ev.Amount != 2 {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Payload["counter_kind"] != "+1/+1" {
			t.Errorf("expected payload entry, got %v", ev.Payload)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("with payload does not alias", func(t *testing.T) {
		base := New(KindManaAdded, "p1").WithPayload("color", "G")
		derived := base.WithPayload("color", "U")
		if base.Payload["color"] != "G" {
			t.Errorf("expected base payload unchanged, got %v", base.Payload)
		}
		if derived.Payload["color"] != "U" {
			t.Errorf("expected derived payload updated, got %v", derived.Payload)
		}
	})
}
