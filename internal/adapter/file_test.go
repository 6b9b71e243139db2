package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"grimoire/internal/engine"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustSync(t *testing.T, f Feed) []engine.Event {
	t.Helper()
	events, err := f.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return events
}

func TestFileFeed_Sync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	writeLog(t, path,
		`{"kind":"GAME_STARTED","object_id":"game"}`+"\n"+
			`{"kind":"CARD_DRAWN","object_id":"c1","player_id":"p1"}`+"\n")

	feed := NewFileFeed("session", path, true)

	t.Run("reads each line once", func(t *testing.T) {
		events := mustSync(t, feed)
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Kind != engine.KindGameStarted {
			t.Errorf("expected GAME_STARTED first, got %s", events[0].Kind)
		}
		if events[1].ObjectID != "c1" {
			t.Errorf("expected object c1, got %s", events[1].ObjectID)
		}

		if again := mustSync(t, feed); len(again) != 0 {
			t.Fatalf("expected no events on resync, got %d", len(again))
		}
	})

	t.Run("appended lines are picked up", func(t *testing.T) {
		appendLog(t, path, `{"kind":"CARD_DRAWN","object_id":"c2"}`+"\n")

		events := mustSync(t, feed)
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].ObjectID != "c2" {
			t.Errorf("expected object c2, got %s", events[0].ObjectID)
		}
	})

	t.Run("partial trailing line waits for its newline", func(t *testing.T) {
		appendLog(t, path, `{"kind":"CARD_DRAWN","obj`)
		if events := mustSync(t, feed); len(events) != 0 {
			t.Fatalf("expected no events for a partial line, got %d", len(events))
		}

		appendLog(t, path, `ect_id":"c3"}`+"\n")
		events := mustSync(t, feed)
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].ObjectID != "c3" {
			t.Errorf("expected object c3, got %s", events[0].ObjectID)
		}
	})

	t.Run("bad and blank lines are skipped", func(t *testing.T) {
		appendLog(t, path, "not json at all\n\n"+`{"amount":5}`+"\n"+`{"kind":"LIFE_GAINED","player_id":"p1","amount":2}`+"\n")

		events := mustSync(t, feed)
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Kind != engine.KindLifeGained {
			t.Errorf("expected LIFE_GAINED, got %s", events[0].Kind)
		}
	})

	t.Run("truncated log is reread from the start", func(t *testing.T) {
		writeLog(t, path, `{"kind":"GAME_ENDED","object_id":"game"}`+"\n")

		events := mustSync(t, feed)
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Kind != engine.KindGameEnded {
			t.Errorf("expected GAME_ENDED, got %s", events[0].Kind)
		}
	})
}

func TestFileFeed_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-yet.jsonl")

	t.Run("follow mode tolerates a missing log", func(t *testing.T) {
		feed := NewFileFeed("live", path, true)
		if err := feed.Start(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if events := mustSync(t, feed); len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}

		// The log appears later
		writeLog(t, path, `{"kind":"GAME_STARTED","object_id":"game"}`+"\n")
		if events := mustSync(t, feed); len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
	})

	t.Run("oneshot mode requires the log", func(t *testing.T) {
		feed := NewFileFeed("replay", filepath.Join(t.TempDir(), "gone.jsonl"), false)
		if err := feed.Start(context.Background()); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestFileFeed_Type(t *testing.T) {
	if got := NewFileFeed("a", "x", true).Type(); got != FeedTypePolling {
		t.Errorf("expected polling, got %s", got)
	}
	if got := NewFileFeed("a", "x", false).Type(); got != FeedTypeOneShot {
		t.Errorf("expected oneshot, got %s", got)
	}
}

func TestBatchFeed_ServesOnce(t *testing.T) {
	batch := []engine.Event{
		engine.New(engine.KindGameStarted, "game"),
		engine.New(engine.KindCardDrawn, "c1"),
	}
	feed := NewBatchFeed("replay", batch)

	if feed.Type() != FeedTypeOneShot {
		t.Errorf("expected oneshot, got %s", feed.Type())
	}

	events := mustSync(t, feed)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != engine.KindGameStarted {
		t.Errorf("expected GAME_STARTED first, got %s", events[0].Kind)
	}

	if again := mustSync(t, feed); len(again) != 0 {
		t.Fatalf("expected an empty second drain, got %d events", len(again))
	}
}
