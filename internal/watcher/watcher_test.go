package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatchReportsYAMLChanges(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	w := New(dir, func() { calls.Add(1) }).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watch registration a moment before the first write
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "card.def.yaml"), []byte("definitions: []\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { return calls.Load() >= 1 })

	if err := os.WriteFile(filepath.Join(dir, "bolt.verb.yaml"), []byte("verbs: []\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { return calls.Load() >= 2 })

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	w := New(dir, func() { calls.Add(1) }).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("expected no callbacks for a non-yaml file, got %d", calls.Load())
	}

	if err := os.WriteFile(filepath.Join(dir, "late.def.yaml"), []byte("definitions: []\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitUntil(t, func() bool { return calls.Load() == 1 })
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), func() {})
	if err := w.Watch(context.Background()); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestWatchCollapsesBursts(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	w := New(dir, func() { calls.Add(1) }).WithDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "card.def.yaml")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("definitions: []\n"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitUntil(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected the burst to collapse to one callback, got %d", got)
	}
}
