package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimoire/internal/adapter"
	"grimoire/internal/config"
	"grimoire/internal/engine"
	"grimoire/internal/handler"
	"grimoire/internal/hub"
	"grimoire/internal/kb"
	"grimoire/internal/loader"
	"grimoire/internal/mirror"
	"grimoire/internal/repository/sqlite"
	"grimoire/internal/verb"
	"grimoire/internal/watcher"
)

func main() {
	// Command line flags, overriding the config file where given
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite journal path")
	catalogDir := flag.String("catalog", "", "directory of *.def.yaml and *.verb.yaml catalog files")
	feedPath := flag.String("feed", "", "JSONL event log to follow")
	replayPath := flag.String("replay", "", "JSONL event log to replay on demand")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting grimoire server...")

	cfg, cfgPath, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgPath != "" {
		log.Printf("Config loaded: %s", cfgPath)
	}
	applyFlags(cfg, *addr, *dbPath, *catalogDir, *feedPath, *replayPath)

	// Initialize SQLite journal
	journal, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer journal.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	// Initialize knowledge base
	k := kb.New()
	k.SetJournal(journal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run(ctx)

	// Connect knowledge base bus to SSE hub
	eventChan := make(chan kb.Event, 100)
	k.Bus().Subscribe(eventChan)
	go sseHub.Forward(ctx, eventChan)

	// Initialize verb catalog: builtins first, game catalogs on top
	catalog := verb.NewCatalog()
	if err := verb.RegisterBuiltins(catalog); err != nil {
		log.Fatalf("Failed to register builtin verbs: %v", err)
	}
	catalogLoader := loader.New(k, catalog)
	if cfg.Catalog.Dir != "" {
		if _, err := catalogLoader.LoadDir(cfg.Catalog.Dir); err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
	}

	// Initialize the event mirror
	m, err := mirror.New(k, catalog, journal)
	if err != nil {
		log.Fatalf("Failed to build mirror: %v", err)
	}

	// Initialize feed registry delivering into the mirror
	registry := adapter.NewRegistry(m.Ingest)

	if cfg.Feed.Path != "" {
		feed := adapter.NewFileFeed("session", cfg.Feed.Path, cfg.FollowEnabled())
		err := registry.Register(feed, adapter.FeedConfig{
			Enabled:      true,
			Priority:     cfg.Feed.Priority,
			PollInterval: cfg.EffectivePollInterval().String(),
		})
		if err != nil {
			log.Fatalf("Failed to register session feed: %v", err)
		}
		log.Printf("Session feed registered: %s (follow=%v)", cfg.Feed.Path, cfg.FollowEnabled())
	}

	if cfg.Replay.Path != "" {
		events, err := readEventLog(cfg.Replay.Path)
		if err != nil {
			log.Fatalf("Failed to read replay log: %v", err)
		}
		if err := registry.Register(adapter.NewBatchFeed("replay", events), adapter.FeedConfig{Enabled: true}); err != nil {
			log.Fatalf("Failed to register replay feed: %v", err)
		}
		log.Printf("Replay feed ready: %d events from %s", len(events), cfg.Replay.Path)
	}

	if err := registry.Start(ctx); err != nil {
		log.Printf("Warning: Failed to start feed registry: %v", err)
	}

	// Watch the catalog directory for hot reloads
	if cfg.Catalog.Dir != "" && cfg.WatchEnabled() {
		w := watcher.New(cfg.Catalog.Dir, func() {
			if _, err := catalogLoader.LoadDir(cfg.Catalog.Dir); err != nil {
				log.Printf("Catalog reload failed: %v", err)
			}
		}).WithDebounce(cfg.EffectiveDebounce())
		go func() {
			if err := w.Watch(ctx); err != nil {
				log.Printf("Catalog watcher stopped: %v", err)
			}
		}()
	}

	// Initialize HTTP handlers
	kbHandler := handler.NewKBHandler(k)
	kbHandler.SetFeedRegistry(registry)
	verbHandler := handler.NewVerbHandler(k, catalog)
	journalHandler := handler.NewJournalHandler(journal)

	mux := handler.NewMux(kbHandler, verbHandler, journalHandler, sseHub)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server. No write timeout: /events holds its connection open.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     finalHandler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop feeds and the hub
	cancel()
	if err := registry.Stop(); err != nil {
		log.Printf("Feed registry shutdown error: %v", err)
	}

	stats := m.Stats()
	log.Printf("Mirror handled %d of %d events (%d ignored, %d dropped)",
		stats.Handled, stats.Total, stats.Ignored, stats.Dropped)

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig reads the config file, preferring an explicit path over the
// search chain
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// applyFlags lets command line flags override the loaded config
func applyFlags(cfg *config.Config, addr, dbPath, catalogDir, feedPath, replayPath string) {
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if catalogDir != "" {
		cfg.Catalog.Dir = catalogDir
	}
	if feedPath != "" {
		cfg.Feed.Path = feedPath
	}
	if replayPath != "" {
		cfg.Replay.Path = replayPath
	}
}

// readEventLog decodes one engine event per line from a JSONL log
func readEventLog(path string) ([]engine.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []engine.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, err := engine.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
