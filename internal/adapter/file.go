package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"grimoire/internal/engine"
)

// FileFeed reads host engine events from a JSONL log, one event per line.
// It remembers its byte offset between syncs so every line is delivered
// exactly once. In follow mode the log may grow (or not exist yet) while
// the session runs; a partial trailing line is left in place until the
// writer finishes it.
type FileFeed struct {
	name   string
	path   string
	follow bool

	mu     sync.Mutex
	offset int64
}

// NewFileFeed creates a feed over the JSONL event log at path. With
// follow set the feed is polled for new lines; without it the log is
// drained once on demand.
func NewFileFeed(name, path string, follow bool) *FileFeed {
	return &FileFeed{name: name, path: path, follow: follow}
}

// Name returns the feed identifier
func (f *FileFeed) Name() string { return f.name }

// Type reports polling when following, oneshot otherwise
func (f *FileFeed) Type() FeedType {
	if f.follow {
		return FeedTypePolling
	}
	return FeedTypeOneShot
}

// Start checks that the log is usable. A missing file is fine in follow
// mode; the host engine may not have created it yet.
func (f *FileFeed) Start(ctx context.Context) error {
	_, err := os.Stat(f.path)
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) && f.follow {
		return nil
	}
	return fmt.Errorf("event log %s: %w", f.path, err)
}

// Stop releases nothing; the feed holds no open handles between syncs
func (f *FileFeed) Stop() error { return nil }

// Sync reads complete lines added since the previous call and decodes
// them. Undecodable lines are logged and skipped so one bad record never
// stalls the log behind it.
func (f *FileFeed) Sync(ctx context.Context) ([]engine.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) && f.follow {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat event log: %w", err)
	}
	if info.Size() < f.offset {
		log.Printf("Feed %s: %s shrank, rereading from the start", f.name, f.path)
		f.offset = 0
	}
	if info.Size() == f.offset {
		return nil, nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek event log: %w", err)
	}

	reader := bufio.NewReader(file)
	var events []engine.Event
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Partial trailing line: leave it for the next sync
			break
		}
		if err != nil {
			return events, fmt.Errorf("read event log: %w", err)
		}
		f.offset += int64(len(line))

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		ev, decodeErr := engine.Decode(line)
		if decodeErr != nil {
			log.Printf("Feed %s: skipping bad line before offset %d: %v", f.name, f.offset, decodeErr)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}
