// Package hub fans knowledge base change events out to SSE clients.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"grimoire/internal/kb"
)

// Client represents a connected SSE client
type Client struct {
	id     string
	events chan []byte
}

// Hub manages SSE client connections. Every frame carries the change type
// in the SSE event field, so browsers can listen per type or take the
// whole stream.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan kb.Event
	done       chan struct{}
}

// New creates a new Hub
func New() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan kb.Event, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled; after
// that the done channel is closed so in-flight handlers never block on the
// register/unregister channels.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Printf("SSE client connected: %s (total: %d)", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			log.Printf("SSE client disconnected: %s (total: %d)", client.id, h.ClientCount())

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				continue
			}

			msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- []byte(msg):
				default:
					// Client is slow, skip this message
					log.Printf("SSE client %s is slow, skipping message", client.id)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

// Broadcast sends a change event to all connected clients
func (h *Hub) Broadcast(event kb.Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Println("Broadcast channel full, dropping event")
	}
}

// Forward pumps a bus subscription into the broadcast loop until ctx is
// cancelled or the channel closes. Run it alongside Run.
func (h *Hub) Forward(ctx context.Context, events <-chan kb.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		case <-ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Create client
	client := &Client{
		id:     fmt.Sprintf("%d", time.Now().UnixNano()),
		events: make(chan []byte, 64),
	}

	// Register client
	select {
	case h.register <- client:
	case <-h.done:
		return
	}

	// Ensure cleanup on disconnect
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	// Send initial connection message
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Keep-alive ticker
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	// Event loop
	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// Send keep-alive comment
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
