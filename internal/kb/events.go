package kb

import "sync"

// EventType defines the type of a change event
type EventType string

const (
	EventDefinitionRegistered EventType = "definition_registered"
	EventInstanceCreated      EventType = "instance_created"
	EventInstanceUpdated      EventType = "instance_updated"
	EventInstanceRemoved      EventType = "instance_removed"
	EventExecutionRecorded    EventType = "execution_recorded"
	EventExecutionUndone      EventType = "execution_undone"
	EventDivergenceFound      EventType = "divergence_found"
	EventAnalytics            EventType = "analytics"
	EventCatalogReloaded      EventType = "catalog_reloaded"
)

// Event represents a change announced by the knowledge base
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Analytics is the payload verb effects publish under EventAnalytics
type Analytics struct {
	Verb string         `json:"verb,omitempty"`
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// EventBus allows publishing and subscribing to change events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
