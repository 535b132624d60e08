package events

import (
	"sync"
	"time"

	"otc-signal-bot/internal/database"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalRejected  EventType = "SIGNAL_REJECTED"
	EventSignalOutcome   EventType = "SIGNAL_OUTCOME"
	EventManagerStarted  EventType = "MANAGER_STARTED"
	EventManagerStopped  EventType = "MANAGER_STOPPED"
	EventManagerError    EventType = "MANAGER_ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Signal returns the signal carried by signal events
func (e Event) Signal() (*database.Signal, bool) {
	s, ok := e.Data["signal"].(*database.Signal)
	return s, ok && s != nil
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
	wg          sync.WaitGroup
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its own goroutine.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		eb.dispatch(sub, event)
	}
	for _, sub := range eb.allSubs {
		eb.dispatch(sub, event)
	}
}

func (eb *EventBus) dispatch(sub Subscriber, event Event) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		sub(event)
	}()
}

// Wait blocks until every dispatched subscriber has returned
func (eb *EventBus) Wait() {
	eb.wg.Wait()
}

// PublishSignalGenerated publishes a newly persisted signal
func (eb *EventBus) PublishSignalGenerated(s *database.Signal) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal":      s,
			"pair":        s.Pair,
			"direction":   s.Direction,
			"probability": s.Probability,
			"forced":      s.Forced,
		},
	})
}

// PublishSignalRejected publishes a generation round that produced no signal
func (eb *EventBus) PublishSignalRejected(reason string, forced bool) {
	eb.Publish(Event{
		Type: EventSignalRejected,
		Data: map[string]interface{}{
			"reason": reason,
			"forced": forced,
		},
	})
}

// PublishSignalOutcome publishes a settled signal
func (eb *EventBus) PublishSignalOutcome(s *database.Signal) {
	data := map[string]interface{}{
		"signal": s,
		"pair":   s.Pair,
		"status": s.Status,
	}
	if s.ExitPrice != nil {
		data["exit_price"] = *s.ExitPrice
	}
	eb.Publish(Event{Type: EventSignalOutcome, Data: data})
}

// PublishManagerState publishes a manager start or stop
func (eb *EventBus) PublishManagerState(started bool, instanceID string) {
	t := EventManagerStopped
	if started {
		t = EventManagerStarted
	}
	eb.Publish(Event{
		Type: t,
		Data: map[string]interface{}{
			"instance_id": instanceID,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventManagerError,
		Data: data,
	})
}
