// Package events provides the append-only journal of everything the farm
// simulation does: clock transitions, rollovers, deferred tasks and player
// interactions. The websocket hub and the SQLite journal both read from it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeHourChanged     EventType = "HOUR_CHANGED"
	EventTypeNightfall       EventType = "NIGHTFALL"
	EventTypeDaybreak        EventType = "DAYBREAK"
	EventTypeDayRollover     EventType = "DAY_ROLLOVER"
	EventTypeTimeJump        EventType = "TIME_JUMP"
	EventTypeClockPaused     EventType = "CLOCK_PAUSED"
	EventTypeClockResumed    EventType = "CLOCK_RESUMED"
	EventTypeObserverFailed  EventType = "OBSERVER_FAILED"
	EventTypeTaskScheduled   EventType = "TASK_SCHEDULED"
	EventTypeTaskFailed      EventType = "TASK_FAILED"
	EventTypeCookStarted     EventType = "COOK_STARTED"
	EventTypeCookCompleted   EventType = "COOK_COMPLETED"
	EventTypeFishCaught      EventType = "FISH_CAUGHT"
	EventTypeNothingBiting   EventType = "NOTHING_BITING"
	EventTypeCropPlanted     EventType = "CROP_PLANTED"
	EventTypeCropGrown       EventType = "CROP_GROWN"
	EventTypeCropWatered     EventType = "CROP_WATERED"
	EventTypeShipmentQueued  EventType = "SHIPMENT_QUEUED"
	EventTypeShipmentSettled EventType = "SHIPMENT_SETTLED"
)

// ActorSystem is the actor recorded for events the simulation emits itself.
const ActorSystem = "SYSTEM_CLOCK"

// GameEvent represents an immutable record of an action in the game.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	TargetID  string      `json:"target_id,omitempty"`
	Payload   interface{} `json:"payload"`
	GameDay   int         `json:"game_day"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType EventType, actorID string, gameDay int, payload interface{}) GameEvent {
	return GameEvent{
		ID:        GenerateEventID(),
		Timestamp: time.Now(),
		Type:      eventType,
		ActorID:   actorID,
		Payload:   payload,
		GameDay:   gameDay,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// ErrorHandler is told when the persister rejects an event.
type ErrorHandler func(event GameEvent, err error)

// EventLog is the in-memory append-only log of game events, optionally
// written through to a persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   ErrorHandler
	pending   sync.WaitGroup
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError installs a handler for write-through failures.
func (el *EventLog) OnPersistError(fn ErrorHandler) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append adds a new event to the log. Events are immutable once appended.
// Persistence happens asynchronously; Flush waits for it.
func (el *EventLog) Append(event GameEvent) {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	if persister != nil {
		el.pending.Add(1)
	}
	el.mu.Unlock()

	if persister != nil {
		go func(e GameEvent) {
			defer el.pending.Done()
			if err := persister.Append(e); err != nil && onError != nil {
				onError(e, err)
			}
		}(event)
	}
}

// Flush blocks until every write-through started so far has finished.
func (el *EventLog) Flush() {
	el.pending.Wait()
}

// Len reports how many events have been appended.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(eventType EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

// GetByDay returns all events that occurred on a specific game day.
func (el *EventLog) GetByDay(day int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameDay == day {
			result = append(result, e)
		}
	}
	return result
}

// Since returns a copy of the events appended after the first offset ones.
func (el *EventLog) Since(offset int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(el.events) {
		return nil
	}
	return append([]GameEvent(nil), el.events[offset:]...)
}

// Replay returns a copy of the full history of events.
func (el *EventLog) Replay() []GameEvent {
	return el.Since(0)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
