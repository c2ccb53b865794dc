// Package storage provides the persistence layer for the game server.
// The event journal is append-only; the core simulation never reads it back
// to drive state, it only serves recaps and audits.
package storage

import (
	"context"
	"time"
)

// JournalEvent mirrors the domain event structure for persistence.
// The events package does not import this; Journal converts at the boundary.
type JournalEvent struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	TargetID  string                 `json:"target_id" db:"target_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	GameDay   int                    `json:"game_day" db:"game_day"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event JournalEvent) error

	// GetBySession retrieves all events for one server run, oldest first.
	GetBySession(ctx context.Context, sessionID string) ([]JournalEvent, error)

	// GetByGameDay retrieves all events from a specific in-game day.
	GetByGameDay(ctx context.Context, sessionID string, day int) ([]JournalEvent, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, sessionID string, eventType string) ([]JournalEvent, error)

	// Count returns how many events a session has written.
	Count(ctx context.Context, sessionID string) (int, error)
}
