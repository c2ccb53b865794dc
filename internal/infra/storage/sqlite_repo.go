package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event JournalEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, session_id, timestamp, event_type, actor_id, target_id, payload, game_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp, event.EventType, event.ActorID,
		event.TargetID, string(payloadBytes), event.GameDay,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const selectEvents = `SELECT id, session_id, timestamp, event_type, actor_id, target_id, payload, game_day FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]JournalEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []JournalEvent
	for rows.Next() {
		var e JournalEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &e.EventType, &e.ActorID,
			&e.TargetID, &payloadStr, &e.GameDay,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("corrupt payload for event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetBySession(ctx context.Context, sessionID string) ([]JournalEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

func (r *SQLiteEventRepository) GetByGameDay(ctx context.Context, sessionID string, day int) ([]JournalEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE session_id = ? AND game_day = ? ORDER BY seq ASC`, sessionID, day)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, sessionID string, eventType string) ([]JournalEvent, error) {
	return r.getMany(ctx, selectEvents+` WHERE session_id = ? AND event_type = ? ORDER BY seq ASC`, sessionID, eventType)
}

func (r *SQLiteEventRepository) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
