package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

// DefaultWriteTimeout bounds a single journal insert.
const DefaultWriteTimeout = 2 * time.Second

// Journal writes event log entries through to an EventRepository.
// It satisfies events.EventPersister.
type Journal struct {
	repo      EventRepository
	sessionID string
	metrics   *metrics.Collector
	timeout   time.Duration
}

// NewJournal tags every write with sessionID.
func NewJournal(repo EventRepository, sessionID string, m *metrics.Collector) *Journal {
	return &Journal{
		repo:      repo,
		sessionID: sessionID,
		metrics:   m,
		timeout:   DefaultWriteTimeout,
	}
}

// SessionID identifies this server run in the journal.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Append persists one event.
func (j *Journal) Append(event events.GameEvent) error {
	start := time.Now()
	err := j.append(event)
	j.metrics.RecordEventWrite(time.Since(start), err)
	return err
}

func (j *Journal) append(event events.GameEvent) error {
	payload, err := toPayloadMap(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload of %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	return j.repo.Append(ctx, JournalEvent{
		ID:        event.ID,
		SessionID: j.sessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   payload,
		GameDay:   event.GameDay,
	})
}

// toPayloadMap flattens a typed payload into the generic JSON object form
// stored in the payload column. Non-object payloads are wrapped under "value".
func toPayloadMap(payload interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return map[string]interface{}{}, nil
	}
	if m, ok := payload.(map[string]interface{}); ok {
		return m, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": v}, nil
	}
	return m, nil
}
