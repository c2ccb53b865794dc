package events

import (
	"errors"
	"sync"
	"testing"
)

type recordingPersister struct {
	mu     sync.Mutex
	events []GameEvent
	fail   bool
}

func (p *recordingPersister) Append(e GameEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("disk full")
	}
	p.events = append(p.events, e)
	return nil
}

func TestAppendStampsAndPersists(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(p)

	el.Append(GameEvent{Type: EventTypeDayRollover, ActorID: ActorSystem, GameDay: 2})
	el.Append(New(EventTypeNightfall, ActorSystem, 2, nil))
	el.Flush()

	all := el.Replay()
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0].ID == "" || all[0].Timestamp.IsZero() {
		t.Errorf("expected ID and timestamp to be stamped, got %+v", all[0])
	}
	if all[0].ID == all[1].ID {
		t.Error("event IDs must be unique")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != 2 {
		t.Errorf("expected 2 persisted events, got %d", len(p.events))
	}
}

func TestPersistErrorsReachHandler(t *testing.T) {
	el := NewEventLog(&recordingPersister{fail: true})

	var mu sync.Mutex
	var failed []EventType
	el.OnPersistError(func(e GameEvent, err error) {
		mu.Lock()
		failed = append(failed, e.Type)
		mu.Unlock()
	})

	el.Append(New(EventTypeFishCaught, "player", 1, nil))
	el.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(failed) != 1 || failed[0] != EventTypeFishCaught {
		t.Errorf("expected one FISH_CAUGHT failure, got %v", failed)
	}
	if el.Len() != 1 {
		t.Error("a persist failure must not drop the in-memory event")
	}
}

func TestQueries(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(New(EventTypeDaybreak, ActorSystem, 1, nil))
	el.Append(New(EventTypeNightfall, ActorSystem, 1, nil))
	el.Append(New(EventTypeDayRollover, ActorSystem, 2, nil))
	el.Append(New(EventTypeDaybreak, ActorSystem, 2, nil))

	if got := len(el.GetByDay(1)); got != 2 {
		t.Errorf("expected 2 events on day 1, got %d", got)
	}
	if got := len(el.GetByType(EventTypeDaybreak)); got != 2 {
		t.Errorf("expected 2 daybreaks, got %d", got)
	}

	tail := el.Since(3)
	if len(tail) != 1 || tail[0].Type != EventTypeDaybreak {
		t.Errorf("unexpected tail %+v", tail)
	}
	if el.Since(10) != nil {
		t.Error("offset past the end should return nil")
	}

	// Callers get copies.
	tail[0].Type = EventTypeCropGrown
	if el.Replay()[3].Type != EventTypeDaybreak {
		t.Error("mutating a returned slice must not change the log")
	}
}
