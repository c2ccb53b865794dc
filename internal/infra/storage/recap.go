package storage

import (
	"context"
	"fmt"
	"sort"
)

// Recap rebuilds summaries of a session from its journal: what happened on
// the farm since a given day, and the running ledger of gold and catches.
type Recap struct {
	eventRepo EventRepository
}

// NewRecap creates a recap builder over a journal.
func NewRecap(eventRepo EventRepository) *Recap {
	return &Recap{eventRepo: eventRepo}
}

// RecapEvent is a simplified event for the daily recap screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	GameDay   int    `json:"game_day"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
}

// Ledger is state folded from the journal.
type Ledger struct {
	Gold        int            `json:"gold"`
	FishCaught  map[string]int `json:"fish_caught"`
	DishesReady int            `json:"dishes_ready"`
	Rollovers   int            `json:"rollovers"`
	RainyDays   int            `json:"rainy_days"`
}

// GenerateRecap lists the notable events of a session from sinceDay onward,
// ordered by game day and then by when they happened. Journal writes land
// concurrently, so insertion order is not event order. Hour changes are
// skipped as noise.
func (r *Recap) GenerateRecap(ctx context.Context, sessionID string, sinceDay int) ([]RecapEvent, error) {
	allEvents, err := r.eventRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session events: %w", err)
	}
	sort.SliceStable(allEvents, func(i, j int) bool {
		if allEvents[i].GameDay != allEvents[j].GameDay {
			return allEvents[i].GameDay < allEvents[j].GameDay
		}
		return allEvents[i].Timestamp.Before(allEvents[j].Timestamp)
	})

	recap := make([]RecapEvent, 0)
	for _, e := range allEvents {
		if e.GameDay < sinceDay || e.EventType == "HOUR_CHANGED" {
			continue
		}
		recap = append(recap, RecapEvent{
			Timestamp: e.Timestamp.Format("15:04:05"),
			GameDay:   e.GameDay,
			EventType: e.EventType,
			Summary:   summarizeEvent(e),
		})
	}
	return recap, nil
}

// RebuildLedger folds gold, catches and rollovers out of the journal.
func (r *Recap) RebuildLedger(ctx context.Context, sessionID string) (*Ledger, error) {
	allEvents, err := r.eventRepo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session events: %w", err)
	}

	ledger := &Ledger{FishCaught: make(map[string]int)}
	for _, e := range allEvents {
		applyEventToLedger(ledger, e)
	}
	return ledger, nil
}

func applyEventToLedger(l *Ledger, e JournalEvent) {
	switch e.EventType {
	case "SHIPMENT_SETTLED":
		l.Gold += payloadInt(e.Payload, "gold")
	case "FISH_CAUGHT":
		if name, ok := e.Payload["fish"].(string); ok {
			l.FishCaught[name]++
		}
	case "COOK_COMPLETED":
		l.DishesReady++
	case "DAY_ROLLOVER":
		l.Rollovers++
		if rainy, ok := e.Payload["was_previous_day_rainy"].(bool); ok && rainy {
			l.RainyDays++
		}
	}
}

func payloadInt(p map[string]interface{}, key string) int {
	if v, ok := p[key].(float64); ok {
		return int(v)
	}
	return 0
}

func summarizeEvent(e JournalEvent) string {
	switch e.EventType {
	case "DAY_ROLLOVER":
		return fmt.Sprintf("Day %d began: %v, %v.", e.GameDay, e.Payload["new_season"], e.Payload["new_weather"])
	case "NIGHTFALL":
		return "Night fell over the farm."
	case "DAYBREAK":
		return "The sun rose."
	case "FISH_CAUGHT":
		return fmt.Sprintf("Caught a %v.", e.Payload["fish"])
	case "NOTHING_BITING":
		return "Nothing was biting."
	case "COOK_STARTED":
		return fmt.Sprintf("Started cooking %v.", e.Payload["dish"])
	case "COOK_COMPLETED":
		return fmt.Sprintf("%v is ready.", e.Payload["dish"])
	case "SHIPMENT_SETTLED":
		return fmt.Sprintf("Shipping bin paid out %d gold.", payloadInt(e.Payload, "gold"))
	case "CROP_GROWN":
		return fmt.Sprintf("The %v grew.", e.Payload["crop"])
	case "OBSERVER_FAILED", "TASK_FAILED":
		return "Something went wrong overnight."
	default:
		return "Something happened on the farm."
	}
}
