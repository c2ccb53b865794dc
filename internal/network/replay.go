package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
)

// ReplayHandler serves the in-memory event history of the running session.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		eventLog: el,
		logger:   log,
	}
}

// ReplayEvent is a flattened event for history views.
type ReplayEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	GameDay   int    `json:"game_day"`
	Type      string `json:"type"`
	ActorID   string `json:"actor_id"`
	TargetID  string `json:"target_id,omitempty"`
	Impact    string `json:"impact"`
}

// ReplayResponse is the API response for a replay query.
type ReplayResponse struct {
	TotalEvents int           `json:"total_events"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the session history.
// GET /api/replay?day=N&type=DAY_ROLLOVER&limit=N
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	day, hasDay := -1, q.Get("day") != ""
	if hasDay {
		d, err := strconv.Atoi(q.Get("day"))
		if err != nil {
			jsonError(w, "Invalid day", http.StatusBadRequest)
			return
		}
		day = d
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	eventType := events.EventType(q.Get("type"))

	replayEvents := make([]ReplayEvent, 0)
	for _, e := range rh.eventLog.Replay() {
		if hasDay && e.GameDay != day {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		replayEvents = append(replayEvents, toReplayEvent(e))
	}
	if limit > 0 && len(replayEvents) > limit {
		replayEvents = replayEvents[len(replayEvents)-limit:]
	}

	rh.logger.Event("REPLAY_QUERY", "API", "Events:"+strconv.Itoa(len(replayEvents)))
	writeJSON(w, http.StatusOK, ReplayResponse{
		TotalEvents: len(replayEvents),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replayEvents,
	})
}

// HandleEventDetail returns one event with its payload.
// GET /api/replay/event?event_id=ID
func (rh *ReplayHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		jsonError(w, "Missing event_id", http.StatusBadRequest)
		return
	}

	for _, e := range rh.eventLog.Replay() {
		if e.ID == eventID {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	jsonError(w, "Event not found", http.StatusNotFound)
}

// HandleStats counts the session's events by type.
// GET /api/replay/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := rh.eventLog.Replay()
	byType := make(map[events.EventType]int)
	for _, e := range all {
		byType[e.Type]++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"by_type":      byType,
	})
}

// RegisterRoutes sets up the replay routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/replay", rh.HandleReplay)
	mux.HandleFunc("/api/replay/event", rh.HandleEventDetail)
	mux.HandleFunc("/api/replay/stats", rh.HandleStats)
}

func toReplayEvent(e events.GameEvent) ReplayEvent {
	return ReplayEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format("15:04:05"),
		GameDay:   e.GameDay,
		Type:      string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Impact:    impactOf(e.Type),
	}
}

// impactOf classifies an event for the history view.
func impactOf(t events.EventType) string {
	switch t {
	case events.EventTypeCookCompleted, events.EventTypeFishCaught,
		events.EventTypeCropGrown, events.EventTypeShipmentSettled:
		return "POSITIVE"
	case events.EventTypeObserverFailed, events.EventTypeTaskFailed, events.EventTypeNothingBiting:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
