package network

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/engine"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/infra/storage"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

// newTestServer serves the API over an engine whose clock is never started,
// so time only moves through the API. Dishes take seconds, not milliseconds.
func newTestServer(t *testing.T, recap RecapSource, el *events.EventLog) (*engine.Engine, *httptest.Server) {
	t.Helper()
	cfg := config.FastConfig()
	cfg.TickInterval = time.Second
	cfg.WeatherSeed = 7
	if el == nil {
		el = events.NewEventLog(nil)
	}
	eng, err := engine.NewEngine(cfg, el, logger.NewNop(), metrics.NewCollector())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { eng.Shutdown() })

	mux := http.NewServeMux()
	NewAPI(eng, recap, "session-test", logger.NewNop()).RegisterRoutes(mux)
	NewReplayHandler(el, logger.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return eng, srv
}

func post(t *testing.T, srv *httptest.Server, path string, body interface{}, out interface{}) int {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func get(t *testing.T, srv *httptest.Server, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestAPIClockEndpoints(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)

	var snap engine.Snapshot
	if code := get(t, srv, "/api/clock", &snap); code != http.StatusOK {
		t.Fatalf("GET /api/clock: %d", code)
	}
	if snap.Hour != 6 || snap.Minute != 0 || snap.TotalDay != 1 {
		t.Errorf("expected day 1 06:00, got day %d %s", snap.TotalDay, snap.TimeString())
	}

	if code := post(t, srv, "/api/clock/advance", map[string]int{"minutes": 90}, &snap); code != http.StatusOK {
		t.Fatalf("advance: %d", code)
	}
	if snap.TimeString() != "07:30" {
		t.Errorf("expected 07:30 after 90 minutes, got %s", snap.TimeString())
	}

	if code := post(t, srv, "/api/clock/jump", map[string]int{"hour": 19, "minute": 0}, &snap); code != http.StatusOK {
		t.Fatalf("jump: %d", code)
	}
	if !snap.IsNight {
		t.Error("19:00 should be night")
	}

	var errBody map[string]string
	if code := post(t, srv, "/api/clock/jump", map[string]int{"hour": 24, "minute": 0}, &errBody); code != http.StatusBadRequest {
		t.Errorf("expected 400 for hour 24, got %d", code)
	}
	if code := post(t, srv, "/api/clock/advance", map[string]int{"minutes": -5}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative advance, got %d", code)
	}
	if code := post(t, srv, "/api/clock/advance", map[string]int64{"minutes": 9000000000000000000}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for an oversized advance, got %d", code)
	}
	if code := get(t, srv, "/api/clock", &snap); code != http.StatusOK || snap.TimeString() != "19:00" {
		t.Errorf("rejected advances must leave the clock at 19:00, got %s", snap.TimeString())
	}

	if code := post(t, srv, "/api/clock/pause", nil, &snap); code != http.StatusOK || !snap.Paused {
		t.Errorf("pause: code %d paused %v", code, snap.Paused)
	}
	if code := post(t, srv, "/api/clock/resume", nil, &snap); code != http.StatusOK || snap.Paused {
		t.Errorf("resume: code %d paused %v", code, snap.Paused)
	}

	if code := post(t, srv, "/api/clock", nil, nil); code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /api/clock, got %d", code)
	}
}

func TestAPIFarmActions(t *testing.T) {
	eng, srv := newTestServer(t, nil, nil)

	if code := post(t, srv, "/api/plant", map[string]string{"plot": "plot-1", "seed": "parsnip_seeds"}, nil); code != http.StatusOK {
		t.Fatalf("plant: %d", code)
	}
	if got := eng.Inventory().Count(item.ItemParsnipSeeds); got != 14 {
		t.Errorf("expected 14 parsnip seeds left, got %d", got)
	}
	if code := post(t, srv, "/api/water", map[string]string{"plot": "plot-1"}, nil); code != http.StatusOK {
		t.Errorf("water: %d", code)
	}
	if code := post(t, srv, "/api/harvest", map[string]string{"plot": "plot-1"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 harvesting an unripe plot, got %d", code)
	}

	var shipped map[string]int
	if code := post(t, srv, "/api/ship", map[string]interface{}{"item": "EGG", "quantity": 2}, &shipped); code != http.StatusOK {
		t.Fatalf("ship: %d", code)
	}
	if shipped["value"] != 100 {
		t.Errorf("expected 2 eggs to be worth 100g, got %d", shipped["value"])
	}
	if code := post(t, srv, "/api/ship", map[string]interface{}{"item": "EGG", "quantity": 5}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 shipping eggs we do not have, got %d", code)
	}
}

func TestAPIFishing(t *testing.T) {
	eng, srv := newTestServer(t, nil, nil)

	var body map[string]string
	if code := post(t, srv, "/api/fish", map[string]string{"location": "Ocaen"}, &body); code != http.StatusNotFound {
		t.Fatalf("expected 404 for a misspelled location, got %d", code)
	}
	if body["suggestion"] != "Ocean" {
		t.Errorf("expected suggestion Ocean, got %q", body["suggestion"])
	}

	var eligible struct {
		Fish []map[string]interface{} `json:"fish"`
	}
	if code := get(t, srv, "/api/fish/eligible?location=Ocean", &eligible); code != http.StatusOK {
		t.Fatalf("eligible: %d", code)
	}

	before := eng.Clock().Snapshot()
	var result engine.CatchResult
	if code := post(t, srv, "/api/fish", map[string]string{"location": "Ocean"}, &result); code != http.StatusOK {
		t.Fatalf("fish: %d", code)
	}
	if result.Candidates != len(eligible.Fish) {
		t.Errorf("cast saw %d candidates, eligible listed %d", result.Candidates, len(eligible.Fish))
	}
	after := eng.Clock().Snapshot()
	if after.Hour*60+after.Minute-(before.Hour*60+before.Minute) != 15 {
		t.Errorf("a cast should cost 15 minutes: %s -> %s", before.TimeString(), after.TimeString())
	}
}

func TestAPICooking(t *testing.T) {
	eng, srv := newTestServer(t, nil, nil)

	var started map[string]string
	if code := post(t, srv, "/api/cook", map[string]string{"dish": "FRIED_EGG"}, &started); code != http.StatusAccepted {
		t.Fatalf("cook: %d", code)
	}
	if eng.Inventory().Count(item.ItemEgg) != 2 {
		t.Errorf("cooking should take an egg, have %d", eng.Inventory().Count(item.ItemEgg))
	}

	var listing struct {
		Cooking []engine.CookPayload `json:"cooking"`
	}
	get(t, srv, "/api/cook", &listing)
	if len(listing.Cooking) != 1 || listing.Cooking[0].Task != started["task"] {
		t.Errorf("expected the dish on the stove, got %+v", listing.Cooking)
	}

	if code := post(t, srv, "/api/cook/cancel", map[string]string{"task": started["task"]}, nil); code != http.StatusOK {
		t.Fatalf("cancel: %d", code)
	}
	if eng.Inventory().Count(item.ItemEgg) != 3 {
		t.Errorf("cancel should refund the egg, have %d", eng.Inventory().Count(item.ItemEgg))
	}
	if code := post(t, srv, "/api/cook/cancel", map[string]string{"task": started["task"]}, nil); code != http.StatusConflict {
		t.Errorf("second cancel should conflict, got %d", code)
	}
	if code := post(t, srv, "/api/cook/cancel", map[string]string{"task": "not-a-uuid"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad task id, got %d", code)
	}

	if code := post(t, srv, "/api/cook", map[string]string{"dish": "PARSNIP"}, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for an item with no recipe, got %d", code)
	}
	if code := post(t, srv, "/api/cook", map[string]string{"dish": "PUMPKIN_PIE"}, nil); code != http.StatusConflict {
		t.Errorf("expected 409 without ingredients, got %d", code)
	}
}

func TestAPIRecapWithJournal(t *testing.T) {
	db, err := storage.InitSQLite(storage.MemoryPath, 1)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer db.Close()
	repo := storage.NewSQLiteEventRepository(db)
	el := events.NewEventLog(storage.NewJournal(repo, "session-test", nil))

	_, srv := newTestServer(t, storage.NewRecap(repo), el)

	post(t, srv, "/api/ship", map[string]interface{}{"item": "EGG", "quantity": 1}, nil)
	post(t, srv, "/api/clock/advance", map[string]int{"minutes": 24 * 60}, nil)

	var recap struct {
		Session string               `json:"session"`
		Events  []storage.RecapEvent `json:"events"`
		Ledger  storage.Ledger       `json:"ledger"`
	}
	if code := get(t, srv, "/api/recap", &recap); code != http.StatusOK {
		t.Fatalf("recap: %d", code)
	}
	if recap.Ledger.Gold != 50 || recap.Ledger.Rollovers != 1 {
		t.Errorf("expected 50g over one rollover, got %+v", recap.Ledger)
	}
	for _, e := range recap.Events {
		if e.EventType == string(events.EventTypeHourChanged) {
			t.Fatal("recap should skip hour changes")
		}
	}

	if code := get(t, srv, "/api/recap?since_day=x", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad since_day, got %d", code)
	}
}

func TestAPIRecapWithoutJournal(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)
	if code := get(t, srv, "/api/recap", nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a journal, got %d", code)
	}
}

func TestReplayFilters(t *testing.T) {
	_, srv := newTestServer(t, nil, nil)
	post(t, srv, "/api/clock/advance", map[string]int{"minutes": 24 * 60}, nil)

	var all ReplayResponse
	if code := get(t, srv, "/api/replay", &all); code != http.StatusOK {
		t.Fatalf("replay: %d", code)
	}
	if all.TotalEvents == 0 {
		t.Fatal("expected events after a full day")
	}

	var rollovers ReplayResponse
	get(t, srv, "/api/replay?type=DAY_ROLLOVER", &rollovers)
	if rollovers.TotalEvents != 1 {
		t.Fatalf("expected one rollover, got %d", rollovers.TotalEvents)
	}

	var detail events.GameEvent
	if code := get(t, srv, "/api/replay/event?event_id="+rollovers.Events[0].ID, &detail); code != http.StatusOK {
		t.Fatalf("detail: %d", code)
	}
	if detail.Type != events.EventTypeDayRollover || detail.Payload == nil {
		t.Errorf("unexpected detail %+v", detail)
	}
	if code := get(t, srv, "/api/replay/event?event_id=missing", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown event, got %d", code)
	}

	var last ReplayResponse
	get(t, srv, "/api/replay?limit=2", &last)
	if last.TotalEvents != 2 || last.Events[1].ID != all.Events[len(all.Events)-1].ID {
		t.Errorf("limit should keep the newest events, got %+v", last.Events)
	}

	var stats struct {
		Total  int            `json:"total_events"`
		ByType map[string]int `json:"by_type"`
	}
	get(t, srv, "/api/replay/stats", &stats)
	if stats.Total != all.TotalEvents || stats.ByType["HOUR_CHANGED"] != 24 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
