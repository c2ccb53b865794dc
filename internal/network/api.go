package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/eligibility"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/engine"
	"github.com/greenvale/farmsim/server/internal/infra/storage"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/tasks"
)

// RecapSource rebuilds session summaries from the journal.
type RecapSource interface {
	GenerateRecap(ctx context.Context, sessionID string, sinceDay int) ([]storage.RecapEvent, error)
	RebuildLedger(ctx context.Context, sessionID string) (*storage.Ledger, error)
}

// API is the REST surface over one running engine.
type API struct {
	engine    *engine.Engine
	recap     RecapSource
	sessionID string
	logger    *logger.Logger
}

// NewAPI binds the handlers to an engine. recap may be nil when no journal
// is attached.
func NewAPI(eng *engine.Engine, recap RecapSource, sessionID string, log *logger.Logger) *API {
	return &API{engine: eng, recap: recap, sessionID: sessionID, logger: log}
}

// RegisterRoutes sets up the farm API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/clock", a.HandleClock)
	mux.HandleFunc("/api/clock/advance", a.HandleAdvance)
	mux.HandleFunc("/api/clock/jump", a.HandleJump)
	mux.HandleFunc("/api/clock/pause", a.HandlePause)
	mux.HandleFunc("/api/clock/resume", a.HandleResume)
	mux.HandleFunc("/api/cook", a.HandleCook)
	mux.HandleFunc("/api/cook/cancel", a.HandleCookCancel)
	mux.HandleFunc("/api/fish", a.HandleFish)
	mux.HandleFunc("/api/fish/eligible", a.HandleEligible)
	mux.HandleFunc("/api/ship", a.HandleShip)
	mux.HandleFunc("/api/plant", a.HandlePlant)
	mux.HandleFunc("/api/water", a.HandleWater)
	mux.HandleFunc("/api/harvest", a.HandleHarvest)
	mux.HandleFunc("/api/plots", a.HandlePlots)
	mux.HandleFunc("/api/inventory", a.HandleInventory)
	mux.HandleFunc("/api/recap", a.HandleRecap)
}

// HandleClock returns the clock snapshot.
// GET /api/clock
func (a *API) HandleClock(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Clock().Snapshot())
}

// HandleAdvance moves the clock forward.
// POST /api/clock/advance {"minutes":n}
func (a *API) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.Clock().AdvanceMinutes(req.Minutes); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Clock().Snapshot())
}

// HandleJump sets the time of day.
// POST /api/clock/jump {"hour":h,"minute":m}
func (a *API) HandleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hour   int `json:"hour"`
		Minute int `json:"minute"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.Clock().JumpTo(req.Hour, req.Minute); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Clock().Snapshot())
}

// HandlePause stops the clock driver from ticking.
// POST /api/clock/pause
func (a *API) HandlePause(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	a.engine.Clock().Pause()
	writeJSON(w, http.StatusOK, a.engine.Clock().Snapshot())
}

// HandleResume restarts a paused clock.
// POST /api/clock/resume
func (a *API) HandleResume(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	a.engine.Clock().Resume()
	writeJSON(w, http.StatusOK, a.engine.Clock().Snapshot())
}

// HandleCook starts a dish (POST {"dish":"FRIED_EGG"}) or lists the dishes
// on the stove (GET).
func (a *API) HandleCook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cooking": a.engine.Cooking().InProgress(),
			"recipes": item.RecipeNames(),
		})
		return
	}
	var req struct {
		Dish string `json:"dish"`
	}
	if !decode(w, r, &req) {
		return
	}
	dish, err := item.ParseItemType(req.Dish)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	handle, err := a.engine.Cooking().Cook(dish)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task": handle.String(), "dish": string(dish)})
}

// HandleCookCancel takes a dish off the stove.
// POST /api/cook/cancel {"task":"<id>"}
func (a *API) HandleCookCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if !decode(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.Task)
	if err != nil {
		jsonError(w, "Invalid task id", http.StatusBadRequest)
		return
	}
	if !a.engine.Cooking().Cancel(tasks.Handle{ID: id}) {
		jsonError(w, "Task is not cancellable", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// HandleFish casts once.
// POST /api/fish {"location":"Ocean"}
func (a *API) HandleFish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := a.engine.Fishing().Cast(req.Location)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleEligible lists fish catchable right now.
// GET /api/fish/eligible?location=Ocean
func (a *API) HandleEligible(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	fish, err := a.engine.Fishing().Eligible(r.URL.Query().Get("location"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clock": a.engine.Clock().Snapshot(),
		"fish":  fish,
	})
}

// HandleShip puts items in the shipping bin.
// POST /api/ship {"item":"PARSNIP","quantity":2}
func (a *API) HandleShip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item     string `json:"item"`
		Quantity int    `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := item.ParseItemType(req.Item)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	value, err := a.engine.Shipping().Ship(t, req.Quantity)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"value": value})
}

// HandlePlant sows a seed.
// POST /api/plant {"plot":"plot-1","seed":"PARSNIP_SEEDS"}
func (a *API) HandlePlant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot string `json:"plot"`
		Seed string `json:"seed"`
	}
	if !decode(w, r, &req) {
		return
	}
	seed, err := item.ParseItemType(req.Seed)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := a.engine.Crops().Plant(req.Plot, seed); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plot": req.Plot, "seed": string(seed)})
}

// HandleWater waters a growing plot.
// POST /api/water {"plot":"plot-1"}
func (a *API) HandleWater(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot string `json:"plot"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := a.engine.Crops().Water(req.Plot); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plot": req.Plot})
}

// HandleHarvest picks a ready crop.
// POST /api/harvest {"plot":"plot-1"}
func (a *API) HandleHarvest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plot string `json:"plot"`
	}
	if !decode(w, r, &req) {
		return
	}
	produce, err := a.engine.Crops().Harvest(req.Plot)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plot": req.Plot, "produce": string(produce)})
}

// HandlePlots lists the farm's plots.
// GET /api/plots
func (a *API) HandlePlots(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Crops().Plots())
}

// HandleInventory returns the farm's stock, gold and shipping bin.
// GET /api/inventory
func (a *API) HandleInventory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": a.engine.Inventory().Stacks(),
		"gold":  a.engine.Shipping().Gold(),
		"bin":   a.engine.Shipping().Bin(),
	})
}

// HandleRecap summarizes the journal of this session.
// GET /api/recap?since_day=N
func (a *API) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if a.recap == nil {
		jsonError(w, "No journal attached", http.StatusServiceUnavailable)
		return
	}
	sinceDay := 0
	if s := r.URL.Query().Get("since_day"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil {
			jsonError(w, "Invalid since_day", http.StatusBadRequest)
			return
		}
		sinceDay = d
	}

	// Make sure queued journal writes are visible.
	a.engine.EventLog().Flush()

	recap, err := a.recap.GenerateRecap(r.Context(), a.sessionID, sinceDay)
	if err != nil {
		a.fail(w, err)
		return
	}
	ledger, err := a.recap.RebuildLedger(r.Context(), a.sessionID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": a.sessionID,
		"events":  recap,
		"ledger":  ledger,
	})
}

// fail maps domain errors onto HTTP statuses.
func (a *API) fail(w http.ResponseWriter, err error) {
	var (
		badTime  *calendar.InvalidTimeError
		unknown  *eligibility.UnknownCandidateError
		short    *engine.InsufficientItemsError
		full     *engine.InventoryFullError
		status   = http.StatusBadRequest
		response = map[string]string{"error": err.Error()}
	)
	switch {
	case errors.As(err, &badTime):
	case errors.As(err, &unknown):
		status = http.StatusNotFound
		if unknown.Suggestion != "" {
			response["suggestion"] = unknown.Suggestion
		}
	case errors.Is(err, engine.ErrUnknownRecipe):
		status = http.StatusNotFound
	case errors.As(err, &short), errors.As(err, &full):
		status = http.StatusConflict
	case errors.Is(err, tasks.ErrCoordinatorClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		a.logger.Warn("API request failed", logger.Err(err))
	}
	writeJSON(w, status, response)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decode reads a JSON POST body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if !allow(w, r, http.MethodPost) {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
