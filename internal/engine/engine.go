package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/eligibility"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
	"github.com/greenvale/farmsim/server/internal/tasks"
)

// DefaultPlots is the number of plots a new farm starts with.
const DefaultPlots = 12

// StarterKit is the inventory a new farm starts with.
var StarterKit = []item.ItemStack{
	{Type: item.ItemParsnipSeeds, Quantity: 15},
	{Type: item.ItemPotatoSeeds, Quantity: 5},
	{Type: item.ItemEgg, Quantity: 3},
}

// TaskFailedPayload is attached to TASK_FAILED events.
type TaskFailedPayload struct {
	Task  string `json:"task"`
	Label string `json:"label"`
	Error string `json:"error"`
}

// Engine is the central orchestrator: it owns the one clock of the game and
// hands it to every system that needs time.
type Engine struct {
	cfg      *config.Config
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	seed     int64

	clock       *Clock
	coordinator *tasks.Coordinator
	locations   *eligibility.LocationRegistry
	catalog     *eligibility.Catalog
	inventory   *Inventory

	// Sub-systems
	crops    *CropSystem
	shipping *ShippingSystem
	cooking  *CookingSystem
	fishing  *FishingSystem
}

// NewEngine initializes the clock, the task coordinator and the farm
// systems, and registers the rollover observers in their fixed order:
// crops first, then shipping.
func NewEngine(cfg *config.Config, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if eventLog == nil {
		eventLog = events.NewEventLog(nil)
	}

	seed := cfg.WeatherSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	clock, err := NewClock(cfg, calendar.NewSeededCalendar(seed), eventLog, log.Named("clock"), m)
	if err != nil {
		return nil, err
	}

	locations := eligibility.DefaultLocations()
	catalog, err := eligibility.DefaultCatalog(locations, cfg.CatalogCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build fish catalog: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		eventLog:  eventLog,
		logger:    log,
		metrics:   m,
		seed:      seed,
		clock:     clock,
		locations: locations,
		catalog:   catalog,
		inventory: NewInventory(StarterKit...),
	}

	e.coordinator = tasks.NewCoordinator(log.Named("tasks"), m, tasks.Options{OnFailure: e.onTaskFailed})
	e.crops = NewCropSystem(eventLog, log, clock, e.inventory, DefaultPlots)
	e.fishing = NewFishingSystem(eventLog, log, clock, e.inventory, catalog, locations, cfg.FishingCostMinutes, uint64(seed))
	e.shipping = NewShippingSystem(eventLog, log, clock, e.inventory, e.price)
	e.cooking = NewCookingSystem(eventLog, log, clock, e.inventory, e.coordinator, cfg.CookGameMinutes)

	if err := clock.RegisterRolloverObserver("crops", e.crops); err != nil {
		return nil, err
	}
	if err := clock.RegisterRolloverObserver("shipping", e.shipping); err != nil {
		return nil, err
	}

	return e, nil
}

// Start runs the clock driver until ctx ends. Extra rollover observers must
// be registered on Clock() before this call.
func (e *Engine) Start(ctx context.Context) {
	snap := e.clock.Snapshot()
	e.logger.Info("Starting farm engine...",
		logger.Int("day", snap.TotalDay),
		logger.String("season", string(snap.Season)),
		logger.String("weather", string(snap.Weather)),
		logger.String("time", snap.TimeString()),
		logger.Any("seed", e.seed),
	)
	go e.clock.Start(ctx)
}

// Shutdown stops the clock and drains the task coordinator within the
// configured grace. It returns the number of abandoned tasks.
func (e *Engine) Shutdown() int {
	e.clock.Stop()
	return e.coordinator.Shutdown(e.cfg.TaskShutdownGrace)
}

func (e *Engine) onTaskFailed(h tasks.Handle, label string, err error) {
	e.eventLog.Append(events.New(events.EventTypeTaskFailed, events.ActorSystem, e.clock.TotalDay(), TaskFailedPayload{
		Task:  h.String(),
		Label: label,
		Error: err.Error(),
	}))
}

// price values anything the shipping bin accepts.
func (e *Engine) price(t item.ItemType) (int, bool) {
	if t.IsFish() {
		return e.fishing.Price(t)
	}
	def, ok := item.Lookup(t)
	if !ok || def.BaseValue <= 0 {
		return 0, false
	}
	return def.BaseValue, true
}

func (e *Engine) Clock() *Clock                             { return e.clock }
func (e *Engine) Coordinator() *tasks.Coordinator           { return e.coordinator }
func (e *Engine) Catalog() *eligibility.Catalog             { return e.catalog }
func (e *Engine) Locations() *eligibility.LocationRegistry { return e.locations }
func (e *Engine) Inventory() *Inventory                     { return e.inventory }
func (e *Engine) Crops() *CropSystem                        { return e.crops }
func (e *Engine) Shipping() *ShippingSystem                 { return e.shipping }
func (e *Engine) Cooking() *CookingSystem                   { return e.cooking }
func (e *Engine) Fishing() *FishingSystem                   { return e.fishing }
func (e *Engine) EventLog() *events.EventLog                { return e.eventLog }
func (e *Engine) Seed() int64                               { return e.seed }
