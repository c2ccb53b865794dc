package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/greenvale/farmsim/server/internal/domain/eligibility"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
)

// CatchPayload is attached to FISH_CAUGHT and NOTHING_BITING events.
type CatchPayload struct {
	Fish     string `json:"fish,omitempty"`
	Value    int    `json:"value,omitempty"`
	Location string `json:"location"`
	Hour     int    `json:"hour"`
	Season   string `json:"season"`
	Weather  string `json:"weather"`
}

// CatchResult is what a cast produced. Fish is empty when nothing bit.
type CatchResult struct {
	Fish       string `json:"fish,omitempty"`
	Value      int    `json:"value,omitempty"`
	Candidates int    `json:"candidates"`
	Snapshot   `json:"clock"`
}

// FishingSystem picks a catch among the fish eligible for the current hour,
// season, weather and location. Every cast costs game time.
type FishingSystem struct {
	eventLog    *events.EventLog
	logger      *logger.Logger
	clock       *Clock
	inventory   *Inventory
	catalog     *eligibility.Catalog
	locations   *eligibility.LocationRegistry
	costMinutes int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewFishingSystem(el *events.EventLog, log *logger.Logger, clock *Clock, inv *Inventory, catalog *eligibility.Catalog, locations *eligibility.LocationRegistry, costMinutes int, seed uint64) *FishingSystem {
	return &FishingSystem{
		eventLog:    el,
		logger:      log,
		clock:       clock,
		inventory:   inv,
		catalog:     catalog,
		locations:   locations,
		costMinutes: costMinutes,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Eligible lists the fish catchable at location right now.
func (fs *FishingSystem) Eligible(location string) ([]eligibility.Fish, error) {
	cond, _, err := fs.conditions(location)
	if err != nil {
		return nil, err
	}
	return fs.catalog.Eligible(cond), nil
}

// Cast fishes once at location. The catch is decided by the conditions at
// the moment of the cast; the cast's time cost is applied afterwards.
func (fs *FishingSystem) Cast(location string) (CatchResult, error) {
	cond, snap, err := fs.conditions(location)
	if err != nil {
		return CatchResult{}, err
	}

	candidates := fs.catalog.Eligible(cond)
	result := CatchResult{Candidates: len(candidates), Snapshot: snap}
	payload := CatchPayload{
		Location: string(cond.Location),
		Hour:     cond.Hour,
		Season:   string(cond.Season),
		Weather:  string(cond.Weather),
	}

	if len(candidates) == 0 {
		fs.eventLog.Append(events.New(events.EventTypeNothingBiting, "farmer", snap.TotalDay, payload))
	} else {
		fs.mu.Lock()
		fish := candidates[fs.rng.IntN(len(candidates))]
		fs.mu.Unlock()

		if err := fs.inventory.Add(item.FishItem(fish.Name), 1); err != nil {
			return CatchResult{}, fmt.Errorf("failed to keep %s: %w", fish.Name, err)
		}
		result.Fish, result.Value = fish.Name, fish.Value
		payload.Fish, payload.Value = fish.Name, fish.Value
		fs.eventLog.Append(events.New(events.EventTypeFishCaught, "farmer", snap.TotalDay, payload))
		fs.logger.Info(fmt.Sprintf("[FISHING] Caught %s at %s (%dg)", fish.Name, cond.Location, fish.Value))
	}

	if err := fs.clock.AdvanceMinutes(fs.costMinutes); err != nil {
		return result, fmt.Errorf("failed to spend fishing time: %w", err)
	}
	return result, nil
}

// Price values a caught fish by its catalog entry.
func (fs *FishingSystem) Price(t item.ItemType) (int, bool) {
	for _, f := range fs.catalog.All() {
		if item.FishItem(f.Name) == t {
			return f.Value, true
		}
	}
	return 0, false
}

func (fs *FishingSystem) conditions(location string) (eligibility.Conditions, Snapshot, error) {
	loc, err := fs.locations.Resolve(location)
	if err != nil {
		return eligibility.Conditions{}, Snapshot{}, err
	}
	snap := fs.clock.Snapshot()
	return eligibility.Conditions{
		Season:   snap.Season,
		Hour:     snap.Hour,
		Weather:  snap.Weather,
		Location: loc,
	}, snap, nil
}
