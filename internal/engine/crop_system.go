package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/plot"
	"github.com/greenvale/farmsim/server/internal/domain/rules"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
)

// CropPayload is attached to CROP_* events.
type CropPayload struct {
	PlotID string        `json:"plot_id"`
	Crop   item.ItemType `json:"crop"`
	Stage  plot.Stage    `json:"stage"`
}

// CropSystem tends the farm's plots. It grows crops on day rollover.
type CropSystem struct {
	eventLog  *events.EventLog
	logger    *logger.Logger
	clock     *Clock
	inventory *Inventory

	mu    sync.Mutex
	plots map[string]*plot.Plot
}

// NewCropSystem creates numPlots empty plots named plot-1..plot-N.
func NewCropSystem(el *events.EventLog, log *logger.Logger, clock *Clock, inv *Inventory, numPlots int) *CropSystem {
	cs := &CropSystem{
		eventLog:  el,
		logger:    log,
		clock:     clock,
		inventory: inv,
		plots:     make(map[string]*plot.Plot, numPlots),
	}
	for i := 1; i <= numPlots; i++ {
		id := fmt.Sprintf("plot-%d", i)
		cs.plots[id] = plot.NewPlot(id)
	}
	return cs
}

// Plant sows a seed from the inventory into plotID.
func (cs *CropSystem) Plant(plotID string, seed item.ItemType) error {
	crop, ok := item.Crops[seed]
	if !ok {
		return fmt.Errorf("%s is not a seed", seed)
	}
	if season := cs.clock.Season(); !crop.InSeason(season) {
		return fmt.Errorf("%s cannot be planted in %s", seed, season)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	p, ok := cs.plots[plotID]
	if !ok {
		return fmt.Errorf("plot %s not found", plotID)
	}
	if p.Stage == plot.StageGrowing || p.Stage == plot.StageReady {
		return fmt.Errorf("plot %s is occupied", plotID)
	}
	if err := cs.inventory.Remove(item.ItemStack{Type: seed, Quantity: 1}); err != nil {
		return fmt.Errorf("failed to plant %s: %w", seed, err)
	}
	p.Sow(seed)

	cs.append(events.EventTypeCropPlanted, p)
	cs.logger.Info(fmt.Sprintf("[CROPS] Planted %s in %s", seed, plotID))
	return nil
}

// Water marks a plot as watered for today.
func (cs *CropSystem) Water(plotID string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	p, ok := cs.plots[plotID]
	if !ok {
		return fmt.Errorf("plot %s not found", plotID)
	}
	if p.Stage != plot.StageGrowing {
		return fmt.Errorf("nothing is growing in %s", plotID)
	}
	p.Watered = true
	cs.append(events.EventTypeCropWatered, p)
	return nil
}

// Harvest moves a ready crop into the inventory and clears the plot.
func (cs *CropSystem) Harvest(plotID string) (item.ItemType, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	p, ok := cs.plots[plotID]
	if !ok {
		return "", fmt.Errorf("plot %s not found", plotID)
	}
	if p.Stage != plot.StageReady {
		return "", fmt.Errorf("plot %s is not ready (%s)", plotID, p.Stage)
	}
	produce := item.Crops[p.Seed].Produce
	if err := cs.inventory.Add(produce, 1); err != nil {
		return "", fmt.Errorf("failed to harvest %s: %w", plotID, err)
	}
	p.Clear()
	return produce, nil
}

// OnDayRollover grows every plot that was watered or rained on.
func (cs *CropSystem) OnDayRollover(r DayRollover) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	params := rules.GrowthParams{
		WasPreviousDayRainy: r.WasPreviousDayRainy,
		NewSeason:           r.NewSeason,
	}
	for _, p := range cs.sortedLocked() {
		if p.Stage != plot.StageGrowing {
			p.Watered = false
			continue
		}
		if !rules.ApplyOvernightGrowth(p, item.Crops[p.Seed], params) {
			continue
		}
		switch p.Stage {
		case plot.StageReady:
			cs.eventLog.Append(events.New(events.EventTypeCropGrown, events.ActorSystem, r.NewTotalDay, cropPayload(p)))
			cs.logger.Info(fmt.Sprintf("[CROPS] %s is ready in %s", p.Seed, p.ID))
		case plot.StageWithered:
			cs.logger.Info(fmt.Sprintf("[CROPS] %s withered in %s", p.Seed, p.ID))
		}
	}
	return nil
}

// Plots returns copies of all plots ordered by ID.
func (cs *CropSystem) Plots() []plot.Plot {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	sorted := cs.sortedLocked()
	out := make([]plot.Plot, len(sorted))
	for i, p := range sorted {
		out[i] = *p
	}
	return out
}

func (cs *CropSystem) sortedLocked() []*plot.Plot {
	out := make([]*plot.Plot, 0, len(cs.plots))
	for _, p := range cs.plots {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (cs *CropSystem) append(t events.EventType, p *plot.Plot) {
	cs.eventLog.Append(events.New(t, "farmer", cs.clock.TotalDay(), cropPayload(p)))
}

func cropPayload(p *plot.Plot) CropPayload {
	return CropPayload{PlotID: p.ID, Crop: p.Seed, Stage: p.Stage}
}
