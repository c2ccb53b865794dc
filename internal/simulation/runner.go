// Package simulation drives a headless farm through whole seasons with a
// seeded calendar and checks the calendar and rollover guarantees along the
// way. It backs cmd/sim-runner.
package simulation

import (
	"context"
	"fmt"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/plot"
	"github.com/greenvale/farmsim/server/internal/engine"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

// Check names reported in violations.
const (
	CheckRainfall  = "RAINFALL"
	CheckRollover  = "ROLLOVER"
	CheckRainyFlag = "RAINY_FLAG"
)

// Options configures one run.
type Options struct {
	Seed         int64
	Cycles       int
	FishLocation string
	FishHour     int
	EventLog     *events.EventLog
	Metrics      *metrics.Collector
}

// DefaultOptions fishes the ocean at noon for four seasons.
func DefaultOptions(seed int64) Options {
	return Options{Seed: seed, Cycles: 4, FishLocation: "Ocean", FishHour: 12}
}

// SeasonStats summarizes one season of the run.
type SeasonStats struct {
	Index      int             `json:"index"`
	Season     calendar.Season `json:"season"`
	Days       int             `json:"days"`
	RainyDays  int             `json:"rainy_days"`
	FishCaught int             `json:"fish_caught"`
	Harvested  int             `json:"harvested"`
	GoldEarned int             `json:"gold_earned"`
}

// Violation is one broken guarantee.
type Violation struct {
	Check  string `json:"check"`
	Day    int    `json:"day"`
	Detail string `json:"detail"`
}

// Report is the outcome of a run.
type Report struct {
	Seed       int64         `json:"seed"`
	Days       int           `json:"days"`
	Rollovers  int           `json:"rollovers"`
	Events     int           `json:"events"`
	Seasons    []SeasonStats `json:"seasons"`
	Violations []Violation   `json:"violations"`
}

// Passed reports whether no guarantee was broken.
func (r *Report) Passed() bool {
	return len(r.Violations) == 0
}

type dayRecord struct {
	totalDay   int
	dayInCycle int
	weather    calendar.Weather
}

// Runner owns one engine for the duration of a run.
type Runner struct {
	opts   Options
	engine *engine.Engine
	logger *logger.Logger

	days      []dayRecord
	rollovers []engine.DayRollover
	report    *Report
}

// NewRunner builds an engine whose clock is never started: time only moves
// when the runner advances it, so a seed always replays the same farm.
func NewRunner(opts Options, log *logger.Logger) (*Runner, error) {
	if opts.Cycles <= 0 {
		return nil, fmt.Errorf("cycles must be positive, got %d", opts.Cycles)
	}
	if opts.FishHour < engine.DayStartHour || opts.FishHour > 23 {
		return nil, fmt.Errorf("fish hour must be in [%d,23], got %d", engine.DayStartHour, opts.FishHour)
	}
	if opts.Seed == 0 {
		return nil, fmt.Errorf("a non-zero seed is required for a reproducible run")
	}
	if opts.EventLog == nil {
		opts.EventLog = events.NewEventLog(nil)
	}

	cfg := config.FastConfig()
	cfg.WeatherSeed = opts.Seed
	cfg.StartHour, cfg.StartMinute = engine.DayStartHour, 0

	eng, err := engine.NewEngine(cfg, opts.EventLog, log, opts.Metrics)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		opts:   opts,
		engine: eng,
		logger: log,
		report: &Report{Seed: opts.Seed},
	}
	if err := eng.Clock().OnDayRollover("simulation", r.onRollover); err != nil {
		eng.Shutdown()
		return nil, err
	}
	return r, nil
}

func (r *Runner) onRollover(ro engine.DayRollover) error {
	r.rollovers = append(r.rollovers, ro)
	return nil
}

// Engine exposes the engine under simulation.
func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

// Run simulates opts.Cycles seasons, one morning-to-morning day at a time.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	defer r.engine.Shutdown()

	totalDays := r.opts.Cycles * calendar.DaysPerCycle
	for d := 0; d < totalDays; d++ {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if err := r.simulateDay(); err != nil {
			return r.report, err
		}
	}

	r.engine.EventLog().Flush()
	r.report.Days = len(r.days)
	r.report.Rollovers = len(r.rollovers)
	r.report.Events = r.engine.EventLog().Len()
	r.verifyRollovers()
	r.verifyRainfall()
	return r.report, nil
}

func (r *Runner) simulateDay() error {
	clock := r.engine.Clock()
	snap := clock.Snapshot()
	r.days = append(r.days, dayRecord{totalDay: snap.TotalDay, dayInCycle: snap.DayInCycle, weather: snap.Weather})
	stats := r.season(snap)
	stats.Days++
	if snap.Weather == calendar.WeatherRainy {
		stats.RainyDays++
	}

	r.tendCrops(stats, snap.Weather == calendar.WeatherRainy)

	if err := clock.JumpTo(r.opts.FishHour, 0); err != nil {
		return err
	}
	catch, err := r.engine.Fishing().Cast(r.opts.FishLocation)
	if err != nil {
		return fmt.Errorf("failed to fish on day %d: %w", snap.TotalDay, err)
	}
	if catch.Fish != "" {
		stats.FishCaught++
	}
	r.shipEverything()

	goldBefore := r.engine.Shipping().Gold()
	if err := clock.AdvanceMinutes(minutesUntilMorning(clock.Hour(), clock.Minute())); err != nil {
		return err
	}
	stats.GoldEarned += r.engine.Shipping().Gold() - goldBefore
	return nil
}

// season returns the stats bucket for the season snap falls in.
func (r *Runner) season(snap engine.Snapshot) *SeasonStats {
	idx := (snap.TotalDay - 1) / calendar.DaysPerCycle
	for len(r.report.Seasons) <= idx {
		r.report.Seasons = append(r.report.Seasons, SeasonStats{Index: len(r.report.Seasons)})
	}
	s := &r.report.Seasons[idx]
	s.Season = snap.Season
	return s
}

// tendCrops harvests, replants and waters. Rain does the watering on rainy days.
func (r *Runner) tendCrops(stats *SeasonStats, rainy bool) {
	crops := r.engine.Crops()
	for _, p := range crops.Plots() {
		switch p.Stage {
		case plot.StageReady:
			if _, err := crops.Harvest(p.ID); err == nil {
				stats.Harvested++
			}
			r.plant(p.ID)
		case plot.StageEmpty, plot.StageWithered:
			r.plant(p.ID)
		}
	}
	if rainy {
		return
	}
	for _, p := range crops.Plots() {
		if p.Stage == plot.StageGrowing {
			crops.Water(p.ID)
		}
	}
}

// plant sows the first in-season seed the farm still holds.
func (r *Runner) plant(plotID string) {
	season := r.engine.Clock().Season()
	for _, seed := range []item.ItemType{item.ItemParsnipSeeds, item.ItemPotatoSeeds, item.ItemMelonSeeds, item.ItemPumpkinSeeds} {
		if !item.Crops[seed].InSeason(season) || r.engine.Inventory().Count(seed) == 0 {
			continue
		}
		if err := r.engine.Crops().Plant(plotID, seed); err == nil {
			return
		}
	}
}

// shipEverything sells produce and fish; seeds and eggs are kept.
func (r *Runner) shipEverything() {
	for _, s := range r.engine.Inventory().Stacks() {
		if !s.Type.IsFish() && !isProduce(s.Type) {
			continue
		}
		if _, err := r.engine.Shipping().Ship(s.Type, s.Quantity); err != nil {
			r.logger.Warn("Simulation could not ship", logger.String("item", string(s.Type)), logger.Err(err))
		}
	}
}

func isProduce(t item.ItemType) bool {
	for _, c := range item.Crops {
		if c.Produce == t {
			return true
		}
	}
	return false
}

// minutesUntilMorning is the distance to the next 06:00, always crossing midnight.
func minutesUntilMorning(hour, minute int) int {
	const day = 24 * engine.MinutesPerHour
	now := hour*engine.MinutesPerHour + minute
	return day - now + engine.DayStartHour*engine.MinutesPerHour
}

// verifyRollovers checks one rollover per simulated day, each describing the
// day that actually ended.
func (r *Runner) verifyRollovers() {
	if len(r.rollovers) != len(r.days) {
		r.violate(CheckRollover, 0, "expected %d rollovers, got %d", len(r.days), len(r.rollovers))
		return
	}
	for i, ro := range r.rollovers {
		prev := r.days[i]
		if ro.PreviousTotalDay != prev.totalDay || ro.NewTotalDay != prev.totalDay+1 {
			r.violate(CheckRollover, prev.totalDay, "rollover %d->%d after day %d", ro.PreviousTotalDay, ro.NewTotalDay, prev.totalDay)
		}
		if ro.PreviousDayInCycle != prev.dayInCycle {
			r.violate(CheckRollover, prev.totalDay, "previous day in cycle %d, expected %d", ro.PreviousDayInCycle, prev.dayInCycle)
		}
		if ro.WasPreviousDayRainy != (prev.weather == calendar.WeatherRainy) {
			r.violate(CheckRainyFlag, prev.totalDay, "rainy flag %v for a %s day", ro.WasPreviousDayRainy, prev.weather)
		}
		if i+1 < len(r.days) && ro.NewWeather != r.days[i+1].weather {
			r.violate(CheckRollover, prev.totalDay, "announced %s but day %d was %s", ro.NewWeather, prev.totalDay+1, r.days[i+1].weather)
		}
	}
}

// verifyRainfall checks every completed season had enough rain.
func (r *Runner) verifyRainfall() {
	for _, s := range r.report.Seasons {
		if s.Days == calendar.DaysPerCycle && s.RainyDays < calendar.MinRainyDaysPerCycle {
			r.violate(CheckRainfall, (s.Index+1)*calendar.DaysPerCycle, "season %d (%s) had %d rainy days", s.Index, s.Season, s.RainyDays)
		}
	}
}

func (r *Runner) violate(check string, day int, format string, args ...interface{}) {
	r.report.Violations = append(r.report.Violations, Violation{Check: check, Day: day, Detail: fmt.Sprintf(format, args...)})
}
