// Package engine contains the game clock and the farm systems driven by it.
//
// The Clock owns the Calendar. It emits hour, night/day and rollover events to
// the EventLog and notifies rollover observers directly; systems never mutate
// the clock except through AdvanceMinutes.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

const (
	MinutesPerHour = 60
	NightStartHour = 18
	DayStartHour   = 6
)

// IsNightHour reports whether hour falls in [18,24) or [0,6).
func IsNightHour(hour int) bool {
	return hour >= NightStartHour || hour < DayStartHour
}

// Snapshot is a consistent copy of the clock and calendar.
type Snapshot struct {
	Hour                int              `json:"hour"`
	Minute              int              `json:"minute"`
	IsNight             bool             `json:"is_night"`
	Paused              bool             `json:"paused"`
	Ticks               int64            `json:"ticks"`
	TotalDay            int              `json:"total_day"`
	DayInCycle          int              `json:"day_in_cycle"`
	Season              calendar.Season  `json:"season"`
	Weather             calendar.Weather `json:"weather"`
	RainyDaysThisSeason int              `json:"rainy_days_this_season"`
}

// TimeString formats the clock as HH:MM.
func (s Snapshot) TimeString() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// HourChangedPayload is attached to HOUR_CHANGED, NIGHTFALL and DAYBREAK events.
type HourChangedPayload struct {
	Hour    int  `json:"hour"`
	IsNight bool `json:"is_night"`
}

// TimeJumpPayload is attached to TIME_JUMP events.
type TimeJumpPayload struct {
	FromHour   int `json:"from_hour"`
	FromMinute int `json:"from_minute"`
	ToHour     int `json:"to_hour"`
	ToMinute   int `json:"to_minute"`
}

// Clock converts real time into game time.
//
// State is guarded by mu and read with copy-then-release. Tick, AdvanceMinutes
// and JumpTo are serialized by advanceMu, so rollover dispatch is strictly
// ordered and observers run without mu held.
type Clock struct {
	tickInterval   time.Duration
	minutesPerTick int
	maxAdvance     int

	calendar   *calendar.Calendar
	dispatcher *Dispatcher
	eventLog   *events.EventLog
	logger     *logger.Logger
	metrics    *metrics.Collector

	advanceMu sync.Mutex

	mu     sync.RWMutex
	hour   int
	minute int
	night  bool
	ticks  int64

	paused   atomic.Bool
	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// transition collects what one step changed, for emission after mu is released.
type transition struct {
	hourChanged bool
	nightfall   bool
	daybreak    bool
	rollover    *DayRollover
	hour        int
	day         int
}

// NewClock binds a clock to its calendar at cfg's start time.
func NewClock(cfg *config.Config, cal *calendar.Calendar, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector) (*Clock, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clock config: %w", err)
	}
	if cal == nil {
		return nil, fmt.Errorf("clock requires a calendar")
	}

	dispatcher := NewDispatcher(eventLog, log, m)
	dispatcher.WarnSlowerThan(cfg.ObserverSlowWarnAt)

	return &Clock{
		tickInterval:   cfg.TickInterval,
		minutesPerTick: cfg.MinutesPerTick,
		maxAdvance:     cfg.MaxAdvanceMinutes,
		calendar:       cal,
		dispatcher:     dispatcher,
		eventLog:       eventLog,
		logger:         log,
		metrics:        m,
		hour:           cfg.StartHour,
		minute:         cfg.StartMinute,
		night:          IsNightHour(cfg.StartHour),
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// RegisterRolloverObserver adds an observer. It fails with ErrClockRunning
// once Start has been called.
func (c *Clock) RegisterRolloverObserver(name string, o RolloverObserver) error {
	return c.dispatcher.Register(name, o)
}

// OnDayRollover registers a plain function as a rollover observer.
func (c *Clock) OnDayRollover(name string, fn func(r DayRollover) error) error {
	return c.dispatcher.Register(name, RolloverFunc(fn))
}

// Start runs the background driver until ctx ends or Stop is called.
// Call in a goroutine.
func (c *Clock) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("Clock already started.")
		return
	}
	c.dispatcher.seal()
	defer close(c.done)

	c.logger.Info("Clock started.",
		logger.Duration("tick_interval", c.tickInterval),
		logger.Int("minutes_per_tick", c.minutesPerTick),
	)

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Clock stopped by context.")
			return
		case <-c.stopChan:
			c.logger.Info("Clock stopped manually.")
			return
		case <-ticker.C:
			if c.paused.Load() {
				continue
			}
			c.Tick()
		}
	}
}

// Stop halts the background driver. It is safe to call more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// Done is closed when a started driver has returned.
func (c *Clock) Done() <-chan struct{} {
	return c.done
}

// Pause skips background ticks until Resume. Manual advances still apply.
func (c *Clock) Pause() {
	if c.paused.CompareAndSwap(false, true) {
		c.emit(events.EventTypeClockPaused, nil)
	}
}

// Resume restarts background ticking.
func (c *Clock) Resume() {
	if c.paused.CompareAndSwap(true, false) {
		c.emit(events.EventTypeClockResumed, nil)
	}
}

func (c *Clock) IsPaused() bool {
	return c.paused.Load()
}

// Tick advances the clock by one step of MinutesPerTick minutes.
func (c *Clock) Tick() {
	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	start := time.Now()
	c.apply(c.step())
	c.metrics.RecordTick(time.Since(start))
}

// AdvanceMinutes applies n/MinutesPerTick ticks synchronously; the remainder
// is dropped. Negative n, or n above the configured maximum, is rejected
// without any state change.
func (c *Clock) AdvanceMinutes(n int) error {
	if n < 0 {
		return &calendar.InvalidTimeError{Minute: n, Message: fmt.Sprintf("cannot advance by %d minutes", n)}
	}
	if n > c.maxAdvance {
		return &calendar.InvalidTimeError{Minute: n, Message: fmt.Sprintf("cannot advance by %d minutes, at most %d per request", n, c.maxAdvance)}
	}

	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	for i := 0; i < n/c.minutesPerTick; i++ {
		start := time.Now()
		c.apply(c.step())
		c.metrics.RecordTick(time.Since(start))
	}
	return nil
}

// JumpTo sets the time of day directly. It never rolls the day over, even
// when the target is earlier than now. The minute is floored to the tick
// granularity.
func (c *Clock) JumpTo(hour, minute int) error {
	if err := calendar.ValidateTime(hour, minute); err != nil {
		return err
	}

	c.advanceMu.Lock()
	defer c.advanceMu.Unlock()

	c.mu.Lock()
	from := TimeJumpPayload{FromHour: c.hour, FromMinute: c.minute}
	wasNight := c.night
	c.hour = hour
	c.minute = minute - minute%c.minutesPerTick
	c.night = IsNightHour(hour)
	from.ToHour, from.ToMinute = c.hour, c.minute
	night := c.night
	day := c.calendar.TotalDay()
	c.mu.Unlock()

	c.append(events.EventTypeTimeJump, day, from)
	if night != wasNight {
		t := events.EventTypeDaybreak
		if night {
			t = events.EventTypeNightfall
		}
		c.append(t, day, HourChangedPayload{Hour: hour, IsNight: night})
	}
	c.logger.Info("Clock jumped.",
		logger.String("to", fmt.Sprintf("%02d:%02d", from.ToHour, from.ToMinute)),
	)
	return nil
}

// step performs one tick of state mutation under mu.
func (c *Clock) step() transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	c.minute += c.minutesPerTick
	if c.minute < MinutesPerHour {
		return transition{}
	}

	c.minute = 0
	c.hour++
	tr := transition{hourChanged: true}

	switch c.hour {
	case NightStartHour:
		tr.nightfall = true
	case DayStartHour:
		tr.daybreak = true
	case calendar.HoursPerDay:
		c.hour = 0
		wasRainy := c.calendar.IsRainy()
		prevCycleDay := c.calendar.DayInCycle()
		prevTotal := c.calendar.TotalDay()
		c.calendar.AdvanceDay()
		tr.rollover = &DayRollover{
			NewTotalDay:         c.calendar.TotalDay(),
			NewSeason:           c.calendar.Season(),
			NewWeather:          c.calendar.Weather(),
			WasPreviousDayRainy: wasRainy,
			PreviousDayInCycle:  prevCycleDay,
			PreviousTotalDay:    prevTotal,
		}
	}
	c.night = IsNightHour(c.hour)
	tr.hour = c.hour
	tr.day = c.calendar.TotalDay()
	return tr
}

// apply emits events and dispatches the rollover. Called with advanceMu held.
func (c *Clock) apply(tr transition) {
	if !tr.hourChanged {
		return
	}

	if tr.rollover != nil {
		r := *tr.rollover
		c.append(events.EventTypeDayRollover, r.NewTotalDay, r)
		c.logger.Event(string(events.EventTypeDayRollover), events.ActorSystem,
			fmt.Sprintf("Day %d (%s, %s)", r.NewTotalDay, r.NewSeason, r.NewWeather))
		c.dispatcher.Dispatch(r)
	}

	c.append(events.EventTypeHourChanged, tr.day, HourChangedPayload{Hour: tr.hour, IsNight: IsNightHour(tr.hour)})
	switch {
	case tr.nightfall:
		c.append(events.EventTypeNightfall, tr.day, HourChangedPayload{Hour: tr.hour, IsNight: true})
	case tr.daybreak:
		c.append(events.EventTypeDaybreak, tr.day, HourChangedPayload{Hour: tr.hour, IsNight: false})
	}
}

func (c *Clock) append(t events.EventType, day int, payload interface{}) {
	if c.eventLog == nil {
		return
	}
	c.eventLog.Append(events.New(t, events.ActorSystem, day, payload))
}

func (c *Clock) emit(t events.EventType, payload interface{}) {
	c.append(t, c.TotalDay(), payload)
}

// Snapshot returns a consistent copy of all clock and calendar fields.
func (c *Clock) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.calendar.State()
	return Snapshot{
		Hour:                c.hour,
		Minute:              c.minute,
		IsNight:             c.night,
		Paused:              c.paused.Load(),
		Ticks:               c.ticks,
		TotalDay:            s.TotalDay,
		DayInCycle:          s.DayInCycle,
		Season:              s.Season,
		Weather:             s.Weather,
		RainyDaysThisSeason: s.RainyDaysThisSeason,
	}
}

func (c *Clock) Hour() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hour
}

func (c *Clock) Minute() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minute
}

func (c *Clock) IsNight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.night
}

func (c *Clock) Season() calendar.Season {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calendar.Season()
}

func (c *Clock) Weather() calendar.Weather {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calendar.Weather()
}

func (c *Clock) TotalDay() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calendar.TotalDay()
}

func (c *Clock) DayInCycle() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calendar.DayInCycle()
}

// TickInterval is the real time between background ticks.
func (c *Clock) TickInterval() time.Duration {
	return c.tickInterval
}

// MinutesPerTick is the tick granularity in game minutes.
func (c *Clock) MinutesPerTick() int {
	return c.minutesPerTick
}

// RealDuration converts game minutes to the real delay at this clock's pace.
func (c *Clock) RealDuration(gameMinutes int) time.Duration {
	return time.Duration(gameMinutes) * c.tickInterval / time.Duration(c.minutesPerTick)
}
