package engine

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
)

// ErrClockRunning is returned when an observer is registered after Start.
var ErrClockRunning = errors.New("clock is running: register rollover observers before Start")

// DayRollover is delivered to observers once per midnight.
//
// The new-day fields describe the calendar after it advanced. The previous-day
// fields, including WasPreviousDayRainy, describe the day that just ended;
// crops use that flag to decide whether rain watered them overnight.
type DayRollover struct {
	NewTotalDay         int              `json:"new_total_day"`
	NewSeason           calendar.Season  `json:"new_season"`
	NewWeather          calendar.Weather `json:"new_weather"`
	WasPreviousDayRainy bool             `json:"was_previous_day_rainy"`
	PreviousDayInCycle  int              `json:"previous_day_in_cycle"`
	PreviousTotalDay    int              `json:"previous_total_day"`
}

// RolloverObserver reacts to a new day.
// Observers run on the goroutine that advanced the clock and must not call
// Tick or AdvanceMinutes themselves.
type RolloverObserver interface {
	OnDayRollover(r DayRollover) error
}

// RolloverFunc adapts a function to RolloverObserver.
type RolloverFunc func(r DayRollover) error

func (f RolloverFunc) OnDayRollover(r DayRollover) error {
	return f(r)
}

type namedObserver struct {
	name     string
	observer RolloverObserver
}

// ObserverFailurePayload is attached to OBSERVER_FAILED events.
type ObserverFailurePayload struct {
	Observer string `json:"observer"`
	Error    string `json:"error"`
	Day      int    `json:"day"`
}

// Dispatcher notifies rollover observers in registration order.
// A failing observer is logged and skipped; the rest still run.
type Dispatcher struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector

	mu        sync.Mutex
	observers []namedObserver
	sealed    bool
	slowAfter time.Duration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
	}
}

// Register appends an observer. name is used in logs and failure events.
func (d *Dispatcher) Register(name string, o RolloverObserver) error {
	if o == nil {
		return fmt.Errorf("observer %q is nil", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return ErrClockRunning
	}
	d.observers = append(d.observers, namedObserver{name: name, observer: o})
	return nil
}

// WarnSlowerThan logs a warning for any observer call that takes longer
// than threshold. Zero disables the check.
func (d *Dispatcher) WarnSlowerThan(threshold time.Duration) {
	d.mu.Lock()
	d.slowAfter = threshold
	d.mu.Unlock()
}

// Len reports how many observers are registered.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers)
}

// seal freezes the observer list; the clock calls it on Start.
func (d *Dispatcher) seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

// Dispatch runs every observer and returns how many failed.
func (d *Dispatcher) Dispatch(r DayRollover) int {
	d.mu.Lock()
	observers := append([]namedObserver(nil), d.observers...)
	slowAfter := d.slowAfter
	d.mu.Unlock()

	failures := 0
	for _, o := range observers {
		start := time.Now()
		err := notify(o.observer, r)
		if took := time.Since(start); slowAfter > 0 && took > slowAfter {
			d.logger.Warn("Slow rollover observer",
				logger.String("observer", o.name),
				logger.Int("day", r.NewTotalDay),
				logger.Duration("took", took),
			)
		}
		if err != nil {
			failures++
			d.metrics.RecordObserverFailure()
			d.logger.Error("Rollover observer failed",
				logger.String("observer", o.name),
				logger.Int("day", r.NewTotalDay),
				logger.Err(err),
			)
			if d.eventLog != nil {
				d.eventLog.Append(events.New(events.EventTypeObserverFailed, o.name, r.NewTotalDay, ObserverFailurePayload{
					Observer: o.name,
					Error:    err.Error(),
					Day:      r.NewTotalDay,
				}))
			}
		}
	}
	d.metrics.RecordRollover()
	return failures
}

func notify(o RolloverObserver, r DayRollover) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("observer panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return o.OnDayRollover(r)
}
