// Package metrics provides observability for the game server.
// Counters cover the clock driver, day rollovers, deferred tasks, the event
// journal and websocket traffic.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics. A nil *Collector records nothing.
type Collector struct {
	// Clock metrics
	TickCount        int64
	TickLatencySum   int64 // nanoseconds
	TickLatencyMax   int64
	LastTickTime     time.Time
	Rollovers        int64
	ObserverFailures int64

	// Deferred task metrics
	TasksScheduled int64
	TasksFired     int64
	TasksFailed    int64
	TasksCancelled int64
	TasksAbandoned int64

	// Event journal metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordRollover records a completed day rollover dispatch.
func (c *Collector) RecordRollover() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.Rollovers, 1)
}

// RecordObserverFailure records a rollover observer that errored or panicked.
func (c *Collector) RecordObserverFailure() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.ObserverFailures, 1)
}

func (c *Collector) RecordTaskScheduled() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TasksScheduled, 1)
}

func (c *Collector) RecordTaskFired() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TasksFired, 1)
}

func (c *Collector) RecordTaskFailed() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TasksFailed, 1)
}

func (c *Collector) RecordTaskCancelled() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TasksCancelled, 1)
}

func (c *Collector) RecordTaskAbandoned() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TasksAbandoned, 1)
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSErrors, 1)
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastTick := c.LastTickTime
	c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	var tickAvg, eventAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_sec": time.Since(c.StartTime).Seconds(),

		"clock": map[string]interface{}{
			"ticks":             tickCount,
			"avg_latency_ms":    tickAvg,
			"max_latency_ms":    float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":         lastTick,
			"rollovers":         atomic.LoadInt64(&c.Rollovers),
			"observer_failures": atomic.LoadInt64(&c.ObserverFailures),
		},

		"tasks": map[string]interface{}{
			"scheduled": atomic.LoadInt64(&c.TasksScheduled),
			"fired":     atomic.LoadInt64(&c.TasksFired),
			"failed":    atomic.LoadInt64(&c.TasksFailed),
			"cancelled": atomic.LoadInt64(&c.TasksCancelled),
			"abandoned": atomic.LoadInt64(&c.TasksAbandoned),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("farmsim_tick_count", "Total clock ticks", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP farmsim_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE farmsim_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "farmsim_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter("farmsim_day_rollovers", "Total day rollovers dispatched", atomic.LoadInt64(&c.Rollovers))
		counter("farmsim_observer_failures", "Rollover observers that failed", atomic.LoadInt64(&c.ObserverFailures))

		fmt.Fprintf(w, "# HELP farmsim_tasks_total Deferred tasks by outcome\n")
		fmt.Fprintf(w, "# TYPE farmsim_tasks_total counter\n")
		fmt.Fprintf(w, "farmsim_tasks_total{state=\"scheduled\"} %d\n", atomic.LoadInt64(&c.TasksScheduled))
		fmt.Fprintf(w, "farmsim_tasks_total{state=\"fired\"} %d\n", atomic.LoadInt64(&c.TasksFired))
		fmt.Fprintf(w, "farmsim_tasks_total{state=\"failed\"} %d\n", atomic.LoadInt64(&c.TasksFailed))
		fmt.Fprintf(w, "farmsim_tasks_total{state=\"cancelled\"} %d\n", atomic.LoadInt64(&c.TasksCancelled))
		fmt.Fprintf(w, "farmsim_tasks_total{state=\"abandoned\"} %d\n\n", atomic.LoadInt64(&c.TasksAbandoned))

		counter("farmsim_events_written", "Total events written", atomic.LoadInt64(&c.EventsWritten))
		counter("farmsim_event_write_errors", "Total event write errors", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP farmsim_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE farmsim_ws_connections gauge\n")
		fmt.Fprintf(w, "farmsim_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP farmsim_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE farmsim_ws_messages_total counter\n")
		fmt.Fprintf(w, "farmsim_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "farmsim_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
