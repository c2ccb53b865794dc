// Package config holds the tunable parameters of the simulation server:
// clock cadence, task timings, storage and transport settings.
package config

import (
	"fmt"
	"time"
)

// Config holds tuned parameters for one server instance.
type Config struct {
	// Clock cadence: MinutesPerTick game minutes pass every TickInterval.
	TickInterval   time.Duration
	MinutesPerTick int
	StartHour      int
	StartMinute    int
	WeatherSeed    int64

	// Largest single AdvanceMinutes request; one season by default.
	MaxAdvanceMinutes int

	// Interaction costs in game minutes
	CookGameMinutes    int
	FishingCostMinutes int

	// Deferred tasks
	TaskShutdownGrace time.Duration

	// Storage
	DBPath         string
	DBMaxOpenConns int

	// Transport
	ListenAddr         string
	ClientSendBuffer   int
	EventPollInterval  time.Duration
	MaxClientsPerGame  int
	CatalogCacheSize   int
	ObserverSlowWarnAt time.Duration
}

// DefaultConfig returns sensible defaults for production: one real second
// per five game minutes, so a game day lasts 4.8 real minutes.
func DefaultConfig() *Config {
	return &Config{
		TickInterval:   1 * time.Second,
		MinutesPerTick: 5,
		StartHour:      6,
		StartMinute:    0,
		WeatherSeed:    0,

		MaxAdvanceMinutes: 10 * 24 * 60,

		CookGameMinutes:    60,
		FishingCostMinutes: 15,

		TaskShutdownGrace: 2 * time.Second,

		DBPath:         "farm.db",
		DBMaxOpenConns: 4,

		ListenAddr:         ":8080",
		ClientSendBuffer:   64,
		EventPollInterval:  200 * time.Millisecond,
		MaxClientsPerGame:  200,
		CatalogCacheSize:   256,
		ObserverSlowWarnAt: 100 * time.Millisecond,
	}
}

// FastConfig returns aggressive timings for development and tests.
func FastConfig() *Config {
	c := DefaultConfig()
	c.TickInterval = 10 * time.Millisecond
	c.TaskShutdownGrace = 200 * time.Millisecond
	c.DBPath = ":memory:"
	c.EventPollInterval = 20 * time.Millisecond
	c.ObserverSlowWarnAt = 10 * time.Millisecond
	return c
}

// Validate rejects configurations the clock cannot honor.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MinutesPerTick <= 0 || 60%c.MinutesPerTick != 0 {
		return fmt.Errorf("minutes per tick must divide 60, got %d", c.MinutesPerTick)
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		return fmt.Errorf("start hour must be in [0,23], got %d", c.StartHour)
	}
	if c.StartMinute < 0 || c.StartMinute > 59 || c.StartMinute%c.MinutesPerTick != 0 {
		return fmt.Errorf("start minute must be in [0,59] and a multiple of %d, got %d", c.MinutesPerTick, c.StartMinute)
	}
	if c.MaxAdvanceMinutes < c.MinutesPerTick {
		return fmt.Errorf("max advance must allow at least one tick, got %d minutes", c.MaxAdvanceMinutes)
	}
	if c.CookGameMinutes < 0 || c.FishingCostMinutes < 0 {
		return fmt.Errorf("interaction costs must not be negative")
	}
	if c.TaskShutdownGrace < 0 {
		return fmt.Errorf("task shutdown grace must not be negative")
	}
	if c.ClientSendBuffer <= 0 {
		return fmt.Errorf("client send buffer must be positive, got %d", c.ClientSendBuffer)
	}
	return nil
}

// RealPerGameMinute is the real duration of one game minute.
func (c *Config) RealPerGameMinute() time.Duration {
	return c.TickInterval / time.Duration(c.MinutesPerTick)
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseClientBuffer bool
	SlowObservers        bool
	CheckStorage         bool
	Notes                []string
}

// Analyze examines a metrics snapshot and returns tuning recommendations.
func Analyze(metrics map[string]interface{}, cfg *Config) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	if clock, ok := metrics["clock"].(map[string]interface{}); ok {
		budget := float64(cfg.TickInterval) / float64(time.Millisecond) / 2
		if maxLat, ok := clock["max_latency_ms"].(float64); ok && maxLat > budget {
			rec.SlowObservers = true
			rec.Notes = append(rec.Notes, fmt.Sprintf("Tick latency %.1fms exceeds half the tick interval - rollover observers are stalling the clock", maxLat))
		}
		if failures, ok := clock["observer_failures"].(int64); ok && failures > 0 {
			rec.Notes = append(rec.Notes, fmt.Sprintf("%d rollover observer failures recorded", failures))
		}
	}

	if events, ok := metrics["events"].(map[string]interface{}); ok {
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.CheckStorage = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check the journal database")
		}
	}

	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseClientBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
	}

	return rec
}

// MaxClientSendBuffer caps how far ApplyRecommendations grows the send buffer.
const MaxClientSendBuffer = 1024

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseClientBuffer && config.ClientSendBuffer < MaxClientSendBuffer {
		config.ClientSendBuffer = min(config.ClientSendBuffer*2, MaxClientSendBuffer)
	}
	return config
}
