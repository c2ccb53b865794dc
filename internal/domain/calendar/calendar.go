package calendar

import "fmt"

const (
	// DaysPerCycle is the number of days in one season.
	DaysPerCycle = 10
	// RainChance is the probability of an unforced day being rainy.
	RainChance = 0.35
	// MinRainyDaysPerCycle is guaranteed by forcing rain on days 9 and 10.
	MinRainyDaysPerCycle = 2
)

// State is a plain copy of the calendar fields, suitable for snapshots and
// for an external save/load collaborator.
type State struct {
	TotalDay            int     `json:"total_day"`
	DayInCycle          int     `json:"day_in_cycle"`
	Season              Season  `json:"season"`
	Weather             Weather `json:"weather"`
	RainyDaysThisSeason int     `json:"rainy_days_this_season"`
}

// Calendar tracks the day, season and weather.
// It is not safe for concurrent use; the game clock owns it and serializes access.
type Calendar struct {
	rng RandomSource

	totalDay            int
	dayInCycle          int
	season              Season
	weather             Weather
	rainyDaysThisSeason int
}

// NewCalendar starts on day 1 of spring and rolls the weather for that day.
func NewCalendar(rng RandomSource) *Calendar {
	c := &Calendar{
		rng:        rng,
		totalDay:   1,
		dayInCycle: 1,
		season:     SeasonSpring,
	}
	c.generateWeather()
	return c
}

// NewSeededCalendar is NewCalendar with a deterministic generator.
func NewSeededCalendar(seed int64) *Calendar {
	return NewCalendar(SeededSource(seed))
}

// AdvanceDay moves to the next day, rolling the season over after day 10,
// and generates the new day's weather.
func (c *Calendar) AdvanceDay() {
	c.totalDay++
	c.dayInCycle++
	if c.dayInCycle > DaysPerCycle {
		c.season = c.season.Next()
		c.dayInCycle = 1
		c.rainyDaysThisSeason = 0
	}
	c.generateWeather()
}

// generateWeather forces rain late in the cycle so every season gets at
// least MinRainyDaysPerCycle rainy days.
func (c *Calendar) generateWeather() {
	switch {
	case c.dayInCycle == DaysPerCycle-1 && c.rainyDaysThisSeason == 0:
		c.weather = WeatherRainy
	case c.dayInCycle == DaysPerCycle && c.rainyDaysThisSeason < MinRainyDaysPerCycle:
		c.weather = WeatherRainy
	case c.rng.Float64() < RainChance:
		c.weather = WeatherRainy
	default:
		c.weather = WeatherSunny
	}

	if c.weather == WeatherRainy {
		c.rainyDaysThisSeason++
	}
}

func (c *Calendar) Season() Season           { return c.season }
func (c *Calendar) Weather() Weather         { return c.weather }
func (c *Calendar) TotalDay() int            { return c.totalDay }
func (c *Calendar) DayInCycle() int          { return c.dayInCycle }
func (c *Calendar) RainyDaysThisSeason() int { return c.rainyDaysThisSeason }

// IsRainy reports whether today is rainy.
func (c *Calendar) IsRainy() bool {
	return c.weather == WeatherRainy
}

// State returns a copy of the calendar fields.
func (c *Calendar) State() State {
	return State{
		TotalDay:            c.totalDay,
		DayInCycle:          c.dayInCycle,
		Season:              c.season,
		Weather:             c.weather,
		RainyDaysThisSeason: c.rainyDaysThisSeason,
	}
}

// Restore overwrites the calendar with a previously captured State.
func (c *Calendar) Restore(s State) error {
	if s.TotalDay < 1 {
		return fmt.Errorf("total day must be >= 1, got %d", s.TotalDay)
	}
	if s.DayInCycle < 1 || s.DayInCycle > DaysPerCycle {
		return fmt.Errorf("day in cycle must be in [1,%d], got %d", DaysPerCycle, s.DayInCycle)
	}
	if !s.Season.IsValid() {
		return fmt.Errorf("unknown season: %q", s.Season)
	}
	if !s.Weather.IsValid() {
		return fmt.Errorf("unknown weather: %q", s.Weather)
	}
	if s.RainyDaysThisSeason < 0 || s.RainyDaysThisSeason > s.DayInCycle {
		return fmt.Errorf("rainy days %d inconsistent with day %d", s.RainyDaysThisSeason, s.DayInCycle)
	}

	c.totalDay = s.TotalDay
	c.dayInCycle = s.DayInCycle
	c.season = s.Season
	c.weather = s.Weather
	c.rainyDaysThisSeason = s.RainyDaysThisSeason
	return nil
}
