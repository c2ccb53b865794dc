// Package calendar defines the in-game calendar: seasons, weather, hour ranges
// and the day-by-day weather generator.
// This package is PURE and must NOT import any infrastructure packages.
package calendar

import (
	"fmt"
	"strings"
)

// Season is one quarter of the in-game year. A season lasts one cycle.
type Season string

const (
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonFall   Season = "FALL"
	SeasonWinter Season = "WINTER"
)

// Seasons lists every season in calendar order.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter}

// Next returns the season that follows s, wrapping WINTER back to SPRING.
func (s Season) Next() Season {
	switch s {
	case SeasonSpring:
		return SeasonSummer
	case SeasonSummer:
		return SeasonFall
	case SeasonFall:
		return SeasonWinter
	default:
		return SeasonSpring
	}
}

// IsValid reports whether s is one of the four known seasons.
func (s Season) IsValid() bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter:
		return true
	}
	return false
}

// ParseSeason accepts a season name in any case ("autumn" is accepted for FALL).
func ParseSeason(name string) (Season, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if normalized == "AUTUMN" {
		normalized = string(SeasonFall)
	}
	s := Season(normalized)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown season: %q", name)
	}
	return s, nil
}

// Weather is the weather of a whole in-game day.
type Weather string

const (
	WeatherSunny Weather = "SUNNY"
	WeatherRainy Weather = "RAINY"
)

// Weathers lists every weather kind.
var Weathers = []Weather{WeatherSunny, WeatherRainy}

// IsValid reports whether w is a known weather kind.
func (w Weather) IsValid() bool {
	return w == WeatherSunny || w == WeatherRainy
}

// ParseWeather accepts a weather name in any case.
func ParseWeather(name string) (Weather, error) {
	w := Weather(strings.ToUpper(strings.TrimSpace(name)))
	if !w.IsValid() {
		return "", fmt.Errorf("unknown weather: %q", name)
	}
	return w, nil
}
