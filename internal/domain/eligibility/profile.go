// Package eligibility decides whether a time-gated candidate (a fish, a
// forageable) can be obtained under the current season, hour, weather and
// location, and prices it from the breadth of its eligibility windows.
// This package is PURE and must NOT import any infrastructure packages.
package eligibility

import (
	"github.com/greenvale/farmsim/server/internal/domain/calendar"
)

// RarityTier scales the value formula's divisor.
type RarityTier string

const (
	RarityCommon    RarityTier = "COMMON"
	RarityRegular   RarityTier = "REGULAR"
	RarityLegendary RarityTier = "LEGENDARY"
)

var rarityDivisors = map[RarityTier]int{
	RarityCommon:    10,
	RarityRegular:   5,
	RarityLegendary: 25,
}

// Divisor returns the value divisor for the tier.
func (t RarityTier) Divisor() (int, error) {
	d, ok := rarityDivisors[t]
	if !ok {
		return 0, unknown("rarity tier", string(t), []string{string(RarityCommon), string(RarityRegular), string(RarityLegendary)})
	}
	return d, nil
}

// Profile is the set of constraints under which a candidate may be obtained.
// Build it with NewProfile so the sets are validated and deduplicated.
type Profile struct {
	Seasons    []calendar.Season    `json:"seasons"`
	TimeRanges []calendar.TimeRange `json:"time_ranges"`
	Weathers   []calendar.Weather   `json:"weathers"`
	Locations  []LocationRef        `json:"locations"`
}

// NewProfile validates every value against the calendar enums and the
// location registry (DefaultLocations when nil) and drops duplicates.
func NewProfile(registry *LocationRegistry, seasons []calendar.Season, ranges []calendar.TimeRange, weathers []calendar.Weather, locations []LocationRef) (Profile, error) {
	if registry == nil {
		registry = DefaultLocations()
	}

	p := Profile{}

	seenSeason := make(map[calendar.Season]bool)
	for _, s := range seasons {
		if !s.IsValid() {
			return Profile{}, unknown("season", string(s), seasonNames())
		}
		if !seenSeason[s] {
			seenSeason[s] = true
			p.Seasons = append(p.Seasons, s)
		}
	}

	for _, r := range ranges {
		if _, err := calendar.NewTimeRange(r.From, r.To); err != nil {
			return Profile{}, err
		}
		p.TimeRanges = append(p.TimeRanges, r)
	}

	seenWeather := make(map[calendar.Weather]bool)
	for _, w := range weathers {
		if !w.IsValid() {
			return Profile{}, unknown("weather", string(w), weatherNames())
		}
		if !seenWeather[w] {
			seenWeather[w] = true
			p.Weathers = append(p.Weathers, w)
		}
	}

	seenLocation := make(map[LocationRef]bool)
	for _, l := range locations {
		resolved, err := registry.Resolve(string(l))
		if err != nil {
			return Profile{}, err
		}
		if !seenLocation[resolved] {
			seenLocation[resolved] = true
			p.Locations = append(p.Locations, resolved)
		}
	}

	return p, nil
}

// EligibilityProfile lets a bare Profile be used as a Candidate.
func (p Profile) EligibilityProfile() Profile {
	return p
}

func (p Profile) HasSeason(s calendar.Season) bool {
	for _, v := range p.Seasons {
		if v == s {
			return true
		}
	}
	return false
}

func (p Profile) HasWeather(w calendar.Weather) bool {
	for _, v := range p.Weathers {
		if v == w {
			return true
		}
	}
	return false
}

func (p Profile) HasLocation(l LocationRef) bool {
	for _, v := range p.Locations {
		if v == l {
			return true
		}
	}
	return false
}

// CoversHour reports whether any of the profile's time ranges contains hour.
func (p Profile) CoversHour(hour int) bool {
	for _, r := range p.TimeRanges {
		if r.Contains(hour) {
			return true
		}
	}
	return false
}

// TotalHours sums the hours of every time range. Overlapping ranges count twice.
func (p Profile) TotalHours() int {
	total := 0
	for _, r := range p.TimeRanges {
		total += r.TotalHours()
	}
	return total
}

func seasonNames() []string {
	out := make([]string, len(calendar.Seasons))
	for i, s := range calendar.Seasons {
		out[i] = string(s)
	}
	return out
}

func weatherNames() []string {
	out := make([]string, len(calendar.Weathers))
	for i, w := range calendar.Weathers {
		out[i] = string(w)
	}
	return out
}
