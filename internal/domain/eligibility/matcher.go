package eligibility

import (
	"github.com/greenvale/farmsim/server/internal/domain/calendar"
)

// Candidate is anything gated by an eligibility profile.
type Candidate interface {
	EligibilityProfile() Profile
}

// Conditions is a snapshot of the world state a candidate is matched against.
type Conditions struct {
	Season   calendar.Season  `json:"season"`
	Hour     int              `json:"hour"`
	Weather  calendar.Weather `json:"weather"`
	Location LocationRef      `json:"location"`
}

// IsEligible reports whether the profile admits the given conditions: the
// season, weather and location are all listed and some time range covers hour.
func IsEligible(p Profile, season calendar.Season, hour int, weather calendar.Weather, location LocationRef) bool {
	return p.HasSeason(season) &&
		p.HasLocation(location) &&
		p.HasWeather(weather) &&
		p.CoversHour(hour)
}

// Matches is IsEligible over a Conditions value.
func (c Conditions) Matches(p Profile) bool {
	return IsEligible(p, c.Season, c.Hour, c.Weather, c.Location)
}

// FilterEligible keeps the candidates eligible under the given conditions,
// preserving input order. It never returns nil.
func FilterEligible[C Candidate](candidates []C, season calendar.Season, hour int, weather calendar.Weather, location LocationRef) []C {
	out := make([]C, 0, len(candidates))
	for _, c := range candidates {
		if IsEligible(c.EligibilityProfile(), season, hour, weather, location) {
			out = append(out, c)
		}
	}
	return out
}

// ComputeValue prices a profile from the breadth of its windows:
//
//	(4·|seasons|) × Σhours × (2·|weathers|) × (4·|locations|) / divisor(tier)
//
// using integer division.
func ComputeValue(p Profile, tier RarityTier) (int, error) {
	divisor, err := tier.Divisor()
	if err != nil {
		return 0, err
	}

	product := 4 * len(p.Seasons) *
		p.TotalHours() *
		2 * len(p.Weathers) *
		4 * len(p.Locations)

	return product / divisor, nil
}
