package eligibility

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
)

func summerOceanProfile(t *testing.T) Profile {
	t.Helper()
	p, err := NewProfile(nil,
		[]calendar.Season{calendar.SeasonSummer},
		[]calendar.TimeRange{calendar.MustTimeRange(6, 22)},
		[]calendar.Weather{calendar.WeatherSunny},
		[]LocationRef{LocationOcean},
	)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

func TestIsEligibleByLocation(t *testing.T) {
	p := summerOceanProfile(t)

	if !IsEligible(p, calendar.SeasonSummer, 10, calendar.WeatherSunny, LocationOcean) {
		t.Error("expected profile to be eligible at the ocean")
	}
	if IsEligible(p, calendar.SeasonSummer, 10, calendar.WeatherSunny, LocationPond) {
		t.Error("expected profile not to be eligible at the pond")
	}
}

func TestIsEligibleEachConstraint(t *testing.T) {
	p := summerOceanProfile(t)

	tests := []struct {
		name     string
		season   calendar.Season
		hour     int
		weather  calendar.Weather
		location LocationRef
		want     bool
	}{
		{"all match", calendar.SeasonSummer, 6, calendar.WeatherSunny, LocationOcean, true},
		{"wrong season", calendar.SeasonWinter, 10, calendar.WeatherSunny, LocationOcean, false},
		{"range end is exclusive", calendar.SeasonSummer, 22, calendar.WeatherSunny, LocationOcean, false},
		{"before range", calendar.SeasonSummer, 5, calendar.WeatherSunny, LocationOcean, false},
		{"wrong weather", calendar.SeasonSummer, 10, calendar.WeatherRainy, LocationOcean, false},
	}
	for _, tt := range tests {
		if got := IsEligible(p, tt.season, tt.hour, tt.weather, tt.location); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilterEligiblePreservesOrder(t *testing.T) {
	day := summerOceanProfile(t)
	night, err := NewProfile(nil,
		[]calendar.Season{calendar.SeasonSummer},
		[]calendar.TimeRange{calendar.MustTimeRange(20, 2)},
		[]calendar.Weather{calendar.WeatherSunny},
		[]LocationRef{LocationOcean},
	)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	fish := []Fish{
		{Name: "A", Profile: day},
		{Name: "B", Profile: night},
		{Name: "C", Profile: day},
	}

	got := FilterEligible(fish, calendar.SeasonSummer, 21, calendar.WeatherSunny, LocationOcean)
	if len(got) != 3 || got[0].Name != "A" || got[1].Name != "B" || got[2].Name != "C" {
		t.Fatalf("expected A,B,C at 21:00, got %+v", got)
	}

	got = FilterEligible(fish, calendar.SeasonSummer, 23, calendar.WeatherSunny, LocationOcean)
	if len(got) != 1 || got[0].Name != "B" {
		t.Fatalf("expected only B at 23:00, got %+v", got)
	}
}

func TestFilterEligibleEmptyInput(t *testing.T) {
	got := FilterEligible([]Fish{}, calendar.SeasonSpring, 0, calendar.WeatherSunny, LocationPond)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	got = FilterEligible[Fish](nil, calendar.SeasonSpring, 0, calendar.WeatherSunny, LocationPond)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice for nil input, got %#v", got)
	}
}

func TestComputeValueWorkedExample(t *testing.T) {
	p := Profile{
		Seasons:    []calendar.Season{calendar.SeasonSummer},
		TimeRanges: []calendar.TimeRange{calendar.MustTimeRange(6, 18)},
		Weathers:   []calendar.Weather{calendar.WeatherSunny},
		Locations:  []LocationRef{LocationOcean},
	}

	got, err := ComputeValue(p, RarityRegular)
	if err != nil {
		t.Fatalf("ComputeValue: %v", err)
	}
	if got != 76 {
		t.Errorf("expected 384/5 = 76, got %d", got)
	}
}

func TestComputeValueDivisors(t *testing.T) {
	p := Profile{
		Seasons:    []calendar.Season{calendar.SeasonSummer},
		TimeRanges: []calendar.TimeRange{calendar.MustTimeRange(6, 18)},
		Weathers:   []calendar.Weather{calendar.WeatherSunny},
		Locations:  []LocationRef{LocationOcean},
	}

	tests := map[RarityTier]int{
		RarityCommon:    38,
		RarityRegular:   76,
		RarityLegendary: 15,
	}
	for tier, want := range tests {
		got, err := ComputeValue(p, tier)
		if err != nil {
			t.Fatalf("%s: %v", tier, err)
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", tier, got, want)
		}
	}

	_, err := ComputeValue(p, "MYTHIC")
	var unknownErr *UnknownCandidateError
	if !errors.As(err, &unknownErr) || unknownErr.Kind != "rarity tier" {
		t.Errorf("expected UnknownCandidateError for rarity tier, got %v", err)
	}
}

func TestComputeValueGrowsWithWindowBreadth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := rapid.IntRange(0, 22).Draw(t, "from")
		to := rapid.IntRange(from+1, 23).Draw(t, "to")
		seasons := rapid.IntRange(1, 3).Draw(t, "seasons")

		narrow := Profile{
			Seasons:    calendar.Seasons[:seasons],
			TimeRanges: []calendar.TimeRange{calendar.MustTimeRange(from, to)},
			Weathers:   []calendar.Weather{calendar.WeatherSunny},
			Locations:  []LocationRef{LocationOcean},
		}
		wide := narrow
		wide.Seasons = calendar.Seasons[:seasons+1]
		wide.Weathers = calendar.Weathers

		narrowValue, err := ComputeValue(narrow, RarityRegular)
		if err != nil {
			t.Fatal(err)
		}
		wideValue, err := ComputeValue(wide, RarityRegular)
		if err != nil {
			t.Fatal(err)
		}
		if wideValue < narrowValue {
			t.Fatalf("wider profile priced lower: %d < %d", wideValue, narrowValue)
		}
	})
}

func TestNewProfileDeduplicatesAndCanonicalizes(t *testing.T) {
	p, err := NewProfile(nil,
		[]calendar.Season{calendar.SeasonSpring, calendar.SeasonSpring},
		[]calendar.TimeRange{calendar.MustTimeRange(6, 12)},
		[]calendar.Weather{calendar.WeatherRainy, calendar.WeatherRainy},
		[]LocationRef{"ocean", "OCEAN", LocationPond},
	)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if len(p.Seasons) != 1 || len(p.Weathers) != 1 {
		t.Errorf("expected deduplicated seasons/weathers, got %v %v", p.Seasons, p.Weathers)
	}
	if len(p.Locations) != 2 || p.Locations[0] != LocationOcean {
		t.Errorf("expected [Ocean Pond], got %v", p.Locations)
	}
}

func TestNewProfileRejectsUnknownValues(t *testing.T) {
	_, err := NewProfile(nil, []calendar.Season{"MONSOON"}, nil, nil, nil)
	var unknownErr *UnknownCandidateError
	if !errors.As(err, &unknownErr) || unknownErr.Kind != "season" {
		t.Errorf("expected unknown season error, got %v", err)
	}

	_, err = NewProfile(nil, nil, nil, []calendar.Weather{"SNOW"}, nil)
	if !errors.As(err, &unknownErr) || unknownErr.Kind != "weather" {
		t.Errorf("expected unknown weather error, got %v", err)
	}

	_, err = NewProfile(nil, nil, nil, nil, []LocationRef{"Ocaen"})
	if !errors.As(err, &unknownErr) || unknownErr.Kind != "location" {
		t.Fatalf("expected unknown location error, got %v", err)
	}
	if unknownErr.Suggestion != string(LocationOcean) {
		t.Errorf("expected suggestion Ocean, got %q", unknownErr.Suggestion)
	}

	_, err = NewProfile(nil, nil, []calendar.TimeRange{{From: 3, To: 30}}, nil, nil)
	var timeErr *calendar.InvalidTimeError
	if !errors.As(err, &timeErr) {
		t.Errorf("expected InvalidTimeError for bad range, got %v", err)
	}
}

func TestLocationSuggestionNeedsCloseMatch(t *testing.T) {
	reg := DefaultLocations()

	_, err := reg.Resolve("Volcano")
	var unknownErr *UnknownCandidateError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownCandidateError, got %v", err)
	}
	if unknownErr.Suggestion != "" {
		t.Errorf("expected no suggestion for Volcano, got %q", unknownErr.Suggestion)
	}

	reg.Register("Volcano")
	if loc, err := reg.Resolve("volcano"); err != nil || loc != "Volcano" {
		t.Errorf("expected Volcano after registering, got %q err=%v", loc, err)
	}
}
