package calendar

import (
	"testing"

	"pgregory.net/rapid"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestNewCalendarStartsOnSpringDayOne(t *testing.T) {
	c := NewCalendar(fixedSource(0.99))

	if c.TotalDay() != 1 || c.DayInCycle() != 1 {
		t.Fatalf("expected day 1/1, got total=%d cycle=%d", c.TotalDay(), c.DayInCycle())
	}
	if c.Season() != SeasonSpring {
		t.Errorf("expected SPRING, got %s", c.Season())
	}
	if c.Weather() != WeatherSunny {
		t.Errorf("expected SUNNY with a high draw, got %s", c.Weather())
	}
}

func TestDryCycleForcesRainOnDaysNineAndTen(t *testing.T) {
	c := NewCalendar(fixedSource(0.99))

	for c.DayInCycle() < 8 {
		c.AdvanceDay()
		if c.IsRainy() {
			t.Fatalf("unexpected rain on day %d", c.DayInCycle())
		}
	}

	c.AdvanceDay()
	if c.DayInCycle() != 9 || !c.IsRainy() {
		t.Fatalf("expected forced rain on day 9, got day=%d weather=%s", c.DayInCycle(), c.Weather())
	}
	c.AdvanceDay()
	if c.DayInCycle() != 10 || !c.IsRainy() {
		t.Fatalf("expected forced rain on day 10, got day=%d weather=%s", c.DayInCycle(), c.Weather())
	}
	if c.RainyDaysThisSeason() != 2 {
		t.Errorf("expected 2 rainy days, got %d", c.RainyDaysThisSeason())
	}
}

func TestDayTenNotForcedWhenTwoRainyDaysAlready(t *testing.T) {
	c := NewCalendar(fixedSource(0.99))
	if err := c.Restore(State{TotalDay: 9, DayInCycle: 9, Season: SeasonSpring, Weather: WeatherRainy, RainyDaysThisSeason: 2}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	c.AdvanceDay()
	if c.IsRainy() {
		t.Errorf("expected SUNNY on day 10 after 2 rainy days, got %s", c.Weather())
	}
}

func TestSeasonRollsOverAfterTenDays(t *testing.T) {
	c := NewCalendar(fixedSource(0.0))

	expected := []Season{SeasonSummer, SeasonFall, SeasonWinter, SeasonSpring}
	for _, want := range expected {
		for i := 0; i < DaysPerCycle; i++ {
			c.AdvanceDay()
		}
		if c.Season() != want {
			t.Fatalf("expected %s, got %s on total day %d", want, c.Season(), c.TotalDay())
		}
		if c.DayInCycle() != 1 {
			t.Errorf("expected day in cycle reset to 1, got %d", c.DayInCycle())
		}
		if c.RainyDaysThisSeason() != 1 {
			t.Errorf("expected rainy counter reset then incremented for rainy day 1, got %d", c.RainyDaysThisSeason())
		}
	}

	if c.TotalDay() != 41 {
		t.Errorf("expected total day 41, got %d", c.TotalDay())
	}
}

func TestSeededCalendarIsDeterministic(t *testing.T) {
	a := NewSeededCalendar(4242)
	b := NewSeededCalendar(4242)

	for i := 0; i < 100; i++ {
		if a.Weather() != b.Weather() {
			t.Fatalf("weather diverged on day %d: %s != %s", a.TotalDay(), a.Weather(), b.Weather())
		}
		a.AdvanceDay()
		b.AdvanceDay()
	}
}

func TestMinimumRainfallPerCycle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		cycles := rapid.IntRange(1, 12).Draw(t, "cycles")

		c := NewSeededCalendar(seed)
		for day := 0; day < cycles*DaysPerCycle; day++ {
			if c.DayInCycle() == DaysPerCycle && c.RainyDaysThisSeason() < MinRainyDaysPerCycle {
				t.Fatalf("seed %d: only %d rainy days in %s ending on day %d",
					seed, c.RainyDaysThisSeason(), c.Season(), c.TotalDay())
			}
			c.AdvanceDay()
		}
	})
}

func TestRestoreRejectsInconsistentState(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"zero total day", State{TotalDay: 0, DayInCycle: 1, Season: SeasonSpring, Weather: WeatherSunny}},
		{"day in cycle too large", State{TotalDay: 11, DayInCycle: 11, Season: SeasonSpring, Weather: WeatherSunny}},
		{"unknown season", State{TotalDay: 1, DayInCycle: 1, Season: "MONSOON", Weather: WeatherSunny}},
		{"unknown weather", State{TotalDay: 1, DayInCycle: 1, Season: SeasonSpring, Weather: "SNOW"}},
		{"too many rainy days", State{TotalDay: 2, DayInCycle: 2, Season: SeasonSpring, Weather: WeatherRainy, RainyDaysThisSeason: 3}},
	}

	for _, tt := range tests {
		c := NewCalendar(fixedSource(0.5))
		before := c.State()
		if err := c.Restore(tt.state); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
		if c.State() != before {
			t.Errorf("%s: state changed on failed restore", tt.name)
		}
	}
}

func TestParseSeasonAndWeather(t *testing.T) {
	if s, err := ParseSeason(" autumn "); err != nil || s != SeasonFall {
		t.Errorf("expected FALL, got %q err=%v", s, err)
	}
	if s, err := ParseSeason("summer"); err != nil || s != SeasonSummer {
		t.Errorf("expected SUMMER, got %q err=%v", s, err)
	}
	if _, err := ParseSeason("monsoon"); err == nil {
		t.Error("expected error for unknown season")
	}
	if w, err := ParseWeather("rainy"); err != nil || w != WeatherRainy {
		t.Errorf("expected RAINY, got %q err=%v", w, err)
	}
	if _, err := ParseWeather("snow"); err == nil {
		t.Error("expected error for unknown weather")
	}
}
