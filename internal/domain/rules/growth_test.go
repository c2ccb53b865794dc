package rules

import (
	"testing"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/plot"
)

func sown(seed item.ItemType, days int, watered bool) *plot.Plot {
	p := plot.NewPlot("plot-1")
	p.Sow(seed)
	p.DaysGrown = days
	p.Watered = watered
	return p
}

func TestApplyOvernightGrowth(t *testing.T) {
	parsnip := item.Crops[item.ItemParsnipSeeds]
	spring := calendar.SeasonSpring

	tests := []struct {
		name      string
		plot      *plot.Plot
		params    GrowthParams
		changed   bool
		wantStage plot.Stage
		wantDays  int
	}{
		{"dry plot does not grow", sown(item.ItemParsnipSeeds, 1, false), GrowthParams{NewSeason: spring}, false, plot.StageGrowing, 1},
		{"watered plot grows", sown(item.ItemParsnipSeeds, 1, true), GrowthParams{NewSeason: spring}, false, plot.StageGrowing, 2},
		{"rain waters the plot", sown(item.ItemParsnipSeeds, 1, false), GrowthParams{WasPreviousDayRainy: true, NewSeason: spring}, false, plot.StageGrowing, 2},
		{"last day ripens", sown(item.ItemParsnipSeeds, 3, true), GrowthParams{NewSeason: spring}, true, plot.StageReady, 4},
		{"season change withers", sown(item.ItemParsnipSeeds, 3, true), GrowthParams{NewSeason: calendar.SeasonSummer}, true, plot.StageWithered, 3},
		{"empty plot is untouched", plot.NewPlot("plot-2"), GrowthParams{WasPreviousDayRainy: true, NewSeason: spring}, false, plot.StageEmpty, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := ApplyOvernightGrowth(tt.plot, parsnip, tt.params)
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if tt.plot.Stage != tt.wantStage || tt.plot.DaysGrown != tt.wantDays {
				t.Errorf("got %s after %d days, want %s after %d", tt.plot.Stage, tt.plot.DaysGrown, tt.wantStage, tt.wantDays)
			}
			if tt.plot.Watered {
				t.Error("watering must be cleared overnight")
			}
		})
	}
}

func TestShippingValue(t *testing.T) {
	if got := ShippingValue(35, 3); got != 105 {
		t.Errorf("expected 105, got %d", got)
	}
	if got := ShippingValue(35, 0); got != 0 {
		t.Errorf("expected 0 for no items, got %d", got)
	}
	if got := ShippingValue(-1, 4); got != 0 {
		t.Errorf("expected 0 for an unpriced item, got %d", got)
	}
}
