// Package rules contains the pure calculation logic for farm mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/plot"
)

// GrowthParams holds what the night knew about one plot.
type GrowthParams struct {
	WasPreviousDayRainy bool
	NewSeason           calendar.Season
}

// ApplyOvernightGrowth advances a growing plot by one night.
// A plot grows if it was watered by hand or rained on during the day that
// ended. A crop still growing when its season ends withers. Watering is
// cleared either way. Returns true if the stage changed.
func ApplyOvernightGrowth(p *plot.Plot, crop item.CropDefinition, params GrowthParams) bool {
	if p.Stage != plot.StageGrowing {
		p.Watered = false
		return false
	}

	watered := p.Watered || params.WasPreviousDayRainy
	p.Watered = false

	if !crop.InSeason(params.NewSeason) {
		p.Stage = plot.StageWithered
		return true
	}
	if !watered {
		return false
	}

	p.DaysGrown++
	if p.DaysGrown >= crop.GrowthDays {
		p.Stage = plot.StageReady
		return true
	}
	return false
}

// ShippingValue is the gold paid for qty units of an item.
func ShippingValue(unitValue, qty int) int {
	if unitValue <= 0 || qty <= 0 {
		return 0
	}
	return unitValue * qty
}
