// Package plot defines the domain entity for a tilled farm plot.
// This package is PURE and must NOT import any infrastructure packages.
package plot

import "github.com/greenvale/farmsim/server/internal/domain/item"

// Stage is the growth stage of a plot.
type Stage string

const (
	StageEmpty    Stage = "EMPTY"
	StageGrowing  Stage = "GROWING"
	StageReady    Stage = "READY"
	StageWithered Stage = "WITHERED"
)

// Plot represents one tile of farmland holding at most one crop.
type Plot struct {
	ID        string        `json:"id"`
	Seed      item.ItemType `json:"seed,omitempty"`
	DaysGrown int           `json:"days_grown"`
	Watered   bool          `json:"watered"`
	Stage     Stage         `json:"stage"`
}

// NewPlot creates an empty plot.
func NewPlot(id string) *Plot {
	return &Plot{
		ID:    id,
		Stage: StageEmpty,
	}
}

// Sow puts a seed in the plot. Returns false if something is already growing.
func (p *Plot) Sow(seed item.ItemType) bool {
	if p.Stage != StageEmpty && p.Stage != StageWithered {
		return false
	}
	p.Seed = seed
	p.DaysGrown = 0
	p.Watered = false
	p.Stage = StageGrowing
	return true
}

// Clear empties the plot after a harvest.
func (p *Plot) Clear() {
	p.Seed = ""
	p.DaysGrown = 0
	p.Watered = false
	p.Stage = StageEmpty
}
