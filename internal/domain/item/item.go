// Package item defines the farm's items, crops and cooking recipes.
// This package is PURE and must NOT import any infrastructure packages.
package item

import (
	"fmt"
	"sort"
	"strings"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
)

// ItemType represents the kind of item.
type ItemType string

const (
	ItemParsnipSeeds ItemType = "PARSNIP_SEEDS"
	ItemPotatoSeeds  ItemType = "POTATO_SEEDS"
	ItemMelonSeeds   ItemType = "MELON_SEEDS"
	ItemPumpkinSeeds ItemType = "PUMPKIN_SEEDS"
	ItemParsnip      ItemType = "PARSNIP"
	ItemPotato       ItemType = "POTATO"
	ItemMelon        ItemType = "MELON"
	ItemPumpkin      ItemType = "PUMPKIN"
	ItemEgg          ItemType = "EGG"
	ItemFriedEgg     ItemType = "FRIED_EGG"
	ItemBakedPotato  ItemType = "BAKED_POTATO"
	ItemParsnipSoup  ItemType = "PARSNIP_SOUP"
	ItemFishStew     ItemType = "FISH_STEW"
	ItemPumpkinPie   ItemType = "PUMPKIN_PIE"
)

const fishPrefix = "FISH_"

// FishItem is the inventory item for a caught fish.
func FishItem(name string) ItemType {
	return ItemType(fishPrefix + strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_")))
}

// IsFish reports whether t was produced by FishItem.
func (t ItemType) IsFish() bool {
	return strings.HasPrefix(string(t), fishPrefix)
}

// ItemStack represents a quantity of a specific item type.
type ItemStack struct {
	Type     ItemType `json:"type"`
	Quantity int      `json:"quantity"`
}

// ItemDefinition provides metadata about an item type.
type ItemDefinition struct {
	Name      string
	BaseValue int // gold paid by the shipping bin
	IsFood    bool
	Energy    int
}

// Registry contains all known non-fish items and their properties.
var Registry = map[ItemType]ItemDefinition{
	ItemParsnipSeeds: {Name: "Parsnip Seeds", BaseValue: 10},
	ItemPotatoSeeds:  {Name: "Potato Seeds", BaseValue: 25},
	ItemMelonSeeds:   {Name: "Melon Seeds", BaseValue: 40},
	ItemPumpkinSeeds: {Name: "Pumpkin Seeds", BaseValue: 50},
	ItemParsnip:      {Name: "Parsnip", BaseValue: 35, IsFood: true, Energy: 10},
	ItemPotato:       {Name: "Potato", BaseValue: 80, IsFood: true, Energy: 10},
	ItemMelon:        {Name: "Melon", BaseValue: 250, IsFood: true, Energy: 45},
	ItemPumpkin:      {Name: "Pumpkin", BaseValue: 320},
	ItemEgg:          {Name: "Egg", BaseValue: 50, IsFood: true, Energy: 13},
	ItemFriedEgg:     {Name: "Fried Egg", BaseValue: 35, IsFood: true, Energy: 35},
	ItemBakedPotato:  {Name: "Baked Potato", BaseValue: 120, IsFood: true, Energy: 40},
	ItemParsnipSoup:  {Name: "Parsnip Soup", BaseValue: 140, IsFood: true, Energy: 50},
	ItemFishStew:     {Name: "Fish Stew", BaseValue: 175, IsFood: true, Energy: 60},
	ItemPumpkinPie:   {Name: "Pumpkin Pie", BaseValue: 385, IsFood: true, Energy: 90},
}

// Lookup finds the definition for a non-fish item.
func Lookup(t ItemType) (ItemDefinition, bool) {
	def, ok := Registry[t]
	return def, ok
}

// ParseItemType accepts registry keys case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := Registry[t]; ok || t.IsFish() {
		return t, nil
	}
	return "", fmt.Errorf("unknown item: %q", s)
}

// CropDefinition describes what a seed grows into.
type CropDefinition struct {
	Seed       ItemType
	Produce    ItemType
	GrowthDays int
	Seasons    []calendar.Season
}

// InSeason reports whether the crop can grow in s.
func (c CropDefinition) InSeason(s calendar.Season) bool {
	for _, season := range c.Seasons {
		if season == s {
			return true
		}
	}
	return false
}

// Crops is keyed by seed.
var Crops = map[ItemType]CropDefinition{
	ItemParsnipSeeds: {Seed: ItemParsnipSeeds, Produce: ItemParsnip, GrowthDays: 4, Seasons: []calendar.Season{calendar.SeasonSpring}},
	ItemPotatoSeeds:  {Seed: ItemPotatoSeeds, Produce: ItemPotato, GrowthDays: 6, Seasons: []calendar.Season{calendar.SeasonSpring}},
	ItemMelonSeeds:   {Seed: ItemMelonSeeds, Produce: ItemMelon, GrowthDays: 8, Seasons: []calendar.Season{calendar.SeasonSummer}},
	ItemPumpkinSeeds: {Seed: ItemPumpkinSeeds, Produce: ItemPumpkin, GrowthDays: 9, Seasons: []calendar.Season{calendar.SeasonFall}},
}

// Recipe is a dish cooked from ingredients over CookMinutes game minutes.
// A zero CookMinutes means the server's default cooking time.
type Recipe struct {
	Dish        ItemType    `json:"dish"`
	Ingredients []ItemStack `json:"ingredients"`
	CookMinutes int         `json:"cook_minutes"`
}

// Recipes is keyed by dish.
var Recipes = map[ItemType]Recipe{
	ItemFriedEgg:    {Dish: ItemFriedEgg, Ingredients: []ItemStack{{ItemEgg, 1}}, CookMinutes: 30},
	ItemBakedPotato: {Dish: ItemBakedPotato, Ingredients: []ItemStack{{ItemPotato, 1}}},
	ItemParsnipSoup: {Dish: ItemParsnipSoup, Ingredients: []ItemStack{{ItemParsnip, 2}}},
	ItemFishStew:    {Dish: ItemFishStew, Ingredients: []ItemStack{{FishItem("Carp"), 1}, {ItemPotato, 1}}, CookMinutes: 90},
	ItemPumpkinPie:  {Dish: ItemPumpkinPie, Ingredients: []ItemStack{{ItemPumpkin, 1}, {ItemEgg, 1}}, CookMinutes: 120},
}

// RecipeNames lists the dishes in a stable order.
func RecipeNames() []string {
	names := make([]string, 0, len(Recipes))
	for dish := range Recipes {
		names = append(names, string(dish))
	}
	sort.Strings(names)
	return names
}
