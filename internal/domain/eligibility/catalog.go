package eligibility

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
)

// DefaultCacheSize bounds the number of distinct condition sets remembered.
const DefaultCacheSize = 256

// Fish is a catchable candidate.
type Fish struct {
	Name    string     `json:"name"`
	Rarity  RarityTier `json:"rarity"`
	Profile Profile    `json:"profile"`
	Value   int        `json:"value"`
}

func (f Fish) EligibilityProfile() Profile {
	return f.Profile
}

// Catalog indexes fish by name and caches eligibility lookups.
// The fishing spot is polled repeatedly with the same hour/season/weather, so
// results are memoized per Conditions until the catalog changes.
type Catalog struct {
	mu     sync.RWMutex
	fish   []Fish
	byName map[string]int
	cache  *lru.Cache[Conditions, []Fish]
}

// NewCatalog builds a catalog; each fish's Value is computed from its profile.
func NewCatalog(cacheSize int, fish ...Fish) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[Conditions, []Fish](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create eligibility cache: %w", err)
	}

	c := &Catalog{
		byName: make(map[string]int),
		cache:  cache,
	}
	for _, f := range fish {
		if err := c.Add(f); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a fish. Names are unique, case-insensitively.
func (c *Catalog) Add(f Fish) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("fish name must not be empty")
	}
	value, err := ComputeValue(f.Profile, f.Rarity)
	if err != nil {
		return fmt.Errorf("failed to price %s: %w", f.Name, err)
	}
	f.Value = value

	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(f.Name)
	if _, exists := c.byName[k]; exists {
		return fmt.Errorf("duplicate fish: %s", f.Name)
	}
	c.byName[k] = len(c.fish)
	c.fish = append(c.fish, f)
	c.cache.Purge()
	return nil
}

// Eligible returns the fish obtainable under cond, in catalog order.
func (c *Catalog) Eligible(cond Conditions) []Fish {
	if cached, ok := c.cache.Get(cond); ok {
		return append([]Fish(nil), cached...)
	}

	// The cache is filled under the read lock so Add's purge cannot be
	// overtaken by a stale result.
	c.mu.RLock()
	matched := FilterEligible(c.fish, cond.Season, cond.Hour, cond.Weather, cond.Location)
	c.cache.Add(cond, matched)
	c.mu.RUnlock()

	return append([]Fish(nil), matched...)
}

// Lookup finds a fish by name.
func (c *Catalog) Lookup(name string) (Fish, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.byName[key(name)]; ok {
		return c.fish[i], nil
	}
	return Fish{}, unknown("fish", name, c.namesLocked())
}

// Value returns the precomputed value of the named fish.
func (c *Catalog) Value(name string) (int, error) {
	f, err := c.Lookup(name)
	if err != nil {
		return 0, err
	}
	return f.Value, nil
}

// All returns every fish in catalog order.
func (c *Catalog) All() []Fish {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Fish(nil), c.fish...)
}

// CachedConditions reports how many condition sets are memoized.
func (c *Catalog) CachedConditions() int {
	return c.cache.Len()
}

func (c *Catalog) namesLocked() []string {
	names := make([]string, 0, len(c.fish))
	for _, f := range c.fish {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// DefaultCatalog is the starter fish table used by the server.
func DefaultCatalog(registry *LocationRegistry, cacheSize int) (*Catalog, error) {
	type entry struct {
		name      string
		rarity    RarityTier
		seasons   []calendar.Season
		ranges    []calendar.TimeRange
		weathers  []calendar.Weather
		locations []LocationRef
	}

	all := calendar.Seasons
	anyWeather := calendar.Weathers
	entries := []entry{
		{"Sardine", RarityCommon, all, []calendar.TimeRange{calendar.MustTimeRange(6, 18)}, anyWeather, []LocationRef{LocationOcean}},
		{"Carp", RarityCommon, all, []calendar.TimeRange{calendar.MustTimeRange(0, 23)}, anyWeather, []LocationRef{LocationPond, LocationLake}},
		{"Sunfish", RarityRegular, []calendar.Season{calendar.SeasonSpring, calendar.SeasonSummer}, []calendar.TimeRange{calendar.MustTimeRange(6, 19)}, []calendar.Weather{calendar.WeatherSunny}, []LocationRef{LocationRiver}},
		{"Catfish", RarityRegular, []calendar.Season{calendar.SeasonSpring, calendar.SeasonFall}, []calendar.TimeRange{calendar.MustTimeRange(6, 22)}, []calendar.Weather{calendar.WeatherRainy}, []LocationRef{LocationRiver}},
		{"Tuna", RarityRegular, []calendar.Season{calendar.SeasonSummer, calendar.SeasonWinter}, []calendar.TimeRange{calendar.MustTimeRange(6, 22)}, anyWeather, []LocationRef{LocationOcean}},
		{"Eel", RarityRegular, []calendar.Season{calendar.SeasonSpring, calendar.SeasonFall}, []calendar.TimeRange{calendar.MustTimeRange(20, 2)}, []calendar.Weather{calendar.WeatherRainy}, []LocationRef{LocationOcean}},
		{"Midnight Squid", RarityRegular, []calendar.Season{calendar.SeasonWinter}, []calendar.TimeRange{calendar.MustTimeRange(18, 2)}, anyWeather, []LocationRef{LocationOcean}},
		{"Legend", RarityLegendary, []calendar.Season{calendar.SeasonSpring}, []calendar.TimeRange{calendar.MustTimeRange(8, 20)}, []calendar.Weather{calendar.WeatherRainy}, []LocationRef{LocationLake}},
		{"Angler", RarityLegendary, []calendar.Season{calendar.SeasonFall}, []calendar.TimeRange{calendar.MustTimeRange(8, 20)}, anyWeather, []LocationRef{LocationRiver}},
	}

	fish := make([]Fish, 0, len(entries))
	for _, e := range entries {
		p, err := NewProfile(registry, e.seasons, e.ranges, e.weathers, e.locations)
		if err != nil {
			return nil, fmt.Errorf("invalid profile for %s: %w", e.name, err)
		}
		fish = append(fish, Fish{Name: e.name, Rarity: e.rarity, Profile: p})
	}
	return NewCatalog(cacheSize, fish...)
}
