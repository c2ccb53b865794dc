package eligibility

import (
	"sort"
	"strings"
	"sync"
)

// LocationRef names a place where a candidate can be obtained.
type LocationRef string

const (
	LocationOcean LocationRef = "Ocean"
	LocationRiver LocationRef = "River"
	LocationLake  LocationRef = "Lake"
	LocationPond  LocationRef = "Pond"
)

// LocationRegistry is the set of locations profiles may reference.
type LocationRegistry struct {
	mu    sync.RWMutex
	byKey map[string]LocationRef
}

// NewLocationRegistry registers the given locations.
func NewLocationRegistry(locations ...LocationRef) *LocationRegistry {
	r := &LocationRegistry{byKey: make(map[string]LocationRef)}
	for _, loc := range locations {
		r.Register(loc)
	}
	return r
}

// DefaultLocations returns a registry holding the built-in fishing spots.
func DefaultLocations() *LocationRegistry {
	return NewLocationRegistry(LocationOcean, LocationRiver, LocationLake, LocationPond)
}

// Register adds a location. Names are matched case-insensitively.
func (r *LocationRegistry) Register(loc LocationRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key(string(loc))] = loc
}

// Resolve returns the canonical reference for name.
func (r *LocationRegistry) Resolve(name string) (LocationRef, error) {
	r.mu.RLock()
	loc, ok := r.byKey[key(name)]
	r.mu.RUnlock()
	if ok {
		return loc, nil
	}
	return "", unknown("location", name, r.names())
}

// Contains reports whether loc is registered.
func (r *LocationRegistry) Contains(loc LocationRef) bool {
	_, err := r.Resolve(string(loc))
	return err == nil
}

// All lists the registered locations in name order.
func (r *LocationRegistry) All() []LocationRef {
	names := r.names()
	out := make([]LocationRef, len(names))
	for i, n := range names {
		out[i] = LocationRef(n)
	}
	return out
}

func (r *LocationRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKey))
	for _, loc := range r.byKey {
		names = append(names, string(loc))
	}
	sort.Strings(names)
	return names
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
