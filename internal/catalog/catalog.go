// Package catalog holds the merged route and stop catalog of all operators.
package catalog

import (
	"errors"
	"sync"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

var (
	// ErrLoading is returned while a build is in progress
	ErrLoading = errors.New("catalog is still loading")
	// ErrUnavailable is returned when no operator could be loaded
	ErrUnavailable = errors.New("no operator data could be loaded")
	// ErrRouteNotFound is returned when a route key is not in the catalog
	ErrRouteNotFound = errors.New("route not found")
)

// State of the catalog
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "loading"
}

// SourceStatus records the outcome of loading one operator
type SourceStatus struct {
	Operator models.Operator `json:"operator"`
	Routes   int             `json:"routes"`
	Stops    int             `json:"stops"`
	Error    string          `json:"error,omitempty"`
	LoadedAt time.Time       `json:"loadedAt"`
}

// Catalog is safe for concurrent use. Routes are replaced wholesale by a
// build; stops only ever grow.
type Catalog struct {
	mu      sync.RWMutex
	state   State
	routes  []models.Route
	byKey   map[models.RouteKey]int
	stops   map[models.StopKey]models.Stop
	sources []SourceStatus
	builtAt time.Time
}

// New returns an empty catalog in the loading state
func New() *Catalog {
	return &Catalog{
		state: StateLoading,
		byKey: make(map[models.RouteKey]int),
		stops: make(map[models.StopKey]models.Stop),
	}
}

func (c *Catalog) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Catalog) setLoading() {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()
}

// publish installs the result of a build
func (c *Catalog) publish(routes []models.Route, stops []models.Stop, sources []SourceStatus, state State, at time.Time) {
	byKey := make(map[models.RouteKey]int, len(routes))
	deduped := make([]models.Route, 0, len(routes))
	for _, r := range routes {
		if _, dup := byKey[r.Key()]; dup {
			continue
		}
		byKey[r.Key()] = len(deduped)
		deduped = append(deduped, r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = deduped
	c.byKey = byKey
	if state == StateFailed {
		c.stops = make(map[models.StopKey]models.Stop)
	}
	for _, s := range stops {
		if _, exists := c.stops[s.Key()]; !exists {
			c.stops[s.Key()] = s
		}
	}
	c.sources = sources
	c.state = state
	c.builtAt = at
}

// Snapshot is a read-only copy of the catalog
type Snapshot struct {
	State   State
	Routes  []models.Route
	Stops   map[models.StopKey]models.Stop
	Sources []SourceStatus
	BuiltAt time.Time
}

// Snapshot copies the current contents
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stops := make(map[models.StopKey]models.Stop, len(c.stops))
	for k, v := range c.stops {
		stops[k] = v
	}
	return Snapshot{
		State:   c.state,
		Routes:  append([]models.Route(nil), c.routes...),
		Stops:   stops,
		Sources: append([]SourceStatus(nil), c.sources...),
		BuiltAt: c.builtAt,
	}
}

// Counts returns the number of routes and stops
func (c *Catalog) Counts() (routes, stops int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes), len(c.stops)
}

// Route looks up a route by key
func (c *Catalog) Route(key models.RouteKey) (models.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == StateLoading {
		return models.Route{}, ErrLoading
	}
	i, ok := c.byKey[key]
	if !ok {
		return models.Route{}, ErrRouteNotFound
	}
	return c.routes[i], nil
}

// Stop looks up stop metadata
func (c *Catalog) Stop(key models.StopKey) (models.Stop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stops[key]
	return s, ok
}

// MissingStops returns the IDs among ids with no metadata for op, without duplicates
func (c *Catalog) MissingStops(op models.Operator, ids []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var missing []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.stops[models.StopKey{StopID: id, Operator: op}]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// MergeStops adds stops not already present and returns how many were added.
// Existing entries are never overwritten, so merging is idempotent.
func (c *Catalog) MergeStops(stops ...models.Stop) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, s := range stops {
		if s.StopID == "" {
			continue
		}
		if _, exists := c.stops[s.Key()]; exists {
			continue
		}
		c.stops[s.Key()] = s
		added++
	}
	return added
}
