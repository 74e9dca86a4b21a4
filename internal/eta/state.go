package eta

import (
	"context"
	"fmt"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

// Status of one stop's arrival list
type Status int

const (
	StatusCollapsed Status = iota
	StatusLoading
	StatusReady
	StatusNoArrivals
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusNoArrivals:
		return "no_arrivals"
	case StatusFailed:
		return "failed"
	}
	return "collapsed"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	messageFailed     = "Unable to load arrival times. Please try again."
	messageNoArrivals = "No upcoming arrivals."
)

// Key identifies one stop of one directional route
type Key struct {
	Operator       models.Operator  `json:"operator"`
	RouteCode      string           `json:"route"`
	ServiceVariant string           `json:"serviceVariant"`
	Direction      models.Direction `json:"direction"`
	StopID         string           `json:"stopId"`
}

// KeyFor builds the key of stopID on route
func KeyFor(route models.Route, stopID string) Key {
	return Key{
		Operator:       route.Operator,
		RouteCode:      route.Code,
		ServiceVariant: route.ServiceVariant,
		Direction:      route.Direction,
		StopID:         stopID,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", k.Operator, k.RouteCode, k.ServiceVariant, k.Direction, k.StopID)
}

// RouteKey returns the catalog key of the route this stop belongs to
func (k Key) RouteKey() models.RouteKey {
	return models.RouteKey{Code: k.RouteCode, Operator: k.Operator, ServiceVariant: k.ServiceVariant, Direction: k.Direction}
}

// Arrival is an EtaEntry with its countdown relative to the last tick
type Arrival struct {
	models.EtaEntry
	Minutes int `json:"minutes"`
}

// View is what a client renders for one stop
type View struct {
	Key       Key       `json:"key"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Arrivals  []Arrival `json:"arrivals"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Now       time.Time `json:"now"`
}

type cacheEntry struct {
	entries   []models.EtaEntry
	fetchedAt time.Time
}

type stopState struct {
	route     models.Route
	status    Status
	err       error
	updatedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}
