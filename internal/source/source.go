// Package source defines the capabilities each bus operator adapter provides.
package source

import (
	"context"
	"fmt"

	"github.com/pannnnl/hkbus-eta/internal/models"
)

// Getter is the transport an adapter fetches JSON through
type Getter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Adapter is implemented by every operator
type Adapter interface {
	Operator() models.Operator
	// ListRoutes returns every directional route the operator runs
	ListRoutes(ctx context.Context) ([]models.Route, error)
	// DirectionalStops returns the stop sequence of route travelling in dir
	DirectionalStops(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error)
	// ETAs returns upcoming arrivals of route at a stop. Entries carry their
	// decoded direction; callers filter to the direction they display.
	ETAs(ctx context.Context, stopID string, route models.Route) ([]models.EtaEntry, error)
}

// StopLister is implemented by operators whose full stop catalog is preloaded
type StopLister interface {
	ListStops(ctx context.Context) ([]models.Stop, error)
}

// StopResolver is implemented by operators whose stops are fetched one by one.
// A nil Stop with nil error means the operator has no record of stopID.
type StopResolver interface {
	StopMetadata(ctx context.Context, stopID string) (*models.Stop, error)
}

// Registry dispatches by operator
type Registry struct {
	order    []models.Operator
	adapters map[models.Operator]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Operator]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Operator()]; !dup {
			r.order = append(r.order, a.Operator())
		}
		r.adapters[a.Operator()] = a
	}
	return r
}

// Get returns the adapter for op
func (r *Registry) Get(op models.Operator) (Adapter, error) {
	a, ok := r.adapters[op]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for operator %q", op)
	}
	return a, nil
}

// All returns the adapters in registration order
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, op := range r.order {
		out = append(out, r.adapters[op])
	}
	return out
}
