// Package sourcetest provides an in-memory operator adapter for tests.
package sourcetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

// Fake is a configurable source.Adapter. Nil funcs return empty results.
type Fake struct {
	Op models.Operator

	RoutesFunc func(ctx context.Context) ([]models.Route, error)
	StopsFunc  func(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error)
	ETAFunc    func(ctx context.Context, stopID string, route models.Route) ([]models.EtaEntry, error)

	RouteCalls atomic.Int32
	StopCalls  atomic.Int32
	ETACalls   atomic.Int32
}

var _ source.Adapter = (*Fake)(nil)

func (f *Fake) Operator() models.Operator { return f.Op }

func (f *Fake) ListRoutes(ctx context.Context) ([]models.Route, error) {
	f.RouteCalls.Add(1)
	if f.RoutesFunc == nil {
		return nil, nil
	}
	return f.RoutesFunc(ctx)
}

func (f *Fake) DirectionalStops(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error) {
	f.StopCalls.Add(1)
	if f.StopsFunc == nil {
		return nil, nil
	}
	return f.StopsFunc(ctx, route, dir)
}

func (f *Fake) ETAs(ctx context.Context, stopID string, route models.Route) ([]models.EtaEntry, error) {
	f.ETACalls.Add(1)
	if f.ETAFunc == nil {
		return nil, nil
	}
	return f.ETAFunc(ctx, stopID, route)
}

// Preloaded adds a full stop catalog to Fake
type Preloaded struct {
	*Fake
	StopList     []models.Stop
	StopListErr  error
	ListStopCall atomic.Int32
}

func (p *Preloaded) ListStops(ctx context.Context) ([]models.Stop, error) {
	p.ListStopCall.Add(1)
	return p.StopList, p.StopListErr
}

// OnDemand adds per-stop metadata lookups to Fake
type OnDemand struct {
	*Fake
	MetadataFunc func(ctx context.Context, stopID string) (*models.Stop, error)

	mu     sync.Mutex
	lookup map[string]int
}

func (o *OnDemand) StopMetadata(ctx context.Context, stopID string) (*models.Stop, error) {
	o.mu.Lock()
	if o.lookup == nil {
		o.lookup = make(map[string]int)
	}
	o.lookup[stopID]++
	o.mu.Unlock()
	if o.MetadataFunc == nil {
		return &models.Stop{StopID: stopID, Operator: o.Op, DisplayName: "Stop " + stopID}, nil
	}
	return o.MetadataFunc(ctx, stopID)
}

// Lookups returns how many times stopID metadata was requested
func (o *OnDemand) Lookups(stopID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lookup[stopID]
}

// TotalLookups returns the number of metadata requests made
func (o *OnDemand) TotalLookups() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.lookup {
		n += c
	}
	return n
}
