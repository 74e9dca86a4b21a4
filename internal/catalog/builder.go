package catalog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

// Builder loads every operator's routes (and preloadable stops) into a Catalog
type Builder struct {
	registry *source.Registry
	catalog  *Catalog
	now      func() time.Time
	mu       sync.Mutex
}

func NewBuilder(registry *source.Registry, catalog *Catalog) *Builder {
	return &Builder{registry: registry, catalog: catalog, now: time.Now}
}

type result struct {
	routes   []models.Route
	stops    []models.Stop
	routeErr error
	stopErr  error
}

// Build fetches all operators concurrently. A failing operator contributes
// nothing and is logged; only when every operator's routes fail is
// ErrUnavailable returned and the catalog left empty in the failed state.
// Concurrent calls are serialized.
func (b *Builder) Build(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.catalog.setLoading()
	start := b.now()

	adapters := b.registry.All()
	results := make([]result, len(adapters))

	var wg sync.WaitGroup
	for i, a := range adapters {
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			results[i].routes, results[i].routeErr = a.ListRoutes(ctx)
		}(i, a)

		lister, ok := a.(source.StopLister)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, lister source.StopLister) {
			defer wg.Done()
			results[i].stops, results[i].stopErr = lister.ListStops(ctx)
		}(i, lister)
	}
	wg.Wait()

	var (
		routes  []models.Route
		stops   []models.Stop
		sources = make([]SourceStatus, 0, len(adapters))
		loaded  int
	)
	for i, a := range adapters {
		res := results[i]
		status := SourceStatus{Operator: a.Operator(), LoadedAt: b.now()}

		if res.routeErr != nil {
			log.Printf("Catalog: %s routes failed: %v", a.Operator(), res.routeErr)
			status.Error = res.routeErr.Error()
		} else {
			loaded++
			for _, r := range res.routes {
				r.Operator = a.Operator()
				if r.ServiceVariant == "" {
					r.ServiceVariant = models.DefaultServiceVariant
				}
				routes = append(routes, r)
			}
			status.Routes = len(res.routes)
		}

		if res.stopErr != nil {
			log.Printf("Catalog: %s stops failed: %v", a.Operator(), res.stopErr)
			if status.Error == "" {
				status.Error = res.stopErr.Error()
			}
		} else {
			for _, s := range res.stops {
				s.Operator = a.Operator()
				stops = append(stops, s)
			}
			status.Stops = len(res.stops)
		}
		sources = append(sources, status)
	}

	if loaded == 0 {
		b.catalog.publish(nil, nil, sources, StateFailed, b.now())
		return fmt.Errorf("build catalog: %w", ErrUnavailable)
	}

	b.catalog.publish(routes, stops, sources, StateReady, b.now())
	nRoutes, nStops := b.catalog.Counts()
	log.Printf("Catalog: ready with %d routes and %d stops from %d/%d operators in %v",
		nRoutes, nStops, loaded, len(adapters), b.now().Sub(start).Round(time.Millisecond))
	return nil
}
