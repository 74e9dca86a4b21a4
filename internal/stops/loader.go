// Package stops loads the ordered stop list of one direction of a route.
package stops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

// ErrNoStops is returned when an operator has no stops for a direction
var ErrNoStops = errors.New("no stops for this route direction")

const defaultConcurrency = 8

// Loader resolves directional stop sequences and fills in missing stop
// metadata for operators whose stops are fetched on demand.
type Loader struct {
	registry    *source.Registry
	catalog     *catalog.Catalog
	concurrency int
	group       singleflight.Group
}

func NewLoader(registry *source.Registry, cat *catalog.Catalog, concurrency int) *Loader {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Loader{registry: registry, catalog: cat, concurrency: concurrency}
}

// Load returns the stops of route in dir ordered by ascending sequence.
// Stop metadata that cannot be fetched is skipped; the links are still
// returned and simply lack a display name in the catalog.
func (l *Loader) Load(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error) {
	adapter, err := l.registry.Get(route.Operator)
	if err != nil {
		return nil, err
	}

	raw, err := adapter.DirectionalStops(ctx, route, dir)
	if err != nil {
		return nil, fmt.Errorf("load stops for %s %s: %w", route.Operator, route.Code, err)
	}

	links := make([]models.RouteStopLink, 0, len(raw))
	for _, link := range raw {
		if link.Direction == dir {
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s %s %s: %w", route.Operator, route.Code, dir, ErrNoStops)
	}
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Sequence < links[j].Sequence
	})

	if resolver, ok := adapter.(source.StopResolver); ok {
		ids := make([]string, len(links))
		for i, link := range links {
			ids[i] = link.StopID
		}
		l.fillMetadata(ctx, route.Operator, resolver, ids)
	}
	return links, nil
}

// fillMetadata fetches metadata for stops the catalog lacks, bounded by
// the loader's concurrency, and merges whatever was found.
func (l *Loader) fillMetadata(ctx context.Context, op models.Operator, resolver source.StopResolver, ids []string) {
	missing := l.catalog.MissingStops(op, ids)
	if len(missing) == 0 {
		return
	}

	found := make([]*models.Stop, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range missing {
		i, id := i, id
		g.Go(func() error {
			v, err, _ := l.group.Do(string(op)+"/"+id, func() (any, error) {
				return resolver.StopMetadata(gctx, id)
			})
			if err != nil {
				log.Printf("Stops: %s stop %s metadata unavailable: %v", op, id, err)
				return nil
			}
			found[i] = v.(*models.Stop)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]models.Stop, 0, len(found))
	for _, s := range found {
		if s == nil {
			continue
		}
		stop := *s
		stop.Operator = op
		merged = append(merged, stop)
	}
	added := l.catalog.MergeStops(merged...)
	if added < len(missing) {
		log.Printf("Stops: %s resolved %d/%d missing stops", op, added, len(missing))
	}
}
