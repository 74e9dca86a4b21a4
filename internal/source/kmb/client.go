// Package kmb adapts the KMB open data API. KMB publishes its complete stop
// catalog, so stops are preloaded with the route catalog.
package kmb

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

// Client implements source.Adapter and source.StopLister for KMB
type Client struct {
	getter  source.Getter
	baseURL string
}

func New(getter source.Getter, baseURL string) *Client {
	return &Client{getter: getter, baseURL: baseURL}
}

func (c *Client) Operator() models.Operator {
	return models.OperatorKMB
}

// ListRoutes fetches every route, one record per bound and service type
func (c *Client) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var resp source.Envelope[[]routeRecord]
	if err := c.getter.GetJSON(ctx, c.baseURL+"/route", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch KMB routes: %w", err)
	}

	routes := make([]models.Route, 0, len(resp.Data))
	for _, r := range resp.Data {
		dir, ok := decodeDirection(r.Bound)
		if !ok {
			log.Printf("KMB: skipping route %s with unknown bound %q", r.Route, r.Bound)
			continue
		}
		variant := r.ServiceType
		if variant == "" {
			variant = models.DefaultServiceVariant
		}
		routes = append(routes, models.Route{
			Code:              r.Route,
			Operator:          models.OperatorKMB,
			ServiceVariant:    variant,
			Direction:         dir,
			OriginName:        r.OrigTC,
			DestinationName:   r.DestTC,
			OriginNameEN:      r.OrigEN,
			DestinationNameEN: r.DestEN,
		})
	}

	log.Printf("KMB: fetched %d routes", len(routes))
	return routes, nil
}

// ListStops fetches the full stop catalog
func (c *Client) ListStops(ctx context.Context) ([]models.Stop, error) {
	var resp source.Envelope[[]stopRecord]
	if err := c.getter.GetJSON(ctx, c.baseURL+"/stop", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch KMB stops: %w", err)
	}

	stops := make([]models.Stop, 0, len(resp.Data))
	for _, s := range resp.Data {
		if s.Stop == "" {
			continue
		}
		stops = append(stops, models.Stop{
			StopID:        s.Stop,
			Operator:      models.OperatorKMB,
			DisplayName:   s.NameTC,
			DisplayNameEN: s.NameEN,
			Latitude:      float64(s.Lat),
			Longitude:     float64(s.Long),
		})
	}

	log.Printf("KMB: fetched %d stops", len(stops))
	return stops, nil
}

// DirectionalStops fetches the stop sequence of one service variant in dir
func (c *Client) DirectionalStops(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error) {
	u := fmt.Sprintf("%s/route-stop/%s/%s/%s", c.baseURL,
		url.PathEscape(route.Code), pathSegment(dir), url.PathEscape(route.ServiceVariant))

	var resp source.Envelope[[]routeStopRecord]
	if err := c.getter.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch KMB stops for route %s: %w", route.Code, err)
	}

	links := make([]models.RouteStopLink, 0, len(resp.Data))
	for _, rs := range resp.Data {
		if d, ok := decodeDirection(rs.Bound); ok && d != dir {
			continue
		}
		links = append(links, models.RouteStopLink{
			RouteCode:      route.Code,
			Operator:       models.OperatorKMB,
			ServiceVariant: route.ServiceVariant,
			Direction:      dir,
			Sequence:       int(rs.Seq),
			StopID:         rs.Stop,
		})
	}

	if len(links) == 0 {
		log.Printf("KMB: warning: no %s stops for route %s (service type %s)", dir, route.Code, route.ServiceVariant)
	}
	return links, nil
}

// ETAs fetches arrivals of route at stopID. Entries without a timestamp
// (e.g. "last bus departed" notices) are dropped.
func (c *Client) ETAs(ctx context.Context, stopID string, route models.Route) ([]models.EtaEntry, error) {
	u := fmt.Sprintf("%s/eta/%s/%s/%s", c.baseURL,
		url.PathEscape(stopID), url.PathEscape(route.Code), url.PathEscape(route.ServiceVariant))

	var resp source.Envelope[[]etaRecord]
	if err := c.getter.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch KMB ETAs for %s at %s: %w", route.Code, stopID, err)
	}

	wantVariant, _ := strconv.Atoi(route.ServiceVariant)
	entries := make([]models.EtaEntry, 0, len(resp.Data))
	for _, e := range resp.Data {
		arrival, ok := source.ParseTime(e.ETA)
		if !ok {
			continue
		}
		dir, ok := decodeDirection(e.Dir)
		if !ok {
			continue
		}
		if wantVariant != 0 && e.ServiceType != 0 && int(e.ServiceType) != wantVariant {
			continue
		}
		entries = append(entries, models.EtaEntry{
			StopID:         stopID,
			Operator:       models.OperatorKMB,
			RouteCode:      route.Code,
			ServiceVariant: route.ServiceVariant,
			Direction:      dir,
			Sequence:       int(e.EtaSeq),
			Arrival:        arrival,
			Destination:    e.DestTC,
			DestinationEN:  e.DestEN,
			Remark:         e.RemarkTC,
		})
	}
	return entries, nil
}

func decodeDirection(code string) (models.Direction, bool) {
	switch code {
	case "O":
		return models.Outbound, true
	case "I":
		return models.Inbound, true
	}
	return 0, false
}

func pathSegment(d models.Direction) string {
	if d == models.Inbound {
		return "inbound"
	}
	return "outbound"
}
