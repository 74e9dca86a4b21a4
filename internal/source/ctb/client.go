// Package ctb adapts the Citybus open data API. Citybus has no bulk stop
// endpoint; stop metadata is resolved one stop at a time on demand.
package ctb

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
)

// DefaultOperatorTag is the company code used in CTB request paths
const DefaultOperatorTag = "CTB"

// Client implements source.Adapter and source.StopResolver for CTB
type Client struct {
	getter  source.Getter
	baseURL string
	tag     string
}

func New(getter source.Getter, baseURL, tag string) *Client {
	if tag == "" {
		tag = DefaultOperatorTag
	}
	return &Client{getter: getter, baseURL: baseURL, tag: url.PathEscape(tag)}
}

func (c *Client) Operator() models.Operator {
	return models.OperatorCTB
}

// ListRoutes fetches the route list. CTB route records carry no direction,
// so each is expanded into an outbound record and a reversed inbound one.
func (c *Client) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var resp source.Envelope[[]routeRecord]
	if err := c.getter.GetJSON(ctx, fmt.Sprintf("%s/route/%s", c.baseURL, c.tag), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch CTB routes: %w", err)
	}

	routes := make([]models.Route, 0, 2*len(resp.Data))
	for _, r := range resp.Data {
		if r.Route == "" {
			continue
		}
		outbound := models.Route{
			Code:              r.Route,
			Operator:          models.OperatorCTB,
			ServiceVariant:    models.DefaultServiceVariant,
			Direction:         models.Outbound,
			OriginName:        r.OrigTC,
			DestinationName:   r.DestTC,
			OriginNameEN:      r.OrigEN,
			DestinationNameEN: r.DestEN,
		}
		inbound := outbound
		inbound.Direction = models.Inbound
		inbound.OriginName, inbound.DestinationName = r.DestTC, r.OrigTC
		inbound.OriginNameEN, inbound.DestinationNameEN = r.DestEN, r.OrigEN
		routes = append(routes, outbound, inbound)
	}

	log.Printf("CTB: fetched %d routes (%d directional)", len(resp.Data), len(routes))
	return routes, nil
}

// DirectionalStops fetches the route's stops and keeps those whose dir
// code matches dir
func (c *Client) DirectionalStops(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error) {
	u := fmt.Sprintf("%s/route-stop/%s/%s/%s", c.baseURL, c.tag, url.PathEscape(route.Code), pathSegment(dir))

	var resp source.Envelope[[]routeStopRecord]
	if err := c.getter.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch CTB stops for route %s: %w", route.Code, err)
	}

	links := make([]models.RouteStopLink, 0, len(resp.Data))
	for _, rs := range resp.Data {
		d, ok := decodeDirection(rs.Dir)
		if !ok || d != dir {
			continue
		}
		links = append(links, models.RouteStopLink{
			RouteCode:      route.Code,
			Operator:       models.OperatorCTB,
			ServiceVariant: models.DefaultServiceVariant,
			Direction:      dir,
			Sequence:       int(rs.Seq),
			StopID:         rs.Stop,
		})
	}

	if len(links) == 0 {
		log.Printf("CTB: warning: no %s stops for route %s", dir, route.Code)
	}
	return links, nil
}

// StopMetadata fetches a single stop. Returns nil when CTB has no record.
func (c *Client) StopMetadata(ctx context.Context, stopID string) (*models.Stop, error) {
	var resp source.Envelope[*stopRecord]
	if err := c.getter.GetJSON(ctx, fmt.Sprintf("%s/stop/%s", c.baseURL, url.PathEscape(stopID)), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch CTB stop %s: %w", stopID, err)
	}
	if resp.Data == nil || resp.Data.Stop == "" {
		return nil, nil
	}
	return &models.Stop{
		StopID:        resp.Data.Stop,
		Operator:      models.OperatorCTB,
		DisplayName:   resp.Data.NameTC,
		DisplayNameEN: resp.Data.NameEN,
		Latitude:      float64(resp.Data.Lat),
		Longitude:     float64(resp.Data.Long),
	}, nil
}

// ETAs fetches arrivals of route at stopID across both directions
func (c *Client) ETAs(ctx context.Context, stopID string, route models.Route) ([]models.EtaEntry, error) {
	u := fmt.Sprintf("%s/eta/%s/%s/%s", c.baseURL, c.tag, url.PathEscape(stopID), url.PathEscape(route.Code))

	var resp source.Envelope[[]etaRecord]
	if err := c.getter.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch CTB ETAs for %s at %s: %w", route.Code, stopID, err)
	}

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
		entries = append(entries, models.EtaEntry{
			StopID:         stopID,
			Operator:       models.OperatorCTB,
			RouteCode:      route.Code,
			ServiceVariant: models.DefaultServiceVariant,
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
