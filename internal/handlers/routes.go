package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/stops"
)

// CatalogBuilder rebuilds the route catalog
type CatalogBuilder interface {
	Build(ctx context.Context) error
}

// StopLoader loads the stops of a route direction
type StopLoader interface {
	Load(ctx context.Context, route models.Route, dir models.Direction) ([]models.RouteStopLink, error)
}

// RouteHandler serves route search and stop lists
type RouteHandler struct {
	catalog *catalog.Catalog
	builder CatalogBuilder
	loader  StopLoader
}

func NewRouteHandler(cat *catalog.Catalog, builder CatalogBuilder, loader StopLoader) *RouteHandler {
	return &RouteHandler{catalog: cat, builder: builder, loader: loader}
}

// SearchRoutesResponse is the JSON response for GET /api/routes
type SearchRoutesResponse struct {
	Query   string         `json:"query"`
	Regular []models.Route `json:"regular"`
	Special []models.Route `json:"special"`
	Count   int            `json:"count"`
}

// SearchRoutes handles GET /api/routes?q=
// Matches are grouped into regular and special service variants.
func (h *RouteHandler) SearchRoutes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	routes, err := h.catalog.Resolve(query)
	switch {
	case errors.Is(err, catalog.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Please enter a valid route number.", map[string]interface{}{"query": query})
		return
	case errors.Is(err, catalog.ErrLoading):
		w.Header().Set("Retry-After", "2")
		writeError(w, http.StatusServiceUnavailable, "Route data is still loading. Please try again shortly.", nil)
		return
	case errors.Is(err, catalog.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Route data could not be loaded.", map[string]interface{}{"retry": "POST /api/catalog/reload"})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to search routes", nil)
		return
	}

	normalized, _ := catalog.NormalizeQuery(query)
	if len(routes) == 0 {
		writeError(w, http.StatusNotFound, "Route "+normalized+" not found.", map[string]interface{}{"query": normalized})
		return
	}

	resp := SearchRoutesResponse{Query: normalized, Regular: []models.Route{}, Special: []models.Route{}, Count: len(routes)}
	for _, route := range routes {
		if route.Special() {
			resp.Special = append(resp.Special, route)
		} else {
			resp.Regular = append(resp.Regular, route)
		}
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, resp)
}

// ReloadCatalog handles POST /api/catalog/reload
func (h *RouteHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := h.builder.Build(ctx); err != nil {
		log.Printf("Catalog reload failed: %v", err)
		writeError(w, http.StatusBadGateway, "Route data could not be loaded.", map[string]interface{}{"reason": err.Error()})
		return
	}

	nRoutes, nStops := h.catalog.Counts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.catalog.State().String(),
		"routes": nRoutes,
		"stops":  nStops,
	})
}

// StopView is a route stop joined with its metadata
type StopView struct {
	models.RouteStopLink
	Name      string  `json:"name"`
	NameEN    string  `json:"nameEn,omitempty"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
}

// GetStopsResponse is the JSON response for the stop list endpoint
type GetStopsResponse struct {
	Route models.Route `json:"route"`
	Stops []StopView   `json:"stops"`
	Count int          `json:"count"`
}

// GetStops handles GET /api/routes/{operator}/{route}/{variant}/{direction}/stops
func (h *RouteHandler) GetStops(w http.ResponseWriter, r *http.Request) {
	key, err := routeKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid route selection", map[string]interface{}{"reason": err.Error()})
		return
	}

	route, err := h.catalog.Route(key)
	if err != nil {
		if errors.Is(err, catalog.ErrLoading) {
			writeError(w, http.StatusServiceUnavailable, "Route data is still loading. Please try again shortly.", nil)
			return
		}
		writeError(w, http.StatusNotFound, "Route not found", map[string]interface{}{"route": key.String()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	links, err := h.loader.Load(ctx, route, route.Direction)
	if err != nil {
		if errors.Is(err, stops.ErrNoStops) {
			writeError(w, http.StatusNotFound, "No stops found for this route direction.", map[string]interface{}{"route": key.String()})
			return
		}
		writeError(w, http.StatusBadGateway, "Failed to load stops. Please try again.", map[string]interface{}{"reason": err.Error()})
		return
	}

	views := make([]StopView, len(links))
	for i, link := range links {
		views[i] = StopView{RouteStopLink: link}
		if stop, ok := h.catalog.Stop(link.StopKey()); ok {
			views[i].Name = stop.DisplayName
			views[i].NameEN = stop.DisplayNameEN
			views[i].Latitude = stop.Latitude
			views[i].Longitude = stop.Longitude
		}
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, GetStopsResponse{Route: route, Stops: views, Count: len(views)})
}

// Health handles GET /health
func (h *RouteHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.catalog.Snapshot()
	status := http.StatusOK
	if snap.State == catalog.StateFailed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status":    snap.State.String(),
		"routes":    len(snap.Routes),
		"stops":     len(snap.Stops),
		"sources":   snap.Sources,
		"builtAt":   snap.BuiltAt,
		"timestamp": time.Now().UTC(),
	})
}
