package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/db"
	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/metrics"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

// HistoryRepository reads recorded polls
type HistoryRepository interface {
	History(ctx context.Context, key eta.Key, limit int) ([]db.Snapshot, error)
	LatestPolls(ctx context.Context) ([]db.Freshness, error)
}

// ETAHandler serves expand/collapse and arrival views
type ETAHandler struct {
	board   *eta.Board
	catalog *catalog.Catalog
	history HistoryRepository
}

// NewETAHandler creates the handler. history may be nil when recording is disabled.
func NewETAHandler(board *eta.Board, cat *catalog.Catalog, history HistoryRepository) *ETAHandler {
	return &ETAHandler{board: board, catalog: cat, history: history}
}

// ListViewsResponse is the JSON response for GET /api/eta
type ListViewsResponse struct {
	Stops []eta.View `json:"stops"`
	Count int        `json:"count"`
	Now   time.Time  `json:"now"`
}

// ListViews handles GET /api/eta
func (h *ETAHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views := h.board.Views()
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ListViewsResponse{Stops: views, Count: len(views), Now: time.Now().UTC()})
}

// GetView handles GET /api/eta/{operator}/{route}/{variant}/{direction}/{stopId}
func (h *ETAHandler) GetView(w http.ResponseWriter, r *http.Request) {
	key, err := etaKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stop selection", map[string]interface{}{"reason": err.Error()})
		return
	}
	view, _ := h.board.View(key)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, view)
}

// Expand handles POST /api/eta/{operator}/{route}/{variant}/{direction}/{stopId}
func (h *ETAHandler) Expand(w http.ResponseWriter, r *http.Request) {
	h.withRoute(w, r, func(key eta.Key, route models.Route) (eta.View, error) {
		return h.board.Expand(route, key.StopID)
	})
}

// Toggle handles POST .../{stopId}/toggle
func (h *ETAHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.withRoute(w, r, func(key eta.Key, route models.Route) (eta.View, error) {
		return h.board.Toggle(route, key.StopID)
	})
}

// Refresh handles POST .../{stopId}/refresh
func (h *ETAHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	key, err := etaKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stop selection", map[string]interface{}{"reason": err.Error()})
		return
	}
	view, err := h.board.Refresh(key)
	if errors.Is(err, eta.ErrNotExpanded) {
		writeError(w, http.StatusConflict, "Stop is not expanded", map[string]interface{}{"stop": key.String()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Collapse handles DELETE /api/eta/{operator}/{route}/{variant}/{direction}/{stopId}
func (h *ETAHandler) Collapse(w http.ResponseWriter, r *http.Request) {
	key, err := etaKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stop selection", map[string]interface{}{"reason": err.Error()})
		return
	}
	collapsed := h.board.Collapse(key)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":       key,
		"status":    eta.StatusCollapsed,
		"collapsed": collapsed,
	})
}

func (h *ETAHandler) withRoute(w http.ResponseWriter, r *http.Request, fn func(eta.Key, models.Route) (eta.View, error)) {
	key, err := etaKeyFromPath(r)
	if err != nil || key.StopID == "" {
		writeError(w, http.StatusBadRequest, "Invalid stop selection", nil)
		return
	}

	route, err := h.catalog.Route(key.RouteKey())
	if err != nil {
		if errors.Is(err, catalog.ErrLoading) {
			writeError(w, http.StatusServiceUnavailable, "Route data is still loading. Please try again shortly.", nil)
			return
		}
		writeError(w, http.StatusNotFound, "Route not found", map[string]interface{}{"route": key.RouteKey().String()})
		return
	}

	view, err := fn(key, route)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Arrival times are unavailable", map[string]interface{}{"reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Feed handles GET /api/eta/feed. ?format=text returns protobuf text format.
func (h *ETAHandler) Feed(w http.ResponseWriter, r *http.Request) {
	readable := r.URL.Query().Get("format") == "text"
	data, err := eta.MarshalFeed(h.board.Feed(), readable)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode feed", nil)
		return
	}

	if readable {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// History handles GET .../{stopId}/history?limit=
func (h *ETAHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "Poll history is disabled", nil)
		return
	}
	key, err := etaKeyFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid stop selection", map[string]interface{}{"reason": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshots, err := h.history.History(ctx, key, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get poll history", nil)
		return
	}
	if snapshots == nil {
		snapshots = []db.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "snapshots": snapshots})
}

// DataFreshnessResponse is the JSON response for GET /api/health/data
type DataFreshnessResponse struct {
	Operators   []db.Freshness           `json:"operators"`
	PollLatency []metrics.LatencySummary `json:"pollLatency"`
	Expanded    int                      `json:"expanded"`
	LastChecked time.Time                `json:"lastChecked"`
}

// GetDataFreshness handles GET /api/health/data
func (h *ETAHandler) GetDataFreshness(w http.ResponseWriter, r *http.Request) {
	resp := DataFreshnessResponse{
		Operators:   []db.Freshness{},
		PollLatency: h.board.Latency(),
		Expanded:    h.board.Expanded(),
		LastChecked: time.Now().UTC(),
	}
	if h.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		fresh, err := h.history.LatestPolls(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get data freshness", nil)
			return
		}
		if fresh != nil {
			resp.Operators = fresh
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
