package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/models"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// routeKeyFromPath reads {operator}/{route}/{variant}/{direction}
func routeKeyFromPath(r *http.Request) (models.RouteKey, error) {
	op, err := models.ParseOperator(chi.URLParam(r, "operator"))
	if err != nil {
		return models.RouteKey{}, err
	}
	dir, err := models.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		return models.RouteKey{}, err
	}
	return models.RouteKey{
		Code:           strings.ToUpper(chi.URLParam(r, "route")),
		Operator:       op,
		ServiceVariant: chi.URLParam(r, "variant"),
		Direction:      dir,
	}, nil
}

func etaKeyFromPath(r *http.Request) (eta.Key, error) {
	rk, err := routeKeyFromPath(r)
	if err != nil {
		return eta.Key{}, err
	}
	return eta.Key{
		Operator:       rk.Operator,
		RouteCode:      rk.Code,
		ServiceVariant: rk.ServiceVariant,
		Direction:      rk.Direction,
		StopID:         chi.URLParam(r, "stopId"),
	}, nil
}
