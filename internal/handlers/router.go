package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter wires every endpoint
func NewRouter(routes *RouteHandler, etas *ETAHandler, hub *StreamHub, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", routes.Health)
	r.Get("/api/health/data", etas.GetDataFreshness)

	r.Get("/api/routes", routes.SearchRoutes)
	r.Post("/api/catalog/reload", routes.ReloadCatalog)
	r.Get("/api/routes/{operator}/{route}/{variant}/{direction}/stops", routes.GetStops)

	r.Get("/api/eta", etas.ListViews)
	r.Get("/api/eta/stream", hub.HandleStream)
	r.Get("/api/eta/feed", etas.Feed)
	r.Route("/api/eta/{operator}/{route}/{variant}/{direction}/{stopId}", func(r chi.Router) {
		r.Get("/", etas.GetView)
		r.Post("/", etas.Expand)
		r.Delete("/", etas.Collapse)
		r.Post("/toggle", etas.Toggle)
		r.Post("/refresh", etas.Refresh)
		r.Get("/history", etas.History)
	})

	return r
}
