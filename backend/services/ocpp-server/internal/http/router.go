package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/http/handlers"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	ChargePoints  *handlers.ChargePointsHandlers
	HealthHandler http.HandlerFunc
}

// NewRouter wires ops routes. The API is mounted only when authMiddleware is set.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", deps.HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if authMiddleware != nil && deps.ChargePoints != nil {
		r.Route("/api/chargepoints", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/", deps.ChargePoints.List)
			r.Get("/{id}", deps.ChargePoints.Get)
			r.Get("/{id}/profile", deps.ChargePoints.Profile)
			r.Get("/{id}/frames", deps.ChargePoints.Frames)
		})
	}
	return r
}
