package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/farmanet-cl/farmanet/internal/fulfillment"
	"github.com/farmanet-cl/farmanet/internal/inventory"
	"github.com/farmanet-cl/farmanet/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Metrics            *observability.Metrics
	InventoryHandler   *inventory.Handler
	FulfillmentHandler *fulfillment.Handler
}

// NewRouter constructs the chi.Router with farmanet defaults. Handlers that
// are nil are simply not mounted, so the same router serves both the combined
// binary and the standalone inventoryd.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.FulfillmentHandler != nil {
		params.FulfillmentHandler.MountRoutes(r)
	}

	return r
}
