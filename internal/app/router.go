package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/merx-ops/merx/internal/auth"
	"github.com/merx-ops/merx/internal/lots"
	"github.com/merx-ops/merx/internal/observability"
	"github.com/merx-ops/merx/internal/platform/session"
	"github.com/merx-ops/merx/internal/purchases"
	"github.com/merx-ops/merx/internal/sales"
	"github.com/merx-ops/merx/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *session.Manager
	AuthHandler      *auth.Handler
	PurchasesHandler *purchases.Handler
	SalesHandler     *sales.Handler
	StockHandler     *lots.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with merx defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
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

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser)
		r.Route("/purchases", func(r chi.Router) {
			params.PurchasesHandler.MountRoutes(r)
		})
		r.Route("/sales", func(r chi.Router) {
			params.SalesHandler.MountRoutes(r)
		})
		r.Route("/stock", func(r chi.Router) {
			params.StockHandler.MountRoutes(r)
		})
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
