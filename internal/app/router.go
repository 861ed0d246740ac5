package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/auth"
	"github.com/apothek-io/apothek/internal/branches"
	"github.com/apothek-io/apothek/internal/customers"
	"github.com/apothek-io/apothek/internal/drugs"
	"github.com/apothek-io/apothek/internal/observability"
	"github.com/apothek-io/apothek/internal/pharmacies"
	"github.com/apothek-io/apothek/internal/reports"
	"github.com/apothek-io/apothek/internal/sales"
	"github.com/apothek-io/apothek/internal/users"
	"github.com/apothek-io/apothek/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator auth.Authenticator

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	PharmaciesHandler *pharmacies.Handler
	BranchesHandler   *branches.Handler
	DrugsHandler      *drugs.Handler
	SalesHandler      *sales.Handler
	CustomersHandler  *customers.Handler
	ReportsHandler    *reports.Handler
	AuditHandler      *audit.Handler
	JobsHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)

		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.PharmaciesHandler != nil {
			params.PharmaciesHandler.MountRoutes(r)
		}
		if params.BranchesHandler != nil {
			params.BranchesHandler.MountRoutes(r)
		}
		if params.DrugsHandler != nil {
			params.DrugsHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(r)
		}
	})

	return r
}
