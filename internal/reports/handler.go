package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guards  authz.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guards authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guards: guards}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireAnyPermission(authz.PermViewReports, authz.PermViewSalesReports))
		r.Get("/reports/sales", h.SalesSummary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireAnyPermission(authz.PermViewReports, authz.PermViewInventoryReports))
		r.Get("/reports/inventory", h.InventoryValuation)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermExportReports))
		r.Get("/reports/sales/export", h.ExportSales)
	})
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	pharmacyID, from, to := reportParams(r)
	summary, err := h.service.SalesSummary(r.Context(), authz.PrincipalFromContext(r.Context()), pharmacyID, from, to)
	if err != nil {
		h.logger.Error("sales summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) InventoryValuation(w http.ResponseWriter, r *http.Request) {
	pharmacyID, _, _ := reportParams(r)
	valuation, err := h.service.InventoryValuation(r.Context(), authz.PrincipalFromContext(r.Context()), pharmacyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) ExportSales(w http.ResponseWriter, r *http.Request) {
	pharmacyID, from, to := reportParams(r)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-summary.csv"`)
	if err := h.service.ExportSalesCSV(r.Context(), authz.PrincipalFromContext(r.Context()),
		pharmacyID, from, to, w); err != nil {
		h.logger.Error("export sales", slog.Any("error", err))
	}
}

func reportParams(r *http.Request) (pharmacyID int64, from, to time.Time) {
	q := r.URL.Query()
	pharmacyID, _ = strconv.ParseInt(q.Get("pharmacy_id"), 10, 64)
	if t, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		from = t
	}
	if t, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		to = t
	}
	return pharmacyID, from, to
}
