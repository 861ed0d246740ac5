package drugs

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler exposes drug catalog and stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guards   authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guards authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guards: guards, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermViewDrugs))
		r.Get("/drugs", h.List)
		r.Get("/drugs/low-stock", h.LowStock)
		r.Get("/drugs/lookup", h.Lookup)
		r.Get("/drugs/{id}", h.Show)
		r.Get("/drugs/{id}/batches", h.Batches)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermViewExpiryAlerts))
		r.Get("/drugs/near-expiry", h.NearExpiry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermCreateDrug))
		r.Post("/drugs", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermUpdateDrug))
		r.Put("/drugs/{id}", h.Update)
		r.Post("/drugs/{id}/batches", h.ReceiveBatch)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermAdjustStock))
		r.Post("/drugs/{id}/stock-adjustments", h.AdjustStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermDeleteDrug))
		r.Delete("/drugs/{id}", h.Deactivate)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		LowStock: q.Get("low_stock") == "true",
	}
	filter.PharmacyID, _ = strconv.ParseInt(q.Get("pharmacy_id"), 10, 64)
	filter.BranchID, _ = strconv.ParseInt(q.Get("branch_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	drugs, total, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.logger.Error("list drugs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, drugs, total)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	drug, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drug)
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	barcode := r.URL.Query().Get("barcode")
	if barcode == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "barcode query parameter required")
		return
	}
	drug, err := h.service.Lookup(r.Context(), authz.PrincipalFromContext(r.Context()), barcode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drug)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req DrugRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	drug, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), reqToDrug(req, 0))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, drug)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	var req DrugRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	drug, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), reqToDrug(req, id))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drug)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	if err := h.service.Deactivate(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	var req AdjustStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.AdjustStock(r.Context(), authz.PrincipalFromContext(r.Context()), AdjustmentInput{
		DrugID: id,
		Qty:    req.Qty,
		Type:   MovementType(req.Type),
		Note:   req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) Batches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	batches, err := h.service.Batches(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, batches, len(batches))
}

func (h *Handler) ReceiveBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drug id")
		return
	}
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.ReceiveBatch(r.Context(), authz.PrincipalFromContext(r.Context()), Batch{
		DrugID:      id,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.service.LowStock(r.Context(), authz.PrincipalFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, drugs, len(drugs))
}

func (h *Handler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	batches, err := h.service.NearExpiry(r.Context(), authz.PrincipalFromContext(r.Context()),
		time.Duration(days)*24*time.Hour)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, batches, len(batches))
}

func reqToDrug(req DrugRequest, id int64) Drug {
	return Drug{
		ID:                   id,
		PharmacyID:           req.PharmacyID,
		BranchID:             req.BranchID,
		Name:                 req.Name,
		GenericName:          req.GenericName,
		Barcode:              req.Barcode,
		Category:             req.Category,
		Manufacturer:         req.Manufacturer,
		Unit:                 req.Unit,
		Price:                req.Price,
		Cost:                 req.Cost,
		Stock:                req.Stock,
		ReorderLevel:         req.ReorderLevel,
		RequiresPrescription: req.RequiresPrescription,
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
