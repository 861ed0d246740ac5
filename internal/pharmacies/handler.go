package pharmacies

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler exposes pharmacy endpoints.
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
		r.Use(h.guards.RequirePermission(authz.PermViewPharmacies))
		r.Get("/pharmacies", h.List)
		r.Get("/pharmacies/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireScope(authz.ScopeSystem))
		r.Use(h.guards.RequirePermission(authz.PermCreatePharmacy))
		r.Post("/pharmacies", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermUpdatePharmacy))
		r.Put("/pharmacies/{id}", h.Update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireSuperAdmin())
		r.Use(h.guards.RequirePermission(authz.PermDeletePharmacy))
		r.Delete("/pharmacies/{id}", h.Deactivate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermManagePharmacyUsers))
		r.Get("/pharmacies/{id}/assignments", h.Assignments)
		r.Put("/pharmacies/{id}/assignments", h.AssignUser)
	})
}

type pharmacyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	License string `json:"license,omitempty" validate:"omitempty,max=100"`
}

type assignmentRequest struct {
	UserID   int64 `json:"user_id" validate:"required,gt=0"`
	IsActive bool  `json:"is_active"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	pharmacies, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), includeInactive)
	if err != nil {
		h.logger.Error("list pharmacies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, pharmacies, len(pharmacies))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid pharmacy id")
		return
	}
	pharmacy, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pharmacy)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req pharmacyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pharmacy, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), Pharmacy{
		Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email, License: req.License,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pharmacy)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid pharmacy id")
		return
	}
	var req pharmacyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pharmacy, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), Pharmacy{
		ID: id, Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email, License: req.License,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pharmacy)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid pharmacy id")
		return
	}
	if err := h.service.Deactivate(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Assignments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid pharmacy id")
		return
	}
	assignments, err := h.service.Assignments(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, assignments, len(assignments))
}

func (h *Handler) AssignUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid pharmacy id")
		return
	}
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AssignUser(r.Context(), authz.PrincipalFromContext(r.Context()), req.UserID, id, req.IsActive); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
