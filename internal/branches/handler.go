package branches

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler exposes branch endpoints.
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
		r.Use(h.guards.RequirePermission(authz.PermViewBranches))
		r.Get("/branches", h.List)
		r.Get("/branches/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequireScope(authz.ScopePharmacy))
		r.Use(h.guards.RequirePermission(authz.PermCreateBranch))
		r.Post("/branches", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermUpdateBranch))
		r.Put("/branches/{id}", h.Update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermDeleteBranch))
		r.Delete("/branches/{id}", h.Deactivate)
	})
}

type branchRequest struct {
	PharmacyID int64  `json:"pharmacy_id,omitempty" validate:"omitempty,gt=0"`
	Name       string `json:"name" validate:"required,max=200"`
	Address    string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=50"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	pharmacyID, _ := strconv.ParseInt(r.URL.Query().Get("pharmacy_id"), 10, 64)
	branches, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), pharmacyID)
	if err != nil {
		h.logger.Error("list branches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, branches, len(branches))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid branch id")
		return
	}
	branch, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req branchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	branch, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), Branch{
		PharmacyID: req.PharmacyID, Name: req.Name, Address: req.Address, Phone: req.Phone,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, branch)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid branch id")
		return
	}
	var req branchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	branch, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, req.Name, req.Address, req.Phone)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid branch id")
		return
	}
	if err := h.service.Deactivate(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
