package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// Handler serves the audit trail.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	guards authz.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository, guards authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, guards: guards}
}

// MountRoutes registers the audit endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermViewAuditLogs))
		r.Get("/audit", h.List)
	})
}

// List returns audit entries. Non-system principals are pinned to
// their own pharmacy regardless of the filter they send.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())

	filter := Filter{
		ActorID: queryInt64(r, "actor_id"),
		Entity:  r.URL.Query().Get("entity"),
		Limit:   int(queryInt64(r, "limit")),
		Offset:  int(queryInt64(r, "offset")),
	}
	if authz.ScopeOf(principal.Role()) == authz.ScopeSystem {
		filter.PharmacyID = queryInt64(r, "pharmacy_id")
	} else {
		filter.PharmacyID = principal.PharmacyID()
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.List(w, entries, total)
}

func queryInt64(r *http.Request, name string) int64 {
	value, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return value
}
