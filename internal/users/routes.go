package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/apothek-io/apothek/internal/authz"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermViewUsers))
		r.Get("/users", h.List)
		r.Get("/users/{id}", h.Show)
		r.Get("/users/{id}/permissions", h.Permissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermCreateUser))
		r.Post("/users", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermUpdateUser))
		r.Put("/users/{id}", h.Update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermDeleteUser))
		r.Delete("/users/{id}", h.Deactivate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guards.RequirePermission(authz.PermManagePermissions))
		r.Put("/users/{id}/permissions", h.AssignPermissions)
	})
}
