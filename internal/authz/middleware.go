package authz

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/apothek-io/apothek/internal/platform/httpx"
)

// DecisionRecorder receives the outcome of every guard decision, for
// observability. Implementations must be safe for concurrent use.
type DecisionRecorder interface {
	RecordAuthzDecision(guard, outcome string)
}

// Middleware wires authorization guards for HTTP handlers. A denied
// request is answered before any handler code runs: 401 when no
// principal is on the context, 403 naming the missing requirement.
type Middleware struct {
	Rules   *Ruleset
	Logger  *slog.Logger
	Metrics DecisionRecorder
}

func (m Middleware) ruleset() *Ruleset {
	if m.Rules != nil {
		return m.Rules
	}
	return Default()
}

// RequirePermission guards a route with a single permission.
func (m Middleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return m.guard("permission", string(perm), func(p Principal) bool {
		return m.ruleset().HasPermission(p, perm)
	})
}

// RequireAnyPermission guards a route with an OR over permissions.
func (m Middleware) RequireAnyPermission(perms ...Permission) func(http.Handler) http.Handler {
	requirement := fmt.Sprintf("any of %v", perms)
	return m.guard("permission_any", requirement, func(p Principal) bool {
		return m.ruleset().HasAnyPermission(p, perms)
	})
}

// RequireAllPermissions guards a route with an AND over permissions.
func (m Middleware) RequireAllPermissions(perms ...Permission) func(http.Handler) http.Handler {
	requirement := fmt.Sprintf("all of %v", perms)
	return m.guard("permission_all", requirement, func(p Principal) bool {
		return m.ruleset().HasAllPermissions(p, perms)
	})
}

// RequireAuthenticated only demands a principal on the request.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.guard("authenticated", "authentication", func(Principal) bool {
		return true
	})
}

// RequireSuperAdmin gates an endpoint to the top tier.
func (m Middleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return m.guard("role", string(RoleSuperAdmin), func(p Principal) bool {
		return p.Role() == RoleSuperAdmin
	})
}

// RequireAdminLevel gates an endpoint to admin and above.
func (m Middleware) RequireAdminLevel() func(http.Handler) http.Handler {
	return m.guard("role", "admin level", func(p Principal) bool {
		return LevelOf(p.Role()) >= LevelOf(RoleAdmin)
	})
}

// RequireCanCreateRole demands the creation right over the target role.
func (m Middleware) RequireCanCreateRole(target Role) func(http.Handler) http.Handler {
	requirement := fmt.Sprintf("create %s right", target)
	return m.guard("create_role", requirement, func(p Principal) bool {
		return CanCreateRole(p.Role(), target)
	})
}

// RequireCanManageRole demands the management right over the target role.
func (m Middleware) RequireCanManageRole(target Role) func(http.Handler) http.Handler {
	requirement := fmt.Sprintf("manage %s right", target)
	return m.guard("manage_role", requirement, func(p Principal) bool {
		return CanManageRole(p.Role(), target)
	})
}

// RequireScope demands at least the given data-visibility scope, under
// the ordering system > pharmacy > branch.
func (m Middleware) RequireScope(required Scope) func(http.Handler) http.Handler {
	requirement := fmt.Sprintf("%s scope", required)
	return m.guard("scope", requirement, func(p Principal) bool {
		return ScopeCovers(ScopeOf(p.Role()), required)
	})
}

func (m Middleware) guard(kind, requirement string, allow func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				m.record(kind, "unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", ErrAuthenticationMissing.Error())
				return
			}
			if !allow(principal) {
				m.record(kind, "denied")
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("guard", kind),
						slog.String("requirement", requirement),
						slog.String("role", string(principal.Role())))
				}
				err := &PermissionDeniedError{Requirement: requirement}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
				return
			}
			m.record(kind, "granted")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(guard, outcome string) {
	if m.Metrics != nil {
		m.Metrics.RecordAuthzDecision(guard, outcome)
	}
}
