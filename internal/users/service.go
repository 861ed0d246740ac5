package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
)

// Service handles user administration business rules. Every operation
// takes the acting principal; role gates and tenancy checks run here,
// not in the handlers.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
	rules *authz.Ruleset
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder, rules *authz.Ruleset) *Service {
	if rules == nil {
		rules = authz.Default()
	}
	return &Service{repo: repo, audit: recorder, rules: rules}
}

// List returns users visible to the actor. System scope sees the
// requested filter unchanged; everyone else is pinned to their own
// pharmacy.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter Filter) ([]User, int, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		filter.PharmacyID = actor.PharmacyID()
	}
	return s.repo.List(ctx, filter)
}

// Get fetches a user, enforcing pharmacy tenancy for non-system actors.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, user.PharmacyID, "view user"); err != nil {
		return nil, err
	}
	return user, nil
}

// Create registers a new account. The actor must hold the creation
// right over the target role; custom permissions are validated against
// the catalog and filtered through the target role's exclusions.
func (s *Service) Create(ctx context.Context, actor authz.Principal, req CreateUserRequest) (*User, error) {
	role := authz.Role(req.Role)
	if !authz.CanCreateRole(actor.Role(), role) {
		return nil, &authz.PermissionDeniedError{Requirement: fmt.Sprintf("create %s right", role)}
	}

	pharmacyID := req.PharmacyID
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		// Non-system actors create users inside their own pharmacy only.
		pharmacyID = actor.PharmacyID()
	}

	perms, err := s.sanitizeGrants(role, req.Permissions)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	user := User{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Name:        strings.TrimSpace(req.Name),
		Role:        role,
		Permissions: perms,
		IsManager:   req.IsManager,
		PharmacyID:  pharmacyID,
		BranchID:    req.BranchID,
	}
	created, err := s.repo.Create(ctx, user, string(hash))
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, "user.create", created.ID, map[string]any{
		"role":     string(created.Role),
		"pharmacy": created.PharmacyID,
	})
	return created, nil
}

// Update mutates account fields. The actor needs the management right
// over the target's role and tenancy access to its pharmacy.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, req UpdateUserRequest) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageRole(actor.Role(), user.Role) {
		return nil, &authz.PermissionDeniedError{Requirement: fmt.Sprintf("manage %s right", user.Role)}
	}
	if err := authz.ValidatePharmacyAccess(actor, user.PharmacyID, "update user"); err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.BranchID != nil {
		user.BranchID = *req.BranchID
	}
	if req.IsManager != nil {
		user.IsManager = *req.IsManager
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	updated, err := s.repo.Update(ctx, *user)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "user.update", updated.ID, nil)
	return updated, nil
}

// Deactivate disables an account without deleting its history.
func (s *Service) Deactivate(ctx context.Context, actor authz.Principal, id int64) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanManageRole(actor.Role(), user.Role) {
		return &authz.PermissionDeniedError{Requirement: fmt.Sprintf("manage %s right", user.Role)}
	}
	if err := authz.ValidatePharmacyAccess(actor, user.PharmacyID, "deactivate user"); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "user.deactivate", id, nil)
	return nil
}

// AssignPermissions replaces the target's custom permission delta.
// Gated by CanManagePermissionsOf; unknown strings are rejected,
// excluded and register-only grants are filtered, and the resulting
// diff is written to the audit trail.
func (s *Service) AssignPermissions(ctx context.Context, actor authz.Principal, id int64, rawPerms []string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanManagePermissionsOf(actor, user.Role) {
		return nil, &authz.PermissionDeniedError{Requirement: string(authz.PermManagePermissions)}
	}
	if err := authz.ValidatePharmacyAccess(actor, user.PharmacyID, "assign permissions"); err != nil {
		return nil, err
	}

	perms, err := s.sanitizeGrants(user.Role, rawPerms)
	if err != nil {
		return nil, err
	}

	diff := authz.Diff(user.Permissions, perms)
	if err := s.repo.SetPermissions(ctx, id, perms); err != nil {
		return nil, err
	}
	user.Permissions = perms

	s.record(ctx, actor, "user.permissions.assign", id, map[string]any{
		"added":   diff.Added,
		"removed": diff.Removed,
	})
	return user, nil
}

// PermissionsOf returns the administration view of a user's derived
// permission state.
func (s *Service) PermissionsOf(ctx context.Context, actor authz.Principal, id int64) (*PermissionView, error) {
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	subject := user.Subject(nil)
	return &PermissionView{
		Effective: s.rules.EffectivePermissions(subject),
		Custom:    authz.CustomPermissionsBeyondDefaults(subject),
		Removed:   authz.PermissionsRemovedFromDefaults(subject),
	}, nil
}

// sanitizeGrants validates raw permission strings against the catalog
// and drops grants the role can never hold: excluded permissions, and
// FINALIZE_SALE for admin-level roles. Finalizing sales belongs to
// register staff, not administrators.
func (s *Service) sanitizeGrants(role authz.Role, rawPerms []string) ([]authz.Permission, error) {
	perms := make([]authz.Permission, 0, len(rawPerms))
	for _, raw := range rawPerms {
		perm := authz.Permission(strings.TrimSpace(raw))
		if !authz.Known(perm) {
			return nil, &authz.InvalidPermissionError{Permission: perm}
		}
		if s.rules.IsExcluded(role, perm) {
			continue
		}
		if perm == authz.PermFinalizeSale && authz.LevelOf(role) >= authz.LevelOf(authz.RoleAdmin) {
			continue
		}
		perms = append(perms, perm)
	}
	return perms, nil
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		Action:     action,
		Entity:     "user",
		EntityID:   strconv.FormatInt(entityID, 10),
		PharmacyID: actor.PharmacyID(),
		Meta:       meta,
	})
}
