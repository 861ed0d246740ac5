package pharmacies

import (
	"context"
	"strconv"
	"strings"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
)

// Service handles pharmacy administration.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// List returns pharmacies visible to the actor: system scope sees all,
// everyone else only pharmacies they are assigned to.
func (s *Service) List(ctx context.Context, actor authz.Principal, includeInactive bool) ([]Pharmacy, error) {
	pharmacies, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	if authz.ScopeOf(actor.Role()) == authz.ScopeSystem {
		return pharmacies, nil
	}
	visible := pharmacies[:0]
	for _, pharmacy := range pharmacies {
		if authz.HasPharmacyAccess(actor, pharmacy.ID) {
			visible = append(visible, pharmacy)
		}
	}
	return visible, nil
}

// Get fetches a pharmacy, enforcing tenancy.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Pharmacy, error) {
	if err := authz.ValidatePharmacyAccess(actor, id, "view pharmacy"); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Create registers a tenant.
func (s *Service) Create(ctx context.Context, actor authz.Principal, pharmacy Pharmacy) (*Pharmacy, error) {
	pharmacy.Name = strings.TrimSpace(pharmacy.Name)
	created, err := s.repo.Create(ctx, pharmacy)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "pharmacy.create", created.ID, nil)
	return created, nil
}

// Update persists mutable pharmacy fields.
func (s *Service) Update(ctx context.Context, actor authz.Principal, pharmacy Pharmacy) (*Pharmacy, error) {
	if err := authz.ValidatePharmacyAccess(actor, pharmacy.ID, "update pharmacy"); err != nil {
		return nil, err
	}
	pharmacy.Name = strings.TrimSpace(pharmacy.Name)
	updated, err := s.repo.Update(ctx, pharmacy)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "pharmacy.update", updated.ID, nil)
	return updated, nil
}

// Deactivate disables a tenant.
func (s *Service) Deactivate(ctx context.Context, actor authz.Principal, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "pharmacy.deactivate", id, nil)
	return nil
}

// AssignUser upserts an additional user-to-pharmacy assignment.
func (s *Service) AssignUser(ctx context.Context, actor authz.Principal, userID, pharmacyID int64, active bool) error {
	if err := authz.ValidatePharmacyAccess(actor, pharmacyID, "assign pharmacy user"); err != nil {
		return err
	}
	if err := s.repo.SetAssignment(ctx, userID, pharmacyID, active); err != nil {
		return err
	}
	s.record(ctx, actor, "pharmacy.assignment", pharmacyID, map[string]any{
		"user_id": userID,
		"active":  active,
	})
	return nil
}

// Assignments lists the pharmacy's user assignments.
func (s *Service) Assignments(ctx context.Context, actor authz.Principal, pharmacyID int64) ([]Assignment, error) {
	if err := authz.ValidatePharmacyAccess(actor, pharmacyID, "view pharmacy assignments"); err != nil {
		return nil, err
	}
	return s.repo.Assignments(ctx, pharmacyID)
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		Action:     action,
		Entity:     "pharmacy",
		EntityID:   strconv.FormatInt(entityID, 10),
		PharmacyID: entityID,
		Meta:       meta,
	})
}
