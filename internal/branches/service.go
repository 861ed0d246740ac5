package branches

import (
	"context"
	"strconv"
	"strings"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
)

// Service handles branch administration.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// List returns the branches of a pharmacy the actor may see.
func (s *Service) List(ctx context.Context, actor authz.Principal, pharmacyID int64) ([]Branch, error) {
	if pharmacyID == 0 {
		pharmacyID = actor.PharmacyID()
	}
	if err := authz.ValidatePharmacyAccess(actor, pharmacyID, "view branches"); err != nil {
		return nil, err
	}
	return s.repo.ListByPharmacy(ctx, pharmacyID)
}

// Get fetches a branch, enforcing tenancy via its pharmacy.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Branch, error) {
	branch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, branch.PharmacyID, "view branch"); err != nil {
		return nil, err
	}
	return branch, nil
}

// Create opens a branch under the actor's pharmacy (or the requested
// one for system scope).
func (s *Service) Create(ctx context.Context, actor authz.Principal, branch Branch) (*Branch, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		branch.PharmacyID = actor.PharmacyID()
	}
	if err := authz.ValidatePharmacyAccess(actor, branch.PharmacyID, "create branch"); err != nil {
		return nil, err
	}
	branch.Name = strings.TrimSpace(branch.Name)
	created, err := s.repo.Create(ctx, branch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "branch.create", created)
	return created, nil
}

// Update persists mutable branch fields.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, name, address, phone string) (*Branch, error) {
	branch, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	branch.Name = strings.TrimSpace(name)
	branch.Address = address
	branch.Phone = phone
	updated, err := s.repo.Update(ctx, *branch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "branch.update", updated)
	return updated, nil
}

// Deactivate closes a branch.
func (s *Service) Deactivate(ctx context.Context, actor authz.Principal, id int64) error {
	branch, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "branch.deactivate", branch)
	return nil
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, branch *Branch) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		Action:     action,
		Entity:     "branch",
		EntityID:   strconv.FormatInt(branch.ID, 10),
		PharmacyID: branch.PharmacyID,
	})
}
