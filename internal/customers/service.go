package customers

import (
	"context"
	"strconv"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
)

// Service applies tenancy rules over the customer registry.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds a Service.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// List returns customers visible to the actor.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter Filter) ([]Customer, int, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		filter.PharmacyID = actor.PharmacyID()
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, customer.PharmacyID, "view customer"); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) Create(ctx context.Context, actor authz.Principal, customer Customer) (*Customer, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem || customer.PharmacyID == 0 {
		customer.PharmacyID = actor.PharmacyID()
	}
	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "customer:create", created.ID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Principal, customer Customer) (*Customer, error) {
	existing, err := s.repo.FindByID(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, existing.PharmacyID, "update customer"); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, customer)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "customer:update", customer.ID)
	return updated, nil
}

func (s *Service) Deactivate(ctx context.Context, actor authz.Principal, id int64) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.ValidatePharmacyAccess(actor, existing.PharmacyID, "delete customer"); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "customer:deactivate", id)
	return nil
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, customerID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		PharmacyID: actor.PharmacyID(),
		Action:     action,
		Entity:     "customer",
		EntityID:   strconv.FormatInt(customerID, 10),
	})
}
