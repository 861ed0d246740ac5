package sales

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/drugs"
)

// CatalogPort is the slice of the drug catalog the register needs.
type CatalogPort interface {
	FindByID(ctx context.Context, id int64) (*drugs.Drug, error)
}

// Service coordinates the point-of-sale flow.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   audit.Recorder
}

// NewService builds a Service.
func NewService(repo RepositoryPort, catalog CatalogPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, catalog: catalog, audit: recorder}
}

// List returns sales visible to the actor. Non-system actors are
// pinned to their own pharmacy.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter Filter) ([]Sale, int, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		filter.PharmacyID = actor.PharmacyID()
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, sale.PharmacyID, "view sale"); err != nil {
		return nil, err
	}
	return sale, nil
}

// Create opens a sale in the actor's pharmacy. Line names and prices
// are resolved from the catalog; every drug must belong to the same
// pharmacy.
func (s *Service) Create(ctx context.Context, actor authz.Principal, req CreateSaleRequest) (*Sale, error) {
	lines, subtotal, err := s.priceLines(ctx, actor, req.Lines)
	if err != nil {
		return nil, err
	}
	sale := Sale{
		Code:       uuid.NewString(),
		PharmacyID: actor.PharmacyID(),
		BranchID:   actor.BranchID(),
		CashierID:  authz.PrincipalID(actor),
		CustomerID: req.CustomerID,
		Subtotal:   subtotal,
		Total:      subtotal,
		Lines:      lines,
	}
	created, err := s.repo.Create(ctx, sale)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sale:create", created.ID, map[string]any{"total": created.Total})
	return created, nil
}

// Update replaces the cart of an open sale.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, req UpdateSaleRequest) (*Sale, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	lines, _, err := s.priceLines(ctx, actor, req.Lines)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.ReplaceLines(ctx, id, req.CustomerID, lines)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sale:update", id, map[string]any{"total": updated.Total})
	return updated, nil
}

// ApplyDiscount sets an absolute discount on an open sale. The
// discount cannot exceed the subtotal.
func (s *Service) ApplyDiscount(ctx context.Context, actor authz.Principal, id int64, discount float64) (*Sale, error) {
	sale, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if discount > sale.Subtotal {
		return nil, fmt.Errorf("sales: discount %.2f exceeds subtotal %.2f", discount, sale.Subtotal)
	}
	updated, err := s.repo.SetDiscount(ctx, id, discount)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sale:discount", id, map[string]any{"discount": discount})
	return updated, nil
}

// Finalize closes the sale and decrements stock.
func (s *Service) Finalize(ctx context.Context, actor authz.Principal, id int64, paymentMethod string) (*Sale, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	finalized, err := s.repo.Finalize(ctx, id, paymentMethod)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sale:finalize", id, map[string]any{
		"total":          finalized.Total,
		"payment_method": paymentMethod,
	})
	return finalized, nil
}

// Void reverses a finalized sale, restoring stock.
func (s *Service) Void(ctx context.Context, actor authz.Principal, id int64, reason string) (*Sale, error) {
	return s.reverse(ctx, actor, id, StatusVoided, reason)
}

// Refund reverses a finalized sale for a returning customer.
func (s *Service) Refund(ctx context.Context, actor authz.Principal, id int64, reason string) (*Sale, error) {
	return s.reverse(ctx, actor, id, StatusRefunded, reason)
}

func (s *Service) reverse(ctx context.Context, actor authz.Principal, id int64, to Status, reason string) (*Sale, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	reversed, err := s.repo.Reverse(ctx, id, to, authz.PrincipalID(actor))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sale:"+string(to), id, map[string]any{"reason": reason})
	return reversed, nil
}

// Delete removes an open sale.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "sale:delete", id, nil)
	return nil
}

func (s *Service) priceLines(ctx context.Context, actor authz.Principal, reqs []LineRequest) ([]Line, float64, error) {
	lines := make([]Line, 0, len(reqs))
	subtotal := 0.0
	for _, lr := range reqs {
		drug, err := s.catalog.FindByID(ctx, lr.DrugID)
		if err != nil {
			return nil, 0, fmt.Errorf("sales: drug %d: %w", lr.DrugID, err)
		}
		if err := authz.ValidatePharmacyAccess(actor, drug.PharmacyID, "sell drug"); err != nil {
			return nil, 0, err
		}
		lineTotal := drug.Price * lr.Qty
		lines = append(lines, Line{
			DrugID:    drug.ID,
			Name:      drug.Name,
			Qty:       lr.Qty,
			UnitPrice: drug.Price,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}
	return lines, subtotal, nil
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		PharmacyID: actor.PharmacyID(),
		Action:     action,
		Entity:     "sale",
		EntityID:   strconv.FormatInt(saleID, 10),
		Meta:       meta,
	})
}
