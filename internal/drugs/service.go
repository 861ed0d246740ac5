package drugs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
)

// DefaultExpiryWindow is how far ahead the near-expiry alert looks
// when a pharmacy has not configured its own threshold.
const DefaultExpiryWindow = 90 * 24 * time.Hour

// Service coordinates catalog and stock operations. Tenancy checks
// run here; route guards have already established the permission.
type Service struct {
	repo  RepositoryPort
	audit audit.Recorder
}

// NewService builds a Service.
func NewService(repo RepositoryPort, recorder audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// List returns catalog entries visible to the actor. Non-system
// actors are pinned to their own pharmacy.
func (s *Service) List(ctx context.Context, actor authz.Principal, filter Filter) ([]Drug, int, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem {
		filter.PharmacyID = actor.PharmacyID()
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (*Drug, error) {
	drug, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, drug.PharmacyID, "view drug"); err != nil {
		return nil, err
	}
	return drug, nil
}

// Lookup resolves a drug by barcode inside the actor's pharmacy. Used
// by the register.
func (s *Service) Lookup(ctx context.Context, actor authz.Principal, barcode string) (*Drug, error) {
	return s.repo.FindByBarcode(ctx, actor.PharmacyID(), barcode)
}

func (s *Service) Create(ctx context.Context, actor authz.Principal, drug Drug) (*Drug, error) {
	if authz.ScopeOf(actor.Role()) != authz.ScopeSystem || drug.PharmacyID == 0 {
		drug.PharmacyID = actor.PharmacyID()
	}
	created, err := s.repo.Create(ctx, drug)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "drug:create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Principal, drug Drug) (*Drug, error) {
	existing, err := s.repo.FindByID(ctx, drug.ID)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, existing.PharmacyID, "update drug"); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, drug)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "drug:update", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Deactivate(ctx context.Context, actor authz.Principal, id int64) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.ValidatePharmacyAccess(actor, existing.PharmacyID, "delete drug"); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actor, "drug:deactivate", id, nil)
	return nil
}

// AdjustStock posts a manual movement. The repository rejects
// adjustments that would drive stock negative.
func (s *Service) AdjustStock(ctx context.Context, actor authz.Principal, input AdjustmentInput) (*Movement, error) {
	existing, err := s.repo.FindByID(ctx, input.DrugID)
	if err != nil {
		return nil, err
	}
	if err := authz.ValidatePharmacyAccess(actor, existing.PharmacyID, "adjust stock"); err != nil {
		return nil, err
	}
	if input.Qty == 0 {
		return nil, fmt.Errorf("drugs: zero quantity adjustment")
	}
	if input.Type == "" {
		input.Type = MovementAdjust
	}
	movement, err := s.repo.AdjustStock(ctx, input, authz.PrincipalID(actor))
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "stock:adjust", input.DrugID, map[string]any{
		"qty":     input.Qty,
		"type":    input.Type,
		"balance": movement.Balance,
		"note":    input.Note,
	})
	return movement, nil
}

func (s *Service) Batches(ctx context.Context, actor authz.Principal, drugID int64) ([]Batch, error) {
	if _, err := s.Get(ctx, actor, drugID); err != nil {
		return nil, err
	}
	return s.repo.Batches(ctx, drugID)
}

// ReceiveBatch records an incoming lot and bumps stock by the batch
// quantity in the movement ledger.
func (s *Service) ReceiveBatch(ctx context.Context, actor authz.Principal, batch Batch) (*Batch, error) {
	if _, err := s.Get(ctx, actor, batch.DrugID); err != nil {
		return nil, err
	}
	if batch.Quantity <= 0 {
		return nil, fmt.Errorf("drugs: batch quantity must be positive")
	}
	created, err := s.repo.AddBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.AdjustStock(ctx, AdjustmentInput{
		DrugID: batch.DrugID,
		Qty:    batch.Quantity,
		Type:   MovementReceive,
		Note:   "batch " + created.BatchNumber,
	}, authz.PrincipalID(actor)); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "batch:receive", batch.DrugID, map[string]any{
		"batch": created.BatchNumber,
		"qty":   batch.Quantity,
	})
	return created, nil
}

func (s *Service) LowStock(ctx context.Context, actor authz.Principal) ([]Drug, error) {
	return s.repo.LowStock(ctx, actor.PharmacyID())
}

func (s *Service) NearExpiry(ctx context.Context, actor authz.Principal, within time.Duration) ([]Batch, error) {
	if within <= 0 {
		within = DefaultExpiryWindow
	}
	return s.repo.NearExpiry(ctx, actor.PharmacyID(), within)
}

func (s *Service) record(ctx context.Context, actor authz.Principal, action string, drugID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		ActorID:    authz.PrincipalID(actor),
		PharmacyID: actor.PharmacyID(),
		Action:     action,
		Entity:     "drug",
		EntityID:   strconv.FormatInt(drugID, 10),
		Meta:       meta,
	})
}
