package drugs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/shared"
)

type memoryDrugRepo struct {
	drugs     map[int64]*Drug
	batches   map[int64][]Batch
	movements []Movement
	nextID    int64
}

func newMemoryDrugRepo(drugs ...*Drug) *memoryDrugRepo {
	repo := &memoryDrugRepo{
		drugs:   make(map[int64]*Drug),
		batches: make(map[int64][]Batch),
	}
	for _, d := range drugs {
		repo.drugs[d.ID] = d
		if d.ID > repo.nextID {
			repo.nextID = d.ID
		}
	}
	return repo
}

func (r *memoryDrugRepo) List(ctx context.Context, filter Filter) ([]Drug, int, error) {
	var out []Drug
	for _, d := range r.drugs {
		if filter.PharmacyID != 0 && d.PharmacyID != filter.PharmacyID {
			continue
		}
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (r *memoryDrugRepo) FindByID(ctx context.Context, id int64) (*Drug, error) {
	d, ok := r.drugs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *memoryDrugRepo) FindByBarcode(ctx context.Context, pharmacyID int64, barcode string) (*Drug, error) {
	for _, d := range r.drugs {
		if d.PharmacyID == pharmacyID && d.Barcode == barcode {
			clone := *d
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryDrugRepo) Create(ctx context.Context, drug Drug) (*Drug, error) {
	r.nextID++
	drug.ID = r.nextID
	drug.IsActive = true
	r.drugs[drug.ID] = &drug
	clone := drug
	return &clone, nil
}

func (r *memoryDrugRepo) Update(ctx context.Context, drug Drug) (*Drug, error) {
	if _, ok := r.drugs[drug.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	r.drugs[drug.ID] = &drug
	clone := drug
	return &clone, nil
}

func (r *memoryDrugRepo) SetActive(ctx context.Context, id int64, active bool) error {
	d, ok := r.drugs[id]
	if !ok {
		return shared.ErrNotFound
	}
	d.IsActive = active
	return nil
}

func (r *memoryDrugRepo) AdjustStock(ctx context.Context, input AdjustmentInput, actorID int64) (*Movement, error) {
	d, ok := r.drugs[input.DrugID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	balance := d.Stock + input.Qty
	if balance < 0 {
		return nil, shared.ErrInsufficientStock
	}
	d.Stock = balance
	movement := Movement{
		ID:       int64(len(r.movements) + 1),
		DrugID:   input.DrugID,
		Type:     input.Type,
		Qty:      input.Qty,
		Balance:  balance,
		Note:     input.Note,
		ActorID:  actorID,
		PostedAt: time.Now(),
	}
	r.movements = append(r.movements, movement)
	return &movement, nil
}

func (r *memoryDrugRepo) Batches(ctx context.Context, drugID int64) ([]Batch, error) {
	return r.batches[drugID], nil
}

func (r *memoryDrugRepo) AddBatch(ctx context.Context, batch Batch) (*Batch, error) {
	batch.ID = int64(len(r.batches[batch.DrugID]) + 1)
	r.batches[batch.DrugID] = append(r.batches[batch.DrugID], batch)
	return &batch, nil
}

func (r *memoryDrugRepo) LowStock(ctx context.Context, pharmacyID int64) ([]Drug, error) {
	var out []Drug
	for _, d := range r.drugs {
		if d.PharmacyID == pharmacyID && d.Stock <= d.ReorderLevel {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memoryDrugRepo) NearExpiry(ctx context.Context, pharmacyID int64, within time.Duration) ([]Batch, error) {
	cutoff := time.Now().Add(within)
	var out []Batch
	for drugID, batches := range r.batches {
		d := r.drugs[drugID]
		if d == nil || d.PharmacyID != pharmacyID {
			continue
		}
		for _, b := range batches {
			if b.ExpiresAt.Before(cutoff) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

var pharmacistActor = authz.Subject{UserID: 6, UserRole: authz.RolePharmacist, Pharmacy: 3, Branch: 7}

func storedDrug() *Drug {
	return &Drug{
		ID:           1,
		PharmacyID:   3,
		BranchID:     7,
		Name:         "Paracetamol 500mg",
		Barcode:      "6151000000017",
		Price:        4.50,
		Cost:         2.10,
		Stock:        100,
		ReorderLevel: 20,
		IsActive:     true,
	}
}

func TestAdjustStock(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)
	ctx := context.Background()

	movement, err := svc.AdjustStock(ctx, pharmacistActor, AdjustmentInput{DrugID: 1, Qty: -30, Type: MovementDispose, Note: "damaged"})
	require.NoError(t, err)
	require.EqualValues(t, 70, movement.Balance)
	require.Equal(t, MovementDispose, movement.Type)
	require.EqualValues(t, 70, repo.drugs[1].Stock)
	require.EqualValues(t, pharmacistActor.UserID, movement.ActorID)
}

func TestAdjustStockRejectsNegativeBalance(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	_, err := svc.AdjustStock(context.Background(), pharmacistActor, AdjustmentInput{DrugID: 1, Qty: -101})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.EqualValues(t, 100, repo.drugs[1].Stock)
	require.Empty(t, repo.movements)
}

func TestAdjustStockRejectsZeroQty(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	_, err := svc.AdjustStock(context.Background(), pharmacistActor, AdjustmentInput{DrugID: 1})
	require.Error(t, err)
}

func TestAdjustStockDefaultsToAdjustType(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	movement, err := svc.AdjustStock(context.Background(), pharmacistActor, AdjustmentInput{DrugID: 1, Qty: 5})
	require.NoError(t, err)
	require.Equal(t, MovementAdjust, movement.Type)
}

func TestAdjustStockTenancy(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	foreign := authz.Subject{UserID: 9, UserRole: authz.RolePharmacist, Pharmacy: 8}
	_, err := svc.AdjustStock(context.Background(), foreign, AdjustmentInput{DrugID: 1, Qty: 5})
	var denied *authz.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestReceiveBatch(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)
	ctx := context.Background()

	batch, err := svc.ReceiveBatch(ctx, pharmacistActor, Batch{
		DrugID:      1,
		BatchNumber: "LOT-2301",
		Quantity:    50,
		UnitCost:    1.95,
		ExpiresAt:   time.Now().Add(180 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "LOT-2301", batch.BatchNumber)

	// Receipt lands in stock and leaves a ledger row.
	require.EqualValues(t, 150, repo.drugs[1].Stock)
	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementReceive, repo.movements[0].Type)
	require.Equal(t, "batch LOT-2301", repo.movements[0].Note)

	_, err = svc.ReceiveBatch(ctx, pharmacistActor, Batch{DrugID: 1, BatchNumber: "LOT-2302"})
	require.Error(t, err)
}

func TestListPinsNonSystemActors(t *testing.T) {
	mine := storedDrug()
	other := storedDrug()
	other.ID = 2
	other.PharmacyID = 8
	repo := newMemoryDrugRepo(mine, other)
	svc := NewService(repo, nil)

	drugs, total, err := svc.List(context.Background(), pharmacistActor, Filter{PharmacyID: 8})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.EqualValues(t, 3, drugs[0].PharmacyID)
}

func TestLookup(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	drug, err := svc.Lookup(context.Background(), pharmacistActor, "6151000000017")
	require.NoError(t, err)
	require.EqualValues(t, 1, drug.ID)

	foreign := authz.Subject{UserRole: authz.RoleCashier, Pharmacy: 8}
	_, err = svc.Lookup(context.Background(), foreign, "6151000000017")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLowStock(t *testing.T) {
	low := storedDrug()
	low.Stock = 10
	healthy := storedDrug()
	healthy.ID = 2
	repo := newMemoryDrugRepo(low, healthy)
	svc := NewService(repo, nil)

	drugs, err := svc.LowStock(context.Background(), pharmacistActor)
	require.NoError(t, err)
	require.Len(t, drugs, 1)
	require.EqualValues(t, 1, drugs[0].ID)
}

func TestNearExpiryDefaultsWindow(t *testing.T) {
	drug := storedDrug()
	repo := newMemoryDrugRepo(drug)
	repo.batches[1] = []Batch{
		{ID: 1, DrugID: 1, BatchNumber: "SOON", ExpiresAt: time.Now().Add(30 * 24 * time.Hour)},
		{ID: 2, DrugID: 1, BatchNumber: "LATER", ExpiresAt: time.Now().Add(365 * 24 * time.Hour)},
	}
	svc := NewService(repo, nil)

	batches, err := svc.NearExpiry(context.Background(), pharmacistActor, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, "SOON", batches[0].BatchNumber)
}

func TestDeactivate(t *testing.T) {
	repo := newMemoryDrugRepo(storedDrug())
	svc := NewService(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), pharmacistActor, 1))
	require.False(t, repo.drugs[1].IsActive)
}
