package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/drugs"
	"github.com/apothek-io/apothek/internal/shared"
)

type memoryCatalog struct {
	drugs map[int64]*drugs.Drug
}

func (c *memoryCatalog) FindByID(ctx context.Context, id int64) (*drugs.Drug, error) {
	d, ok := c.drugs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

type memorySaleRepo struct {
	catalog *memoryCatalog
	sales   map[int64]*Sale
	nextID  int64
}

func newMemorySaleRepo(catalog *memoryCatalog) *memorySaleRepo {
	return &memorySaleRepo{catalog: catalog, sales: make(map[int64]*Sale)}
}

func (r *memorySaleRepo) List(ctx context.Context, filter Filter) ([]Sale, int, error) {
	var out []Sale
	for _, s := range r.sales {
		if filter.PharmacyID != 0 && s.PharmacyID != filter.PharmacyID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (r *memorySaleRepo) FindByID(ctx context.Context, id int64) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *memorySaleRepo) Create(ctx context.Context, sale Sale) (*Sale, error) {
	r.nextID++
	sale.ID = r.nextID
	sale.Status = StatusOpen
	sale.CreatedAt = time.Now()
	sale.UpdatedAt = sale.CreatedAt
	r.sales[sale.ID] = &sale
	clone := sale
	return &clone, nil
}

func (r *memorySaleRepo) ReplaceLines(ctx context.Context, id int64, customerID int64, lines []Line) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if s.Status != StatusOpen {
		return nil, ErrSaleNotOpen
	}
	subtotal := 0.0
	for _, l := range lines {
		subtotal += l.LineTotal
	}
	s.CustomerID = customerID
	s.Lines = lines
	s.Subtotal = subtotal
	s.Total = subtotal - s.Discount
	if s.Total < 0 {
		s.Total = 0
	}
	clone := *s
	return &clone, nil
}

func (r *memorySaleRepo) SetDiscount(ctx context.Context, id int64, discount float64) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if s.Status != StatusOpen {
		return nil, ErrSaleNotOpen
	}
	s.Discount = discount
	s.Total = s.Subtotal - discount
	clone := *s
	return &clone, nil
}

func (r *memorySaleRepo) Finalize(ctx context.Context, id int64, paymentMethod string) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if s.Status != StatusOpen {
		return nil, ErrSaleNotOpen
	}
	for _, l := range s.Lines {
		d := r.catalog.drugs[l.DrugID]
		if d.Stock < l.Qty {
			return nil, shared.ErrInsufficientStock
		}
	}
	for _, l := range s.Lines {
		r.catalog.drugs[l.DrugID].Stock -= l.Qty
	}
	now := time.Now()
	s.Status = StatusFinalized
	s.PaymentMethod = paymentMethod
	s.FinalizedAt = &now
	clone := *s
	return &clone, nil
}

func (r *memorySaleRepo) Reverse(ctx context.Context, id int64, to Status, actorID int64) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if s.Status != StatusFinalized {
		return nil, ErrSaleNotFinalized
	}
	for _, l := range s.Lines {
		r.catalog.drugs[l.DrugID].Stock += l.Qty
	}
	s.Status = to
	clone := *s
	return &clone, nil
}

func (r *memorySaleRepo) Delete(ctx context.Context, id int64) error {
	s, ok := r.sales[id]
	if !ok {
		return shared.ErrNotFound
	}
	if s.Status != StatusOpen {
		return ErrSaleNotOpen
	}
	delete(r.sales, id)
	return nil
}

var cashierActor = authz.Subject{UserID: 4, UserRole: authz.RoleCashier, Pharmacy: 3, Branch: 7}

func newTestRegister() (*Service, *memorySaleRepo, *memoryCatalog) {
	catalog := &memoryCatalog{drugs: map[int64]*drugs.Drug{
		1: {ID: 1, PharmacyID: 3, Name: "Paracetamol 500mg", Price: 4.50, Stock: 100},
		2: {ID: 2, PharmacyID: 3, Name: "Amoxicillin 250mg", Price: 12.00, Stock: 5},
		3: {ID: 3, PharmacyID: 8, Name: "Foreign drug", Price: 1.00, Stock: 50},
	}}
	repo := newMemorySaleRepo(catalog)
	return NewService(repo, catalog, nil), repo, catalog
}

func TestCreatePricesLinesFromCatalog(t *testing.T) {
	svc, _, _ := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{
		{DrugID: 1, Qty: 2},
		{DrugID: 2, Qty: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, sale.Status)
	require.EqualValues(t, 3, sale.PharmacyID)
	require.EqualValues(t, 4, sale.CashierID)
	require.NotEmpty(t, sale.Code)
	require.InDelta(t, 21.0, sale.Subtotal, 1e-9)
	require.InDelta(t, 21.0, sale.Total, 1e-9)

	// Catalog name and price are captured on the line.
	require.Equal(t, "Paracetamol 500mg", sale.Lines[0].Name)
	require.InDelta(t, 4.50, sale.Lines[0].UnitPrice, 1e-9)
}

func TestCreateRejectsForeignDrug(t *testing.T) {
	svc, _, _ := newTestRegister()

	_, err := svc.Create(context.Background(), cashierActor, CreateSaleRequest{Lines: []LineRequest{
		{DrugID: 3, Qty: 1},
	}})
	var denied *authz.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestFinalizeDecrementsStock(t *testing.T) {
	svc, _, catalog := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 2}}})
	require.NoError(t, err)

	finalized, err := svc.Finalize(ctx, cashierActor, sale.ID, "cash")
	require.NoError(t, err)
	require.Equal(t, StatusFinalized, finalized.Status)
	require.Equal(t, "cash", finalized.PaymentMethod)
	require.NotNil(t, finalized.FinalizedAt)
	require.InDelta(t, 98, catalog.drugs[1].Stock, 1e-9)

	// A closed sale cannot be finalized again.
	_, err = svc.Finalize(ctx, cashierActor, sale.ID, "cash")
	require.ErrorIs(t, err, ErrSaleNotOpen)
}

func TestFinalizeInsufficientStock(t *testing.T) {
	svc, _, catalog := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 2, Qty: 6}}})
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, cashierActor, sale.ID, "cash")
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.InDelta(t, 5, catalog.drugs[2].Stock, 1e-9)
}

func TestVoidRestoresStock(t *testing.T) {
	svc, _, catalog := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 10}}})
	require.NoError(t, err)

	// Voiding an open sale is rejected.
	_, err = svc.Void(ctx, cashierActor, sale.ID, "mistake")
	require.ErrorIs(t, err, ErrSaleNotFinalized)

	_, err = svc.Finalize(ctx, cashierActor, sale.ID, "card")
	require.NoError(t, err)
	require.InDelta(t, 90, catalog.drugs[1].Stock, 1e-9)

	voided, err := svc.Void(ctx, cashierActor, sale.ID, "mistake")
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)
	require.InDelta(t, 100, catalog.drugs[1].Stock, 1e-9)

	// A voided sale cannot be reversed again.
	_, err = svc.Refund(ctx, cashierActor, sale.ID, "again")
	require.ErrorIs(t, err, ErrSaleNotFinalized)
}

func TestRefund(t *testing.T) {
	svc, _, catalog := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 2, Qty: 2}}})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, cashierActor, sale.ID, "cash")
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, cashierActor, sale.ID, "adverse reaction")
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)
	require.InDelta(t, 5, catalog.drugs[2].Stock, 1e-9)
}

func TestApplyDiscount(t *testing.T) {
	svc, _, _ := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 2}}})
	require.NoError(t, err)

	discounted, err := svc.ApplyDiscount(ctx, cashierActor, sale.ID, 5)
	require.NoError(t, err)
	require.InDelta(t, 5, discounted.Discount, 1e-9)
	require.InDelta(t, 4, discounted.Total, 1e-9)

	_, err = svc.ApplyDiscount(ctx, cashierActor, sale.ID, 50)
	require.Error(t, err)
}

func TestUpdateReplacesCart(t *testing.T) {
	svc, _, _ := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 1}}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, cashierActor, sale.ID, UpdateSaleRequest{CustomerID: 15, Lines: []LineRequest{
		{DrugID: 2, Qty: 2},
	}})
	require.NoError(t, err)
	require.EqualValues(t, 15, updated.CustomerID)
	require.Len(t, updated.Lines, 1)
	require.InDelta(t, 24, updated.Total, 1e-9)
}

func TestDeleteOnlyOpenSales(t *testing.T) {
	svc, repo, _ := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 1}}})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, cashierActor, sale.ID))
	require.Empty(t, repo.sales)

	sale, err = svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 1}}})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, cashierActor, sale.ID, "cash")
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, cashierActor, sale.ID), ErrSaleNotOpen)
}

func TestGetEnforcesTenancy(t *testing.T) {
	svc, _, _ := newTestRegister()
	ctx := context.Background()

	sale, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 1}}})
	require.NoError(t, err)

	foreign := authz.Subject{UserID: 9, UserRole: authz.RoleCashier, Pharmacy: 8}
	_, err = svc.Get(ctx, foreign, sale.ID)
	var denied *authz.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestListPinsNonSystemActors(t *testing.T) {
	svc, repo, _ := newTestRegister()
	ctx := context.Background()

	_, err := svc.Create(ctx, cashierActor, CreateSaleRequest{Lines: []LineRequest{{DrugID: 1, Qty: 1}}})
	require.NoError(t, err)
	repo.sales[99] = &Sale{ID: 99, PharmacyID: 8, Status: StatusOpen}

	sales, total, err := svc.List(ctx, cashierActor, Filter{PharmacyID: 8})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.EqualValues(t, 3, sales[0].PharmacyID)
}
