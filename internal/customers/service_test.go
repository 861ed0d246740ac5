package customers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/shared"
)

type memoryCustomerRepo struct {
	customers map[int64]*Customer
	nextID    int64
}

func newMemoryCustomerRepo(customers ...*Customer) *memoryCustomerRepo {
	repo := &memoryCustomerRepo{customers: make(map[int64]*Customer)}
	for _, c := range customers {
		repo.customers[c.ID] = c
		if c.ID > repo.nextID {
			repo.nextID = c.ID
		}
	}
	return repo
}

func (r *memoryCustomerRepo) List(ctx context.Context, filter Filter) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.customers {
		if filter.PharmacyID != 0 && c.PharmacyID != filter.PharmacyID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *memoryCustomerRepo) FindByID(ctx context.Context, id int64) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *memoryCustomerRepo) Create(ctx context.Context, customer Customer) (*Customer, error) {
	r.nextID++
	customer.ID = r.nextID
	customer.IsActive = true
	r.customers[customer.ID] = &customer
	clone := customer
	return &clone, nil
}

func (r *memoryCustomerRepo) Update(ctx context.Context, customer Customer) (*Customer, error) {
	if _, ok := r.customers[customer.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	r.customers[customer.ID] = &customer
	clone := customer
	return &clone, nil
}

func (r *memoryCustomerRepo) SetActive(ctx context.Context, id int64, active bool) error {
	c, ok := r.customers[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.IsActive = active
	return nil
}

var customerCashier = authz.Subject{UserID: 4, UserRole: authz.RoleCashier, Pharmacy: 3, Branch: 7}

func TestCreatePinsNonSystemActors(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), customerCashier, Customer{PharmacyID: 8, Name: "Esi"})
	require.NoError(t, err)
	require.EqualValues(t, 3, created.PharmacyID)
	require.True(t, created.IsActive)
}

func TestListPinsNonSystemActors(t *testing.T) {
	repo := newMemoryCustomerRepo(
		&Customer{ID: 1, PharmacyID: 3, Name: "Esi", IsActive: true},
		&Customer{ID: 2, PharmacyID: 8, Name: "Yaw", IsActive: true},
	)
	svc := NewService(repo, nil)

	customers, total, err := svc.List(context.Background(), customerCashier, Filter{PharmacyID: 8})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Esi", customers[0].Name)
}

func TestUpdateEnforcesTenancy(t *testing.T) {
	repo := newMemoryCustomerRepo(&Customer{ID: 1, PharmacyID: 3, Name: "Esi", IsActive: true})
	svc := NewService(repo, nil)
	ctx := context.Background()

	updated, err := svc.Update(ctx, customerCashier, Customer{ID: 1, PharmacyID: 3, Name: "Esi Mensah"})
	require.NoError(t, err)
	require.Equal(t, "Esi Mensah", updated.Name)

	foreign := authz.Subject{UserRole: authz.RoleCashier, Pharmacy: 8}
	_, err = svc.Update(ctx, foreign, Customer{ID: 1, Name: "X"})
	var denied *authz.AccessDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestDeactivate(t *testing.T) {
	repo := newMemoryCustomerRepo(&Customer{ID: 1, PharmacyID: 3, Name: "Esi", IsActive: true})
	svc := NewService(repo, nil)

	require.NoError(t, svc.Deactivate(context.Background(), customerCashier, 1))
	require.False(t, repo.customers[1].IsActive)

	require.ErrorIs(t, svc.Deactivate(context.Background(), customerCashier, 99), shared.ErrNotFound)
}
