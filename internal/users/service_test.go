package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/audit"
	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/shared"
)

type memoryUserRepo struct {
	users       map[int64]*User
	assignments map[int64][]int64
	nextID      int64
}

func newMemoryUserRepo(users ...*User) *memoryUserRepo {
	repo := &memoryUserRepo{
		users:       make(map[int64]*User),
		assignments: make(map[int64][]int64),
	}
	for _, u := range users {
		repo.users[u.ID] = u
		if u.ID > repo.nextID {
			repo.nextID = u.ID
		}
	}
	return repo
}

func (r *memoryUserRepo) List(ctx context.Context, filter Filter) ([]User, int, error) {
	var out []User
	for _, u := range r.users {
		if filter.PharmacyID != 0 && u.PharmacyID != filter.PharmacyID {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memoryUserRepo) Create(ctx context.Context, user User, passwordHash string) (*User, error) {
	r.nextID++
	user.ID = r.nextID
	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = &user
	clone := user
	return &clone, nil
}

func (r *memoryUserRepo) Update(ctx context.Context, user User) (*User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = &user
	clone := user
	return &clone, nil
}

func (r *memoryUserRepo) SetPermissions(ctx context.Context, id int64, perms []authz.Permission) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Permissions = perms
	return nil
}

func (r *memoryUserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (r *memoryUserRepo) ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error) {
	return r.assignments[userID], nil
}

type recordedAudit struct {
	entries []audit.Entry
}

func (a *recordedAudit) Record(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordedAudit) last(t *testing.T) audit.Entry {
	t.Helper()
	require.NotEmpty(t, a.entries)
	return a.entries[len(a.entries)-1]
}

var (
	rootActor  = authz.Subject{UserID: 1, UserRole: authz.RoleSuperAdmin}
	adminActor = authz.Subject{UserID: 2, UserRole: authz.RoleAdmin, Pharmacy: 3}
)

func storedCashier() *User {
	return &User{
		ID:         10,
		Email:      "kofi@centralpharma.test",
		Name:       "Kofi",
		Role:       authz.RoleCashier,
		PharmacyID: 3,
		BranchID:   7,
		IsActive:   true,
	}
}

func TestCreateUserRoleGate(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := CreateUserRequest{
		Email:    "  Ama@CentralPharma.test ",
		Name:     " Ama ",
		Password: "long enough",
		Role:     string(authz.RolePharmacist),
	}
	created, err := svc.Create(ctx, adminActor, req)
	require.NoError(t, err)
	require.Equal(t, "ama@centralpharma.test", created.Email)
	require.Equal(t, "Ama", created.Name)
	// Non-system creators are pinned to their own pharmacy.
	require.EqualValues(t, 3, created.PharmacyID)

	req.Role = string(authz.RoleAdmin)
	_, err = svc.Create(ctx, adminActor, req)
	var denied *authz.PermissionDeniedError
	require.ErrorAs(t, err, &denied)

	// super_admin may create admins, in any pharmacy.
	req.Email = "owner@centralpharma.test"
	req.PharmacyID = 9
	created, err = svc.Create(ctx, rootActor, req)
	require.NoError(t, err)
	require.EqualValues(t, 9, created.PharmacyID)
}

func TestCreateUserSanitizesGrants(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := CreateUserRequest{
		Email:    "ama@centralpharma.test",
		Name:     "Ama",
		Password: "long enough",
		Role:     string(authz.RoleCashier),
		// VIEW_AUDIT_LOGS is excluded for cashiers and must be dropped
		// silently; DELETE_DRUG is a legitimate extension.
		Permissions: []string{"DELETE_DRUG", "VIEW_AUDIT_LOGS"},
	}
	created, err := svc.Create(ctx, adminActor, req)
	require.NoError(t, err)
	require.Equal(t, []authz.Permission{authz.PermDeleteDrug}, created.Permissions)

	req.Email = "other@centralpharma.test"
	req.Permissions = []string{"LAUNCH_ROCKETS"}
	_, err = svc.Create(ctx, adminActor, req)
	var invalid *authz.InvalidPermissionError
	require.ErrorAs(t, err, &invalid)
	require.EqualValues(t, "LAUNCH_ROCKETS", invalid.Permission)
}

func TestUpdateUserTenancy(t *testing.T) {
	user := storedCashier()
	repo := newMemoryUserRepo(user)
	auditLog := &recordedAudit{}
	svc := NewService(repo, auditLog, nil)
	ctx := context.Background()

	name := "Kofi A."
	updated, err := svc.Update(ctx, adminActor, user.ID, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Kofi A.", updated.Name)
	require.Equal(t, "user.update", auditLog.last(t).Action)

	// An admin from another pharmacy is rejected by tenancy.
	foreign := authz.Subject{UserID: 5, UserRole: authz.RoleAdmin, Pharmacy: 8}
	_, err = svc.Update(ctx, foreign, user.ID, UpdateUserRequest{Name: &name})
	var accessDenied *authz.AccessDeniedError
	require.ErrorAs(t, err, &accessDenied)
}

func TestUpdateCannotManageHigherRole(t *testing.T) {
	owner := storedCashier()
	owner.ID = 11
	owner.Role = authz.RoleAdmin
	repo := newMemoryUserRepo(owner)
	svc := NewService(repo, nil, nil)

	flag := true
	_, err := svc.Update(context.Background(), adminActor, owner.ID, UpdateUserRequest{IsManager: &flag})
	var denied *authz.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestDeactivate(t *testing.T) {
	user := storedCashier()
	repo := newMemoryUserRepo(user)
	auditLog := &recordedAudit{}
	svc := NewService(repo, auditLog, nil)

	require.NoError(t, svc.Deactivate(context.Background(), adminActor, user.ID))
	require.False(t, repo.users[user.ID].IsActive)
	require.Equal(t, "user.deactivate", auditLog.last(t).Action)

	require.ErrorIs(t, svc.Deactivate(context.Background(), adminActor, 999), shared.ErrNotFound)
}

func TestAssignPermissions(t *testing.T) {
	user := storedCashier()
	user.Permissions = []authz.Permission{authz.PermViewReports}
	repo := newMemoryUserRepo(user)
	auditLog := &recordedAudit{}
	svc := NewService(repo, auditLog, nil)
	ctx := context.Background()

	updated, err := svc.AssignPermissions(ctx, adminActor, user.ID, []string{"DELETE_DRUG"})
	require.NoError(t, err)
	require.Equal(t, []authz.Permission{authz.PermDeleteDrug}, updated.Permissions)

	entry := auditLog.last(t)
	require.Equal(t, "user.permissions.assign", entry.Action)
	require.Equal(t, map[string]any{
		"added":   []authz.Permission{authz.PermDeleteDrug},
		"removed": []authz.Permission{authz.PermViewReports},
	}, entry.Meta)
}

func TestAssignPermissionsGate(t *testing.T) {
	user := storedCashier()
	repo := newMemoryUserRepo(user)
	svc := NewService(repo, nil, nil)

	pharmacist := authz.Subject{UserID: 6, UserRole: authz.RolePharmacist, Pharmacy: 3}
	_, err := svc.AssignPermissions(context.Background(), pharmacist, user.ID, []string{"DELETE_DRUG"})
	var denied *authz.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
}

func TestFinalizeSaleNeverGrantableToAdmins(t *testing.T) {
	admin := storedCashier()
	admin.ID = 12
	admin.Role = authz.RoleAdmin
	repo := newMemoryUserRepo(admin)
	svc := NewService(repo, nil, nil)

	updated, err := svc.AssignPermissions(context.Background(), rootActor, admin.ID, []string{"FINALIZE_SALE", "VIEW_REPORTS"})
	require.NoError(t, err)
	require.Equal(t, []authz.Permission{authz.PermViewReports}, updated.Permissions)
}

func TestListPinsNonSystemActors(t *testing.T) {
	inside := storedCashier()
	outside := storedCashier()
	outside.ID = 20
	outside.PharmacyID = 8
	repo := newMemoryUserRepo(inside, outside)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	users, total, err := svc.List(ctx, adminActor, Filter{PharmacyID: 8})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.EqualValues(t, 3, users[0].PharmacyID)

	_, total, err = svc.List(ctx, rootActor, Filter{PharmacyID: 8})
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestPermissionsOf(t *testing.T) {
	user := storedCashier()
	user.Permissions = []authz.Permission{authz.PermDeleteDrug}
	user.IsManager = true
	repo := newMemoryUserRepo(user)
	svc := NewService(repo, nil, nil)

	view, err := svc.PermissionsOf(context.Background(), adminActor, user.ID)
	require.NoError(t, err)
	require.Contains(t, view.Effective, authz.PermCreateSale)
	require.Contains(t, view.Effective, authz.PermDeleteDrug)
	require.Contains(t, view.Effective, authz.PermVoidSale)
	require.Equal(t, []authz.Permission{authz.PermDeleteDrug}, view.Custom)
}
