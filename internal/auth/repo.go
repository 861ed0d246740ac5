package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/shared"
)

// Repository defines the persistence surface auth needs.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, role, permissions, is_manager,
	COALESCE(pharmacy_id, 0), COALESCE(branch_id, 0), is_active, created_at, updated_at`

// FindByEmail loads the authentication view of a user.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByID loads the authentication view of a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*Account, error) {
	var account Account
	var perms []string
	err := row.Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash,
		&account.Role, &perms, &account.IsManager,
		&account.PharmacyID, &account.BranchID, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.Permissions = make([]authz.Permission, len(perms))
	for i, p := range perms {
		account.Permissions[i] = authz.Permission(p)
	}
	return &account, nil
}

// ActivePharmacyAssignments lists additional pharmacies the user is
// actively assigned to, beyond the primary one.
func (r *PGRepository) ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pharmacy_id
		FROM user_pharmacy_assignments
		WHERE user_id = $1 AND is_active
		ORDER BY pharmacy_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
