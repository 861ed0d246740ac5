package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/authz"
	"github.com/apothek-io/apothek/internal/platform/httpx"
	"github.com/apothek-io/apothek/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]User, int, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user User, passwordHash string) (*User, error)
	Update(ctx context.Context, user User) (*User, error)
	SetPermissions(ctx context.Context, id int64, perms []authz.Permission) error
	SetActive(ctx context.Context, id int64, active bool) error
	ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, permissions, is_manager,
	COALESCE(pharmacy_id, 0), COALESCE(branch_id, 0), is_active, created_at, updated_at`

// List returns users matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter Filter) ([]User, int, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.PharmacyID != 0 {
		add("pharmacy_id = $%d", filter.PharmacyID)
	}
	if filter.BranchID != 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.Role != "" {
		add("role = $%d", string(filter.Role))
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}
	if filter.Search != "" {
		add("(name ILIKE '%%' || $%d || '%%' OR email ILIKE '%%' || $%[1]d || '%%')", filter.Search)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY name LIMIT %d OFFSET %d`,
		userColumns, where, limit, max(filter.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// FindByID fetches a user by ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user User, passwordHash string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role, permissions, is_manager, pharmacy_id, branch_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), NULLIF($8, 0), TRUE)
		RETURNING `+userColumns,
		user.Email, user.Name, passwordHash, string(user.Role), permStrings(user.Permissions),
		user.IsManager, user.PharmacyID, user.BranchID)
	created, err := scanUser(row)
	if err != nil {
		if httpx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("users: email taken: %w", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return created, nil
}

// Update persists mutable account fields.
func (r *Repository) Update(ctx context.Context, user User) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $2, branch_id = NULLIF($3, 0), is_manager = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Name, user.BranchID, user.IsManager, user.IsActive)
	return scanUser(row)
}

// SetPermissions replaces the custom permission delta.
func (r *Repository) SetPermissions(ctx context.Context, id int64, perms []authz.Permission) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET permissions = $2, updated_at = NOW() WHERE id = $1`,
		id, permStrings(perms))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive toggles the account's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActivePharmacyAssignments lists additional active pharmacy
// assignments for the user.
func (r *Repository) ActivePharmacyAssignments(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pharmacy_id FROM user_pharmacy_assignments
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

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var perms []string
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &perms, &user.IsManager,
		&user.PharmacyID, &user.BranchID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Permissions = make([]authz.Permission, len(perms))
	for i, p := range perms {
		user.Permissions[i] = authz.Permission(p)
	}
	return &user, nil
}

func permStrings(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
