package branches

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/platform/httpx"
	"github.com/apothek-io/apothek/internal/shared"
)

// RepositoryPort defines data access methods for branches.
type RepositoryPort interface {
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]Branch, error)
	FindByID(ctx context.Context, id int64) (*Branch, error)
	Create(ctx context.Context, branch Branch) (*Branch, error)
	Update(ctx context.Context, branch Branch) (*Branch, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const branchColumns = `id, pharmacy_id, name, COALESCE(address, ''), COALESCE(phone, ''),
	is_active, created_at, updated_at`

// ListByPharmacy returns the pharmacy's branches ordered by name.
func (r *Repository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]Branch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE pharmacy_id = $1 ORDER BY name`, pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("branches: list: %w", err)
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, *branch)
	}
	return branches, rows.Err()
}

// FindByID fetches a branch by ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+branchColumns+` FROM branches WHERE id = $1`, id)
	return scanBranch(row)
}

// Create inserts a new branch.
func (r *Repository) Create(ctx context.Context, branch Branch) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO branches (pharmacy_id, name, address, phone, is_active)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), TRUE)
		RETURNING `+branchColumns,
		branch.PharmacyID, branch.Name, branch.Address, branch.Phone)
	created, err := scanBranch(row)
	if err != nil {
		if httpx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("branches: name taken: %w", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return created, nil
}

// Update persists mutable branch fields.
func (r *Repository) Update(ctx context.Context, branch Branch) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE branches
		SET name = $2, address = NULLIF($3, ''), phone = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+branchColumns,
		branch.ID, branch.Name, branch.Address, branch.Phone)
	return scanBranch(row)
}

// SetActive toggles the branch's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE branches SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanBranch(row pgx.Row) (*Branch, error) {
	var branch Branch
	err := row.Scan(&branch.ID, &branch.PharmacyID, &branch.Name, &branch.Address,
		&branch.Phone, &branch.IsActive, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &branch, nil
}
