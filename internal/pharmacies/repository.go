package pharmacies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/platform/httpx"
	"github.com/apothek-io/apothek/internal/shared"
)

// RepositoryPort defines data access methods for pharmacies.
type RepositoryPort interface {
	List(ctx context.Context, includeInactive bool) ([]Pharmacy, error)
	FindByID(ctx context.Context, id int64) (*Pharmacy, error)
	Create(ctx context.Context, pharmacy Pharmacy) (*Pharmacy, error)
	Update(ctx context.Context, pharmacy Pharmacy) (*Pharmacy, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetAssignment(ctx context.Context, userID, pharmacyID int64, active bool) error
	Assignments(ctx context.Context, pharmacyID int64) ([]Assignment, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pharmacyColumns = `id, name, COALESCE(address, ''), COALESCE(phone, ''),
	COALESCE(email, ''), COALESCE(license, ''), is_active, created_at, updated_at`

// List returns pharmacies ordered by name.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]Pharmacy, error) {
	query := `SELECT ` + pharmacyColumns + ` FROM pharmacies`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pharmacies: list: %w", err)
	}
	defer rows.Close()

	var pharmacies []Pharmacy
	for rows.Next() {
		pharmacy, err := scanPharmacy(rows)
		if err != nil {
			return nil, err
		}
		pharmacies = append(pharmacies, *pharmacy)
	}
	return pharmacies, rows.Err()
}

// FindByID fetches a pharmacy by ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Pharmacy, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pharmacyColumns+` FROM pharmacies WHERE id = $1`, id)
	return scanPharmacy(row)
}

// Create inserts a new pharmacy.
func (r *Repository) Create(ctx context.Context, pharmacy Pharmacy) (*Pharmacy, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO pharmacies (name, address, phone, email, license, is_active)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), TRUE)
		RETURNING `+pharmacyColumns,
		pharmacy.Name, pharmacy.Address, pharmacy.Phone, pharmacy.Email, pharmacy.License)
	created, err := scanPharmacy(row)
	if err != nil {
		if httpx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("pharmacies: name taken: %w", httpx.ErrDuplicate)
		}
		return nil, err
	}
	return created, nil
}

// Update persists mutable pharmacy fields.
func (r *Repository) Update(ctx context.Context, pharmacy Pharmacy) (*Pharmacy, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE pharmacies
		SET name = $2, address = NULLIF($3, ''), phone = NULLIF($4, ''),
		    email = NULLIF($5, ''), license = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+pharmacyColumns,
		pharmacy.ID, pharmacy.Name, pharmacy.Address, pharmacy.Phone, pharmacy.Email, pharmacy.License)
	return scanPharmacy(row)
}

// SetActive toggles the pharmacy's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pharmacies SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetAssignment upserts a user-to-pharmacy assignment.
func (r *Repository) SetAssignment(ctx context.Context, userID, pharmacyID int64, active bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_pharmacy_assignments (user_id, pharmacy_id, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pharmacy_id) DO UPDATE SET is_active = EXCLUDED.is_active`,
		userID, pharmacyID, active)
	return err
}

// Assignments lists the pharmacy's user assignments.
func (r *Repository) Assignments(ctx context.Context, pharmacyID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, pharmacy_id, is_active, created_at
		FROM user_pharmacy_assignments
		WHERE pharmacy_id = $1
		ORDER BY user_id`, pharmacyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.PharmacyID, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanPharmacy(row pgx.Row) (*Pharmacy, error) {
	var pharmacy Pharmacy
	err := row.Scan(&pharmacy.ID, &pharmacy.Name, &pharmacy.Address, &pharmacy.Phone,
		&pharmacy.Email, &pharmacy.License, &pharmacy.IsActive, &pharmacy.CreatedAt, &pharmacy.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &pharmacy, nil
}
