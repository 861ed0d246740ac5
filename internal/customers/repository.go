package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/platform/httpx"
	"github.com/apothek-io/apothek/internal/shared"
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Customer, int, error)
	FindByID(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, customer Customer) (*Customer, error)
	Update(ctx context.Context, customer Customer) (*Customer, error)
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

const customerColumns = `id, pharmacy_id, name, COALESCE(phone, ''), COALESCE(email, ''),
	COALESCE(address, ''), COALESCE(notes, ''), is_active, created_at, updated_at`

func (r *Repository) List(ctx context.Context, filter Filter) ([]Customer, int, error) {
	clauses := []string{"is_active = TRUE"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.PharmacyID != 0 {
		add("pharmacy_id = $%d", filter.PharmacyID)
	}
	if filter.Search != "" {
		add("(name ILIKE $%d OR phone ILIKE $%[1]d OR email ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("customers: count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM customers %s ORDER BY name LIMIT %d OFFSET %d",
		customerColumns, where, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*Customer, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM customers WHERE id = $1", customerColumns), id)
	return scanCustomer(row)
}

func (r *Repository) Create(ctx context.Context, customer Customer) (*Customer, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO customers (pharmacy_id, name, phone, email, address, notes, is_active)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), TRUE)
		RETURNING %s`, customerColumns),
		customer.PharmacyID, customer.Name, customer.Phone, customer.Email,
		customer.Address, customer.Notes)
	created, err := scanCustomer(row)
	if err != nil {
		if httpx.IsUniqueViolation(err) {
			return nil, httpx.ErrDuplicate
		}
		return nil, fmt.Errorf("customers: create: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, customer Customer) (*Customer, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE customers SET name = $2, phone = NULLIF($3, ''), email = NULLIF($4, ''),
			address = NULLIF($5, ''), notes = NULLIF($6, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, customerColumns),
		customer.ID, customer.Name, customer.Phone, customer.Email,
		customer.Address, customer.Notes)
	return scanCustomer(row)
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE customers SET is_active = $2, updated_at = NOW() WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("customers: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.PharmacyID, &c.Name, &c.Phone, &c.Email,
		&c.Address, &c.Notes, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("customers: scan: %w", err)
	}
	return &c, nil
}
