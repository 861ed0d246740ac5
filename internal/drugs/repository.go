package drugs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/platform/db"
	"github.com/apothek-io/apothek/internal/platform/httpx"
	"github.com/apothek-io/apothek/internal/shared"
)

// RepositoryPort defines data access methods for the drug catalog.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Drug, int, error)
	FindByID(ctx context.Context, id int64) (*Drug, error)
	FindByBarcode(ctx context.Context, pharmacyID int64, barcode string) (*Drug, error)
	Create(ctx context.Context, drug Drug) (*Drug, error)
	Update(ctx context.Context, drug Drug) (*Drug, error)
	SetActive(ctx context.Context, id int64, active bool) error
	AdjustStock(ctx context.Context, input AdjustmentInput, actorID int64) (*Movement, error)
	Batches(ctx context.Context, drugID int64) ([]Batch, error)
	AddBatch(ctx context.Context, batch Batch) (*Batch, error)
	LowStock(ctx context.Context, pharmacyID int64) ([]Drug, error)
	NearExpiry(ctx context.Context, pharmacyID int64, within time.Duration) ([]Batch, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const drugColumns = `id, pharmacy_id, COALESCE(branch_id, 0), name, COALESCE(generic_name, ''),
	COALESCE(barcode, ''), COALESCE(category, ''), COALESCE(manufacturer, ''), unit,
	price, cost, stock, reorder_level, requires_prescription, is_active, created_at, updated_at`

func (r *Repository) List(ctx context.Context, filter Filter) ([]Drug, int, error) {
	clauses := []string{"is_active = TRUE"}
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
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%", filter.Search)
		clauses = append(clauses, fmt.Sprintf(
			"(name ILIKE $%d OR generic_name ILIKE $%[1]d OR barcode = $%d)",
			len(args)-1, len(args)))
	}
	if filter.LowStock {
		clauses = append(clauses, "stock <= reorder_level")
	}
	where := "WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM drugs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("drugs: count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM drugs %s ORDER BY name LIMIT %d OFFSET %d",
		drugColumns, where, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("drugs: list: %w", err)
	}
	defer rows.Close()

	var out []Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*Drug, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM drugs WHERE id = $1", drugColumns), id)
	return scanDrug(row)
}

func (r *Repository) FindByBarcode(ctx context.Context, pharmacyID int64, barcode string) (*Drug, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM drugs WHERE pharmacy_id = $1 AND barcode = $2 AND is_active", drugColumns),
		pharmacyID, barcode)
	return scanDrug(row)
}

func (r *Repository) Create(ctx context.Context, drug Drug) (*Drug, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO drugs (pharmacy_id, branch_id, name, generic_name, barcode, category,
			manufacturer, unit, price, cost, stock, reorder_level, requires_prescription, is_active)
		VALUES ($1, NULLIF($2, 0), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7, ''), $8, $9, $10, $11, $12, $13, TRUE)
		RETURNING %s`, drugColumns),
		drug.PharmacyID, drug.BranchID, drug.Name, drug.GenericName, drug.Barcode,
		drug.Category, drug.Manufacturer, drug.Unit, drug.Price, drug.Cost,
		drug.Stock, drug.ReorderLevel, drug.RequiresPrescription)
	created, err := scanDrug(row)
	if err != nil {
		if httpx.IsUniqueViolation(err) {
			return nil, httpx.ErrDuplicate
		}
		return nil, fmt.Errorf("drugs: create: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, drug Drug) (*Drug, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE drugs SET name = $2, generic_name = NULLIF($3, ''), barcode = NULLIF($4, ''),
			category = NULLIF($5, ''), manufacturer = NULLIF($6, ''), unit = $7,
			price = $8, cost = $9, reorder_level = $10, requires_prescription = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, drugColumns),
		drug.ID, drug.Name, drug.GenericName, drug.Barcode, drug.Category,
		drug.Manufacturer, drug.Unit, drug.Price, drug.Cost, drug.ReorderLevel,
		drug.RequiresPrescription)
	return scanDrug(row)
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE drugs SET is_active = $2, updated_at = NOW() WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("drugs: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AdjustStock applies the adjustment and records the movement in one
// transaction. The drug row is locked so concurrent sales cannot race
// the balance below zero.
func (r *Repository) AdjustStock(ctx context.Context, input AdjustmentInput, actorID int64) (*Movement, error) {
	var movement Movement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var stock float64
		err := tx.QueryRow(ctx,
			"SELECT stock FROM drugs WHERE id = $1 FOR UPDATE", input.DrugID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("drugs: lock stock: %w", err)
		}

		balance := stock + input.Qty
		if balance < 0 {
			return shared.ErrInsufficientStock
		}

		if _, err := tx.Exec(ctx,
			"UPDATE drugs SET stock = $2, updated_at = NOW() WHERE id = $1",
			input.DrugID, balance); err != nil {
			return fmt.Errorf("drugs: update stock: %w", err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO stock_movements (drug_id, type, qty, balance, note, actor_id, posted_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW())
			RETURNING id, drug_id, type, qty, balance, COALESCE(note, ''), actor_id, posted_at`,
			input.DrugID, input.Type, input.Qty, balance, input.Note, actorID)
		return row.Scan(&movement.ID, &movement.DrugID, &movement.Type, &movement.Qty,
			&movement.Balance, &movement.Note, &movement.ActorID, &movement.PostedAt)
	})
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

func (r *Repository) Batches(ctx context.Context, drugID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drug_id, batch_number, quantity, unit_cost, expires_at, received_at
		FROM drug_batches WHERE drug_id = $1 ORDER BY expires_at`, drugID)
	if err != nil {
		return nil, fmt.Errorf("drugs: batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.DrugID, &b.BatchNumber, &b.Quantity,
			&b.UnitCost, &b.ExpiresAt, &b.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) AddBatch(ctx context.Context, batch Batch) (*Batch, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO drug_batches (drug_id, batch_number, quantity, unit_cost, expires_at, received_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, drug_id, batch_number, quantity, unit_cost, expires_at, received_at`,
		batch.DrugID, batch.BatchNumber, batch.Quantity, batch.UnitCost, batch.ExpiresAt)
	var b Batch
	if err := row.Scan(&b.ID, &b.DrugID, &b.BatchNumber, &b.Quantity,
		&b.UnitCost, &b.ExpiresAt, &b.ReceivedAt); err != nil {
		return nil, fmt.Errorf("drugs: add batch: %w", err)
	}
	return &b, nil
}

func (r *Repository) LowStock(ctx context.Context, pharmacyID int64) ([]Drug, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM drugs
		WHERE pharmacy_id = $1 AND is_active AND stock <= reorder_level
		ORDER BY stock / NULLIF(reorder_level, 0)`, drugColumns), pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("drugs: low stock: %w", err)
	}
	defer rows.Close()

	var out []Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *Repository) NearExpiry(ctx context.Context, pharmacyID int64, within time.Duration) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.drug_id, b.batch_number, b.quantity, b.unit_cost, b.expires_at, b.received_at
		FROM drug_batches b
		JOIN drugs d ON d.id = b.drug_id
		WHERE d.pharmacy_id = $1 AND b.quantity > 0 AND b.expires_at <= $2
		ORDER BY b.expires_at`, pharmacyID, time.Now().Add(within))
	if err != nil {
		return nil, fmt.Errorf("drugs: near expiry: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.DrugID, &b.BatchNumber, &b.Quantity,
			&b.UnitCost, &b.ExpiresAt, &b.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanDrug(row pgx.Row) (*Drug, error) {
	var d Drug
	err := row.Scan(&d.ID, &d.PharmacyID, &d.BranchID, &d.Name, &d.GenericName,
		&d.Barcode, &d.Category, &d.Manufacturer, &d.Unit, &d.Price, &d.Cost,
		&d.Stock, &d.ReorderLevel, &d.RequiresPrescription, &d.IsActive,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("drugs: scan: %w", err)
	}
	return &d, nil
}
