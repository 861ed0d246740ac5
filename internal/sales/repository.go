package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apothek-io/apothek/internal/platform/db"
	"github.com/apothek-io/apothek/internal/shared"
)

// Lifecycle errors surfaced by the repository.
var (
	ErrSaleNotOpen      = errors.New("sales: sale is not open")
	ErrSaleNotFinalized = errors.New("sales: sale is not finalized")
)

// RepositoryPort defines data access methods for sales.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Sale, int, error)
	FindByID(ctx context.Context, id int64) (*Sale, error)
	Create(ctx context.Context, sale Sale) (*Sale, error)
	ReplaceLines(ctx context.Context, id int64, customerID int64, lines []Line) (*Sale, error)
	SetDiscount(ctx context.Context, id int64, discount float64) (*Sale, error)
	Finalize(ctx context.Context, id int64, paymentMethod string) (*Sale, error)
	Reverse(ctx context.Context, id int64, to Status, actorID int64) (*Sale, error)
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, code, pharmacy_id, COALESCE(branch_id, 0), cashier_id,
	COALESCE(customer_id, 0), status, subtotal, discount, total,
	COALESCE(payment_method, ''), created_at, updated_at, finalized_at`

func (r *Repository) List(ctx context.Context, filter Filter) ([]Sale, int, error) {
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
	if filter.CashierID != 0 {
		add("cashier_id = $%d", filter.CashierID)
	}
	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sales "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sales: count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM sales %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		saleColumns, where, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*Sale, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM sales WHERE id = $1", saleColumns), id)
	sale, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	sale.Lines, err = r.lines(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Create opens a sale with its lines in one transaction.
func (r *Repository) Create(ctx context.Context, sale Sale) (*Sale, error) {
	var created *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO sales (code, pharmacy_id, branch_id, cashier_id, customer_id,
				status, subtotal, discount, total)
			VALUES ($1, $2, NULLIF($3, 0), $4, NULLIF($5, 0), $6, $7, $8, $9)
			RETURNING %s`, saleColumns),
			sale.Code, sale.PharmacyID, sale.BranchID, sale.CashierID, sale.CustomerID,
			StatusOpen, sale.Subtotal, sale.Discount, sale.Total)
		var err error
		created, err = scanSale(row)
		if err != nil {
			return fmt.Errorf("sales: create: %w", err)
		}
		created.Lines, err = insertLines(ctx, tx, created.ID, sale.Lines)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReplaceLines swaps the cart of an open sale and recalculates totals.
func (r *Repository) ReplaceLines(ctx context.Context, id int64, customerID int64, lines []Line) (*Sale, error) {
	var updated *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != StatusOpen {
			return ErrSaleNotOpen
		}
		if _, err := tx.Exec(ctx, "DELETE FROM sale_lines WHERE sale_id = $1", id); err != nil {
			return fmt.Errorf("sales: clear lines: %w", err)
		}
		inserted, err := insertLines(ctx, tx, id, lines)
		if err != nil {
			return err
		}
		subtotal := 0.0
		for _, l := range inserted {
			subtotal += l.LineTotal
		}
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE sales SET customer_id = NULLIF($2, 0), subtotal = $3,
				total = GREATEST($3 - discount, 0), updated_at = NOW()
			WHERE id = $1
			RETURNING %s`, saleColumns), id, customerID, subtotal)
		updated, err = scanSale(row)
		if err != nil {
			return err
		}
		updated.Lines = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) SetDiscount(ctx context.Context, id int64, discount float64) (*Sale, error) {
	var updated *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != StatusOpen {
			return ErrSaleNotOpen
		}
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE sales SET discount = $2, total = GREATEST(subtotal - $2, 0), updated_at = NOW()
			WHERE id = $1
			RETURNING %s`, saleColumns), id, discount)
		updated, err = scanSale(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Finalize closes the sale: each line locks its drug row, decrements
// stock and leaves a movement ledger entry. Any line that would drive
// stock negative aborts the whole transaction.
func (r *Repository) Finalize(ctx context.Context, id int64, paymentMethod string) (*Sale, error) {
	var finalized *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != StatusOpen {
			return ErrSaleNotOpen
		}
		lines, err := r.lines(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return errors.New("sales: cannot finalize an empty sale")
		}
		var cashierID int64
		if err := tx.QueryRow(ctx, "SELECT cashier_id FROM sales WHERE id = $1", id).Scan(&cashierID); err != nil {
			return fmt.Errorf("sales: load cashier: %w", err)
		}
		for _, line := range lines {
			if err := moveStock(ctx, tx, line.DrugID, -line.Qty, "sale", cashierID,
				fmt.Sprintf("sale %d", id)); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE sales SET status = $2, payment_method = $3,
				finalized_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING %s`, saleColumns), id, StatusFinalized, paymentMethod)
		finalized, err = scanSale(row)
		if err != nil {
			return err
		}
		finalized.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// Reverse voids or refunds a finalized sale, restoring the stock each
// line consumed.
func (r *Repository) Reverse(ctx context.Context, id int64, to Status, actorID int64) (*Sale, error) {
	if to != StatusVoided && to != StatusRefunded {
		return nil, fmt.Errorf("sales: invalid reversal status %q", to)
	}
	var reversed *Sale
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != StatusFinalized {
			return ErrSaleNotFinalized
		}
		lines, err := r.lines(ctx, tx, id)
		if err != nil {
			return err
		}
		movementType := "void"
		if to == StatusRefunded {
			movementType = "refund"
		}
		for _, line := range lines {
			if err := moveStock(ctx, tx, line.DrugID, line.Qty, movementType, actorID,
				fmt.Sprintf("%s sale %d", movementType, id)); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE sales SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING %s`, saleColumns), id, to)
		reversed, err = scanSale(row)
		if err != nil {
			return err
		}
		reversed.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversed, nil
}

// Delete removes an open sale and its lines.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != StatusOpen {
			return ErrSaleNotOpen
		}
		if _, err := tx.Exec(ctx, "DELETE FROM sale_lines WHERE sale_id = $1", id); err != nil {
			return fmt.Errorf("sales: delete lines: %w", err)
		}
		_, err = tx.Exec(ctx, "DELETE FROM sales WHERE id = $1", id)
		return err
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) lines(ctx context.Context, q querier, saleID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, drug_id, name, qty, unit_price, line_total
		FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("sales: lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SaleID, &l.DrugID, &l.Name, &l.Qty,
			&l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, saleID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		row := tx.QueryRow(ctx, `
			INSERT INTO sale_lines (sale_id, drug_id, name, qty, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, sale_id, drug_id, name, qty, unit_price, line_total`,
			saleID, line.DrugID, line.Name, line.Qty, line.UnitPrice, line.LineTotal)
		var l Line
		if err := row.Scan(&l.ID, &l.SaleID, &l.DrugID, &l.Name, &l.Qty,
			&l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("sales: insert line: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func lockStatus(ctx context.Context, tx pgx.Tx, saleID int64) (Status, error) {
	var status Status
	err := tx.QueryRow(ctx, "SELECT status FROM sales WHERE id = $1 FOR UPDATE", saleID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sales: lock sale: %w", err)
	}
	return status, nil
}

func moveStock(ctx context.Context, tx pgx.Tx, drugID int64, qty float64, movementType string, actorID int64, note string) error {
	var stock float64
	err := tx.QueryRow(ctx, "SELECT stock FROM drugs WHERE id = $1 FOR UPDATE", drugID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sales: lock drug %d: %w", drugID, err)
	}
	balance := stock + qty
	if balance < 0 {
		return shared.ErrInsufficientStock
	}
	if _, err := tx.Exec(ctx,
		"UPDATE drugs SET stock = $2, updated_at = NOW() WHERE id = $1", drugID, balance); err != nil {
		return fmt.Errorf("sales: update stock: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (drug_id, type, qty, balance, note, actor_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		drugID, movementType, qty, balance, note, actorID)
	if err != nil {
		return fmt.Errorf("sales: record movement: %w", err)
	}
	return nil
}

func scanSale(row pgx.Row) (*Sale, error) {
	var (
		s           Sale
		finalizedAt *time.Time
	)
	err := row.Scan(&s.ID, &s.Code, &s.PharmacyID, &s.BranchID, &s.CashierID,
		&s.CustomerID, &s.Status, &s.Subtotal, &s.Discount, &s.Total,
		&s.PaymentMethod, &s.CreatedAt, &s.UpdatedAt, &finalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sales: scan: %w", err)
	}
	s.FinalizedAt = finalizedAt
	return &s, nil
}
