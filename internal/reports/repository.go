package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines the aggregation queries.
type RepositoryPort interface {
	SalesSummary(ctx context.Context, pharmacyID int64, from, to time.Time) (SalesSummary, error)
	TopDrugs(ctx context.Context, pharmacyID int64, from, to time.Time, limit int) ([]DrugRank, error)
	InventoryValuation(ctx context.Context, pharmacyID int64) (InventoryValuation, error)
}

// Repository runs the aggregations against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) SalesSummary(ctx context.Context, pharmacyID int64, from, to time.Time) (SalesSummary, error) {
	summary := SalesSummary{PharmacyID: pharmacyID, From: from, To: to}
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), COALESCE(SUM(discount), 0), COUNT(*)
		FROM sales
		WHERE pharmacy_id = $1 AND status = 'finalized'
			AND finalized_at >= $2 AND finalized_at < $3`,
		pharmacyID, from, to).Scan(&summary.TotalSales, &summary.TotalDiscount, &summary.TransactionCount)
	if err != nil {
		return SalesSummary{}, fmt.Errorf("reports: sales summary: %w", err)
	}
	if summary.TransactionCount > 0 {
		summary.AverageTicket = summary.TotalSales / float64(summary.TransactionCount)
	}
	return summary, nil
}

func (r *Repository) TopDrugs(ctx context.Context, pharmacyID int64, from, to time.Time, limit int) ([]DrugRank, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT l.drug_id, l.name, SUM(l.qty), SUM(l.line_total)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.pharmacy_id = $1 AND s.status = 'finalized'
			AND s.finalized_at >= $2 AND s.finalized_at < $3
		GROUP BY l.drug_id, l.name
		ORDER BY SUM(l.line_total) DESC
		LIMIT $4`, pharmacyID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("reports: top drugs: %w", err)
	}
	defer rows.Close()

	var out []DrugRank
	for rows.Next() {
		var dr DrugRank
		if err := rows.Scan(&dr.DrugID, &dr.Name, &dr.QtySold, &dr.Revenue); err != nil {
			return nil, err
		}
		out = append(out, dr)
	}
	return out, rows.Err()
}

func (r *Repository) InventoryValuation(ctx context.Context, pharmacyID int64) (InventoryValuation, error) {
	valuation := InventoryValuation{PharmacyID: pharmacyID}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stock), 0),
			COALESCE(SUM(stock * cost), 0), COALESCE(SUM(stock * price), 0),
			COUNT(*) FILTER (WHERE stock <= reorder_level)
		FROM drugs
		WHERE pharmacy_id = $1 AND is_active`,
		pharmacyID).Scan(&valuation.DrugCount, &valuation.TotalUnits,
		&valuation.CostValue, &valuation.RetailValue, &valuation.LowStockCount)
	if err != nil {
		return InventoryValuation{}, fmt.Errorf("reports: inventory valuation: %w", err)
	}
	return valuation, nil
}
