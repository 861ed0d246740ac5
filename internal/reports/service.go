package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/apothek-io/apothek/internal/authz"
)

// Service resolves reports through the cache.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	printer *message.Printer
}

// NewService builds a Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, printer: message.NewPrinter(language.English)}
}

// SalesSummary resolves the aggregate for the actor's pharmacy. System
// scope may target any pharmacy via pharmacyID.
func (s *Service) SalesSummary(ctx context.Context, actor authz.Principal, pharmacyID int64, from, to time.Time) (SalesSummary, error) {
	pharmacyID, err := s.resolvePharmacy(actor, pharmacyID)
	if err != nil {
		return SalesSummary{}, err
	}
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	key, err := s.cache.Key(ctx, "reports", "sales",
		strconv.FormatInt(pharmacyID, 10), from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return SalesSummary{}, err
	}
	var summary SalesSummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		sum, err := s.repo.SalesSummary(ctx, pharmacyID, from, to)
		if err != nil {
			return nil, err
		}
		sum.TopDrugs, err = s.repo.TopDrugs(ctx, pharmacyID, from, to, 10)
		if err != nil {
			return nil, err
		}
		return sum, nil
	})
	return summary, err
}

// InventoryValuation prices current stock for the actor's pharmacy.
func (s *Service) InventoryValuation(ctx context.Context, actor authz.Principal, pharmacyID int64) (InventoryValuation, error) {
	pharmacyID, err := s.resolvePharmacy(actor, pharmacyID)
	if err != nil {
		return InventoryValuation{}, err
	}
	key, err := s.cache.Key(ctx, "reports", "valuation", strconv.FormatInt(pharmacyID, 10))
	if err != nil {
		return InventoryValuation{}, err
	}
	var valuation InventoryValuation
	err = s.cache.FetchJSON(ctx, key, &valuation, func(ctx context.Context) (any, error) {
		return s.repo.InventoryValuation(ctx, pharmacyID)
	})
	return valuation, err
}

// ExportSalesCSV writes the sales summary as CSV with formatted
// amounts.
func (s *Service) ExportSalesCSV(ctx context.Context, actor authz.Principal, pharmacyID int64, from, to time.Time, w io.Writer) error {
	summary, err := s.SalesSummary(ctx, actor, pharmacyID, from, to)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	records := [][]string{
		{"pharmacy_id", "from", "to", "total_sales", "total_discount", "transactions", "average_ticket"},
		{
			strconv.FormatInt(summary.PharmacyID, 10),
			summary.From.Format("2006-01-02"),
			summary.To.Format("2006-01-02"),
			s.money(summary.TotalSales),
			s.money(summary.TotalDiscount),
			strconv.Itoa(summary.TransactionCount),
			s.money(summary.AverageTicket),
		},
		{},
		{"drug_id", "name", "qty_sold", "revenue"},
	}
	for _, dr := range summary.TopDrugs {
		records = append(records, []string{
			strconv.FormatInt(dr.DrugID, 10),
			dr.Name,
			strconv.FormatFloat(dr.QtySold, 'f', -1, 64),
			s.money(dr.Revenue),
		})
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("reports: write csv: %w", err)
	}
	return nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) money(v float64) string {
	return s.printer.Sprintf("%.2f", v)
}

func (s *Service) resolvePharmacy(actor authz.Principal, requested int64) (int64, error) {
	if authz.ScopeOf(actor.Role()) == authz.ScopeSystem {
		if requested == 0 {
			return 0, fmt.Errorf("reports: pharmacy_id required for system scope")
		}
		return requested, nil
	}
	if requested != 0 && requested != actor.PharmacyID() {
		if err := authz.ValidatePharmacyAccess(actor, requested, "view report"); err != nil {
			return 0, err
		}
		return requested, nil
	}
	return actor.PharmacyID(), nil
}
