package reports

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/apothek-io/apothek/internal/authz"
)

type mockReportRepo struct {
	summary        SalesSummary
	summaryCalls   int
	lastPharmacy   int64
	topDrugs       []DrugRank
	valuation      InventoryValuation
	valuationCalls int
}

func (m *mockReportRepo) SalesSummary(ctx context.Context, pharmacyID int64, from, to time.Time) (SalesSummary, error) {
	m.summaryCalls++
	m.lastPharmacy = pharmacyID
	out := m.summary
	out.PharmacyID = pharmacyID
	out.From = from
	out.To = to
	return out, nil
}

func (m *mockReportRepo) TopDrugs(ctx context.Context, pharmacyID int64, from, to time.Time, limit int) ([]DrugRank, error) {
	return m.topDrugs, nil
}

func (m *mockReportRepo) InventoryValuation(ctx context.Context, pharmacyID int64) (InventoryValuation, error) {
	m.valuationCalls++
	return m.valuation, nil
}

func testCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
}

var reportAdmin = authz.Subject{UserID: 2, UserRole: authz.RoleAdmin, Pharmacy: 3}

func TestSalesSummaryIsCached(t *testing.T) {
	repo := &mockReportRepo{summary: SalesSummary{TotalSales: 1200, TransactionCount: 40}}
	svc := NewService(repo, testCache(t))
	ctx := context.Background()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	first, err := svc.SalesSummary(ctx, reportAdmin, 0, from, to)
	require.NoError(t, err)
	require.InDelta(t, 1200, first.TotalSales, 1e-9)
	// Non-system actors always report on their own pharmacy.
	require.EqualValues(t, 3, repo.lastPharmacy)

	second, err := svc.SalesSummary(ctx, reportAdmin, 0, from, to)
	require.NoError(t, err)
	require.Equal(t, first.TotalSales, second.TotalSales)
	require.Equal(t, 1, repo.summaryCalls)
}

func TestInvalidateOrphansCachedReports(t *testing.T) {
	repo := &mockReportRepo{summary: SalesSummary{TotalSales: 1200}}
	svc := NewService(repo, testCache(t))
	ctx := context.Background()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.SalesSummary(ctx, reportAdmin, 0, from, to)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.SalesSummary(ctx, reportAdmin, 0, from, to)
	require.NoError(t, err)
	require.Equal(t, 2, repo.summaryCalls)
}

func TestSystemScopeNeedsExplicitPharmacy(t *testing.T) {
	repo := &mockReportRepo{}
	svc := NewService(repo, NewCache(nil, 0))
	ctx := context.Background()
	root := authz.Subject{UserRole: authz.RoleSuperAdmin}

	_, err := svc.SalesSummary(ctx, root, 0, time.Time{}, time.Time{})
	require.Error(t, err)

	_, err = svc.SalesSummary(ctx, root, 9, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 9, repo.lastPharmacy)
}

func TestInventoryValuationCached(t *testing.T) {
	repo := &mockReportRepo{valuation: InventoryValuation{DrugCount: 12, LowStockCount: 3}}
	svc := NewService(repo, testCache(t))
	ctx := context.Background()

	first, err := svc.InventoryValuation(ctx, reportAdmin, 0)
	require.NoError(t, err)
	require.EqualValues(t, 12, first.DrugCount)

	_, err = svc.InventoryValuation(ctx, reportAdmin, 0)
	require.NoError(t, err)
	require.Equal(t, 1, repo.valuationCalls)
}

func TestExportSalesCSV(t *testing.T) {
	repo := &mockReportRepo{
		summary: SalesSummary{TotalSales: 1234.5, TotalDiscount: 34.5, TransactionCount: 10},
		topDrugs: []DrugRank{
			{DrugID: 1, Name: "Paracetamol 500mg", QtySold: 40, Revenue: 180},
		},
	}
	svc := NewService(repo, NewCache(nil, 0))

	var buf bytes.Buffer
	err := svc.ExportSalesCSV(context.Background(), reportAdmin, 0, time.Time{}, time.Time{}, &buf)
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.Contains(out, "1,234.50"))
	require.True(t, strings.Contains(out, "Paracetamol 500mg"))
}

func TestNilCachePassesThrough(t *testing.T) {
	cache := NewCache(nil, 0)
	ctx := context.Background()

	key, err := cache.Key(ctx, "reports", "sales")
	require.NoError(t, err)
	require.Equal(t, "reports:sales", key)

	var dest map[string]int
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, key, &dest, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &dest, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, 2, dest["n"])
}
