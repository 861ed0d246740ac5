package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/apothek-io/apothek/internal/jobs"
)

// LowStockScanJob flags drugs at or below their reorder level.
type LowStockScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob wires dependencies for the low-stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if _, err := j.Pool.Exec(ctx, "DELETE FROM stock_alerts WHERE kind = 'low_stock'"); err != nil {
		resultErr = fmt.Errorf("low stock scan: clear alerts: %w", err)
		return resultErr
	}
	rows, err := j.Pool.Query(ctx, `
		INSERT INTO stock_alerts (pharmacy_id, drug_id, kind, detail, created_at)
		SELECT pharmacy_id, id, 'low_stock',
			'stock ' || stock || ' at or below reorder level ' || reorder_level,
			NOW()
		FROM drugs
		WHERE is_active AND stock <= reorder_level
		RETURNING pharmacy_id`)
	if err != nil {
		resultErr = fmt.Errorf("low stock scan: raise alerts: %w", err)
		return resultErr
	}
	defer rows.Close()

	perPharmacy := map[int64]int{}
	for rows.Next() {
		var pharmacyID int64
		if err := rows.Scan(&pharmacyID); err != nil {
			resultErr = err
			return resultErr
		}
		perPharmacy[pharmacyID]++
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return resultErr
	}

	total := 0
	for pharmacyID, count := range perPharmacy {
		j.Metrics.AddAlerts("low_stock", pharmacyID, count)
		total += count
	}
	j.logger().Info("low stock scan finished",
		slog.Int("alerts", total),
		slog.Int("pharmacies", len(perPharmacy)))
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
