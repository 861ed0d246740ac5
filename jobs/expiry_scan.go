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

// ExpiryScanJob flags batches approaching their expiry date. Each run
// replaces the previous near_expiry alerts so the table reflects the
// latest scan.
type ExpiryScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Window  time.Duration
	clock   func() time.Time
}

// NewExpiryScanJob wires dependencies for the expiry scan handler.
func NewExpiryScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, window time.Duration) *ExpiryScanJob {
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	return &ExpiryScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		Window:  window,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes expiry scan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.clock().Add(j.Window)
	if _, err := j.Pool.Exec(ctx, "DELETE FROM stock_alerts WHERE kind = 'near_expiry'"); err != nil {
		resultErr = fmt.Errorf("expiry scan: clear alerts: %w", err)
		return resultErr
	}
	rows, err := j.Pool.Query(ctx, `
		INSERT INTO stock_alerts (pharmacy_id, drug_id, kind, detail, created_at)
		SELECT d.pharmacy_id, d.id, 'near_expiry',
			'batch ' || b.batch_number || ' expires ' || to_char(b.expires_at, 'YYYY-MM-DD'),
			NOW()
		FROM drug_batches b
		JOIN drugs d ON d.id = b.drug_id
		WHERE d.is_active AND b.quantity > 0 AND b.expires_at <= $1
		RETURNING pharmacy_id`, cutoff)
	if err != nil {
		resultErr = fmt.Errorf("expiry scan: raise alerts: %w", err)
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
		j.Metrics.AddAlerts("near_expiry", pharmacyID, count)
		total += count
	}
	j.logger().Info("expiry scan finished",
		slog.Int("alerts", total),
		slog.Int("pharmacies", len(perPharmacy)),
		slog.Time("cutoff", cutoff))
	return resultErr
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
