package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/apothek-io/apothek/internal/authz"
	jobmetrics "github.com/apothek-io/apothek/internal/jobs"
	"github.com/apothek-io/apothek/internal/reports"
)

// ReportWarmupJob pre-populates the report cache for active
// pharmacies so the first dashboard request after invalidation does
// not pay the aggregation cost.
type ReportWarmupJob struct {
	Reports *reports.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reportsSvc *reports.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports: reportsSvc,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil || j.Pool == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	pharmacies, err := j.targetPharmacies(ctx, payload.PharmacyID)
	if err != nil {
		resultErr = err
		return resultErr
	}

	// Runs with system scope; warmup is not tied to any user.
	system := authz.Subject{UserRole: authz.RoleSuperAdmin}
	now := j.clock()
	from := now.AddDate(0, -1, 0)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, pharmacyID := range pharmacies {
		pharmacyID := pharmacyID // per-iteration copy; module builds with a pre-1.22 go directive
		group.Go(func() error {
			if _, err := j.Reports.SalesSummary(groupCtx, system, pharmacyID, from, now); err != nil {
				j.logger().Error("warm sales summary", slog.Int64("pharmacy_id", pharmacyID), slog.Any("error", err))
				return err
			}
			if _, err := j.Reports.InventoryValuation(groupCtx, system, pharmacyID); err != nil {
				j.logger().Error("warm inventory valuation", slog.Int64("pharmacy_id", pharmacyID), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	resultErr = group.Wait()
	if resultErr == nil {
		j.logger().Info("report warmup finished", slog.Int("pharmacies", len(pharmacies)))
	}
	return resultErr
}

func (j *ReportWarmupJob) targetPharmacies(ctx context.Context, only int64) ([]int64, error) {
	if only != 0 {
		return []int64{only}, nil
	}
	rows, err := j.Pool.Query(ctx, "SELECT id FROM pharmacies WHERE is_active ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
