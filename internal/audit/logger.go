package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder is the write-side port modules depend on.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// WithLogging wraps a Recorder so persistence failures surface in the
// application log. Audit writes run best effort on the request path;
// without this a broken trail would go unnoticed.
func WithLogging(next Recorder, logger *slog.Logger) Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggedRecorder{next: next, logger: logger}
}

type loggedRecorder struct {
	next   Recorder
	logger *slog.Logger
}

func (r *loggedRecorder) Record(ctx context.Context, entry Entry) error {
	err := r.next.Record(ctx, entry)
	if err != nil {
		r.logger.Error("audit record failed",
			slog.String("action", entry.Action),
			slog.String("entity", entry.Entity),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err))
	}
	return err
}

// Logger writes entries into audit_logs.
type Logger struct {
	pool *pgxpool.Pool
}

// NewLogger returns a new Logger.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool}
}

// Record persists the entry. Action, entity and entity ID are
// mandatory; the timestamp defaults to NOW() server side.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if l == nil {
		return errors.New("audit: logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, pharmacy_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.PharmacyID, entry.Action, entry.Entity, entry.EntityID, metaJSON, entry.At)
	return err
}
