package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/auth"
	jobmetrics "github.com/nusapos/nusapos/internal/jobs"
	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/sales"
	"github.com/nusapos/nusapos/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskSessionSweep removes expired login sessions.
	TaskSessionSweep = "sessions:sweep"
	// TaskCatalogSync reconciles the permission catalog with the database.
	TaskCatalogSync = "permissions:catalog_sync"
	// TaskSalesRollup computes the daily sales summary per outlet.
	TaskSalesRollup = "sales:rollup"
	// TaskIdempotencyCleanup drops aged idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// SalesRollupPayload selects the day and outlet to roll up. An empty outlet
// rolls up all outlets; a zero date means yesterday.
type SalesRollupPayload struct {
	OutletCode string `json:"outlet_code,omitempty"`
	Date       string `json:"date,omitempty"`
}

// NewSalesRollupTask constructs a sales rollup task.
func NewSalesRollupTask(payload SalesRollupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalesRollup, data), nil
}

// NewSessionSweepTask constructs a session sweep task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}

// NewCatalogSyncTask constructs a permission catalog sync task.
func NewCatalogSyncTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogSync, nil)
}

// NewIdempotencyCleanupTask constructs an idempotency cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// Tasks bundles the services the worker handlers depend on.
type Tasks struct {
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Auth        *auth.Service
	Catalog     *rbac.CatalogSync
	Sales       *sales.Service
	Idempotency *shared.IdempotencyStore
}

// HandleSessionSweep purges expired sessions from the database.
func (t *Tasks) HandleSessionSweep(ctx context.Context, _ *asynq.Task) error {
	tr := t.Metrics.Track(TaskSessionSweep)
	removed, err := t.Auth.PurgeExpiredSessions(ctx, time.Now())
	if err != nil {
		return tr.End(err)
	}
	t.Logger.Info("session sweep", slog.Int64("removed", removed))
	return tr.End(nil)
}

// HandleCatalogSync inserts permission catalog rows missing from the database.
func (t *Tasks) HandleCatalogSync(ctx context.Context, _ *asynq.Task) error {
	tr := t.Metrics.Track(TaskCatalogSync)
	inserted, err := t.Catalog.Run(ctx)
	if err != nil {
		return tr.End(err)
	}
	if inserted > 0 {
		t.Logger.Info("permission catalog sync", slog.Int("inserted", inserted))
	}
	return tr.End(nil)
}

// HandleSalesRollup computes and logs the summary for the requested day.
func (t *Tasks) HandleSalesRollup(ctx context.Context, task *asynq.Task) error {
	tr := t.Metrics.Track(TaskSalesRollup)
	var payload SalesRollupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return tr.End(asynq.SkipRetry)
		}
	}

	day := time.Now().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return tr.End(asynq.SkipRetry)
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	sum, err := t.Sales.Summarize(ctx, sales.SaleFilter{
		OutletCode: payload.OutletCode,
		From:       from,
		To:         from.AddDate(0, 0, 1),
	})
	if err != nil {
		return tr.End(err)
	}
	t.Logger.Info("sales rollup",
		slog.String("date", from.Format("2006-01-02")),
		slog.String("outlet", payload.OutletCode),
		slog.Int64("count", sum.Count),
		slog.Float64("net_total", sum.NetTotal),
	)
	return tr.End(nil)
}

// HandleIdempotencyCleanup drops aged idempotency keys.
func (t *Tasks) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	tr := t.Metrics.Track(TaskIdempotencyCleanup)
	removed, err := t.Idempotency.Cleanup(ctx)
	if err != nil {
		return tr.End(err)
	}
	if removed > 0 {
		t.Logger.Info("idempotency cleanup", slog.Int64("removed", removed))
	}
	return tr.End(nil)
}
