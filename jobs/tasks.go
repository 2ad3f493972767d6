package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/aquabill/aquabill-web/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardRefresh re-populates the cached dashboard aggregates.
	TaskDashboardRefresh = "dashboard:refresh"
)

// NewDashboardRefreshTask constructs an Asynq task. The task carries no
// payload; a refresh always rebuilds the full cache.
func NewDashboardRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardRefresh, nil)
}

// Refresher is the slice of the dashboard service the worker needs.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// DashboardRefreshJob keeps the dashboard cache warm so the landing page
// stays fast even when the billing service is slow.
type DashboardRefreshJob struct {
	Service Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskDashboardRefresh tasks.
func (j *DashboardRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskDashboardRefresh)
	if err := tracker.End(j.Service.Refresh(ctx)); err != nil {
		j.logger().Warn("dashboard refresh failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("dashboard cache refreshed")
	return nil
}

func (j *DashboardRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardRefresh))
	}
	return slog.Default().With(slog.String("job", TaskDashboardRefresh))
}
