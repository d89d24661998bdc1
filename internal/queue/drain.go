package queue

import (
	"context"
	"log/slog"

	"github.com/medscan-app/medscan/internal/entity"
)

// Router replays one deferred job against its matching provider.
type Router interface {
	Route(ctx context.Context, job *entity.OfflineCaptureJob) error
}

// Drain re-attempts every pending job: route to the matching provider
// client and update status from the outcome. One job's failure never
// stops the drain.
func (q *Queue) Drain(ctx context.Context, router Router) (completed, failed int) {
	jobs, err := q.PendingJobs(ctx)
	if err != nil {
		q.logger.Error("queue.drain.list_failed", "error", err)
		return 0, 0
	}
	if len(jobs) == 0 {
		return 0, 0
	}
	q.logger.Info("queue.drain.start", "pending", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if err := q.markProcessing(ctx, job.ID); err != nil {
			q.logger.Warn("queue.drain.mark_processing_failed", "job_id", job.ID, "error", err)
		}
		if err := router.Route(ctx, job); err != nil {
			failed++
			q.logger.Warn("queue.drain.job_failed",
				"job_id", job.ID, "job_type", string(job.Type), "error", err)
			if merr := q.MarkFailed(ctx, job.ID, err); merr != nil {
				q.logger.Error("queue.drain.mark_failed_error", "job_id", job.ID, "error", merr)
			}
			continue
		}
		completed++
		if merr := q.MarkCompleted(ctx, job.ID); merr != nil {
			q.logger.Error("queue.drain.mark_completed_error", "job_id", job.ID, "error", merr)
		}
	}

	q.logger.Info("queue.drain.done", "completed", completed, "failed", failed)
	return completed, failed
}

// RunDrainLoop drains once per connectivity-restored signal until the
// context is cancelled.
func (q *Queue) RunDrainLoop(ctx context.Context, restored <-chan struct{}, router Router, logger *slog.Logger) {
	if logger == nil {
		logger = q.logger
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-restored:
			logger.Info("queue.drain.triggered")
			q.Drain(ctx, router)
		}
	}
}
