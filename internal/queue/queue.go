// Package queue is the durable store of deferred provider calls,
// replayed when connectivity returns. All mutations happen under
// single-writer discipline; reads may be concurrent.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
	"github.com/medscan-app/medscan/internal/store"
)

type Queue struct {
	store  store.Store
	logger *slog.Logger

	// single writer; PendingJobs reads concurrently through the store
	writeMu sync.Mutex

	// degraded retention for jobs the store could not persist; lives
	// only for the current process lifetime
	memMu  sync.RWMutex
	memory map[uuid.UUID]*entity.OfflineCaptureJob
}

func New(st store.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		store:  st,
		logger: logger,
		memory: make(map[uuid.UUID]*entity.OfflineCaptureJob),
	}
}

// Enqueue appends a job and durably persists it immediately. A
// persistence failure degrades to best-effort in-memory retention
// rather than failing the pipeline.
func (q *Queue) Enqueue(ctx context.Context, job *entity.OfflineCaptureJob) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		q.logger.Warn("queue.enqueue.store_failed",
			"job_id", job.ID, "job_type", string(job.Type), "error", err)
		q.memMu.Lock()
		cp := *job
		q.memory[job.ID] = &cp
		q.memMu.Unlock()
		return nil
	}

	q.logger.Info("queue.enqueued",
		"job_id", job.ID,
		"job_type", string(job.Type),
		"priority", job.Priority,
	)
	return nil
}

// PendingJobs returns pending jobs ordered by descending priority.
func (q *Queue) PendingJobs(ctx context.Context) ([]*entity.OfflineCaptureJob, error) {
	jobs, err := q.store.ListJobs(ctx, store.JobFilter{Status: constants.JobStatusPending})
	if err != nil {
		q.logger.Warn("queue.pending.store_failed", "error", err)
		jobs = nil
	}

	q.memMu.RLock()
	for _, job := range q.memory {
		if job.Status == constants.JobStatusPending {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	q.memMu.RUnlock()

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// MarkCompleted finalizes a job. Terminal until an explicit re-enqueue.
func (q *Queue) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return q.transition(ctx, id, func(job *entity.OfflineCaptureJob) {
		job.Status = constants.JobStatusCompleted
		job.ErrorMessage = ""
	})
}

// MarkFailed records a failed attempt: retry count and timestamp are
// bumped but the job is not auto-rescheduled.
func (q *Queue) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return q.transition(ctx, id, func(job *entity.OfflineCaptureJob) {
		job.Status = constants.JobStatusFailed
		job.RetryCount++
		now := time.Now().UTC()
		job.LastRetryAt = &now
		if cause != nil {
			job.ErrorMessage = cause.Error()
		}
	})
}

// markProcessing flags a job as in flight during a drain.
func (q *Queue) markProcessing(ctx context.Context, id uuid.UUID) error {
	return q.transition(ctx, id, func(job *entity.OfflineCaptureJob) {
		job.Status = constants.JobStatusProcessing
	})
}

func (q *Queue) transition(ctx context.Context, id uuid.UUID, mutate func(*entity.OfflineCaptureJob)) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.memMu.Lock()
	if job, ok := q.memory[id]; ok {
		mutate(job)
		q.memMu.Unlock()
		return nil
	}
	q.memMu.Unlock()

	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return common.WrapError(err, "load job")
	}
	mutate(job)
	if err := q.store.SaveJob(ctx, job); err != nil {
		return common.WrapError(err, "save job")
	}
	q.logger.Info("queue.transition", "job_id", id, "status", string(job.Status))
	return nil
}
