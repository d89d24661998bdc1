// Package store provides the injected persistence boundary for insights
// and the offline job queue. Backends are swappable; an in-memory
// implementation exists for tests and for queue degradation.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Status constants.JobStatus
	Type   constants.JobType
}

// InsightFilter narrows ListInsights. Zero values match everything.
type InsightFilter struct {
	DocumentType constants.DocumentType
	Deferred     *bool
}

// Store is the persistence contract the pipeline depends on.
type Store interface {
	SaveInsight(ctx context.Context, in *entity.CapturedInsight) error
	GetInsight(ctx context.Context, id uuid.UUID) (*entity.CapturedInsight, error)
	ListInsights(ctx context.Context, f InsightFilter) ([]*entity.CapturedInsight, error)
	DeleteInsight(ctx context.Context, id uuid.UUID) error

	SaveJob(ctx context.Context, job *entity.OfflineCaptureJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*entity.OfflineCaptureJob, error)
	ListJobs(ctx context.Context, f JobFilter) ([]*entity.OfflineCaptureJob, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error

	Close() error
}
