package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
)

// MemoryStore is the in-process Store used in tests and as the
// degradation target when the durable queue store fails.
type MemoryStore struct {
	mu       sync.RWMutex
	insights map[uuid.UUID]*entity.CapturedInsight
	jobs     map[uuid.UUID]*entity.OfflineCaptureJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		insights: make(map[uuid.UUID]*entity.CapturedInsight),
		jobs:     make(map[uuid.UUID]*entity.OfflineCaptureJob),
	}
}

func (m *MemoryStore) SaveInsight(_ context.Context, in *entity.CapturedInsight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *in
	m.insights[in.ID] = &cp
	return nil
}

func (m *MemoryStore) GetInsight(_ context.Context, id uuid.UUID) (*entity.CapturedInsight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.insights[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MemoryStore) ListInsights(_ context.Context, f InsightFilter) ([]*entity.CapturedInsight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.CapturedInsight
	for _, in := range m.insights {
		if f.DocumentType != "" && in.DocumentType != f.DocumentType {
			continue
		}
		if f.Deferred != nil && in.DeferredCloudAnalysis != *f.Deferred {
			continue
		}
		cp := *in
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteInsight(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.insights, id)
	return nil
}

func (m *MemoryStore) SaveJob(_ context.Context, job *entity.OfflineCaptureJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*entity.OfflineCaptureJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobs(_ context.Context, f JobFilter) ([]*entity.OfflineCaptureJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.OfflineCaptureJob
	for _, job := range m.jobs {
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		if f.Type != "" && job.Type != f.Type {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) DeleteJob(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
