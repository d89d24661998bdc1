package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
)

// sqlStore backs Store with database/sql. Row payloads are stored as
// JSON documents; the filterable columns are denormalized alongside.
type sqlStore struct {
	db      *sql.DB
	dialect string // "sqlite" | "postgres"
	logger  *slog.Logger
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS insights (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	document_type TEXT NOT NULL,
	deferred      BOOLEAN NOT NULL,
	payload       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS capture_jobs (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	job_type      TEXT NOT NULL,
	status        TEXT NOT NULL,
	priority      INTEGER NOT NULL,
	retry_count   INTEGER NOT NULL,
	last_retry_at TIMESTAMP,
	error_message TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_jobs_status ON capture_jobs (status, priority);
`

func newSQLStore(db *sql.DB, dialect string, logger *slog.Logger) *sqlStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlStore{db: db, dialect: dialect, logger: logger}
}

// EnsureSchema creates the tables if they do not exist. Idempotent.
func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return common.NewAppError("STORE_SCHEMA", "ensure schema", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) SaveInsight(ctx context.Context, in *entity.CapturedInsight) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return common.NewAppError("STORE_ENCODE", "encode insight", err)
	}
	q := s.rebind(`INSERT INTO insights (id, document_id, document_type, deferred, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, deferred = excluded.deferred`)
	_, err = s.db.ExecContext(ctx, q,
		in.ID.String(), in.DocumentID.String(), string(in.DocumentType),
		in.DeferredCloudAnalysis, string(payload), in.CreatedAt.UTC())
	if err != nil {
		s.logger.Error("store.insight.save_failed", "insight_id", in.ID, "error", err)
		return fmt.Errorf("%w: save insight: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) GetInsight(ctx context.Context, id uuid.UUID) (*entity.CapturedInsight, error) {
	q := s.rebind(`SELECT payload FROM insights WHERE id = ?`)
	var payload string
	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get insight: %v", common.ErrPersistence, err)
	}
	var in entity.CapturedInsight
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return nil, common.NewAppError("STORE_DECODE", "decode insight", err)
	}
	return &in, nil
}

func (s *sqlStore) ListInsights(ctx context.Context, f InsightFilter) ([]*entity.CapturedInsight, error) {
	q := `SELECT payload FROM insights`
	var conds []string
	var args []any
	if f.DocumentType != "" {
		conds = append(conds, "document_type = ?")
		args = append(args, string(f.DocumentType))
	}
	if f.Deferred != nil {
		conds = append(conds, "deferred = ?")
		args = append(args, *f.Deferred)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list insights: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*entity.CapturedInsight
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: scan insight: %v", common.ErrPersistence, err)
		}
		var in entity.CapturedInsight
		if err := json.Unmarshal([]byte(payload), &in); err != nil {
			return nil, common.NewAppError("STORE_DECODE", "decode insight", err)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeleteInsight(ctx context.Context, id uuid.UUID) error {
	q := s.rebind(`DELETE FROM insights WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, q, id.String()); err != nil {
		return fmt.Errorf("%w: delete insight: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) SaveJob(ctx context.Context, job *entity.OfflineCaptureJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return common.NewAppError("STORE_ENCODE", "encode job", err)
	}
	var lastRetry any
	if job.LastRetryAt != nil {
		lastRetry = job.LastRetryAt.UTC()
	}
	q := s.rebind(`INSERT INTO capture_jobs
		(id, document_id, job_type, status, priority, retry_count, last_retry_at, error_message, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			retry_count = excluded.retry_count,
			last_retry_at = excluded.last_retry_at,
			error_message = excluded.error_message,
			payload = excluded.payload`)
	_, err = s.db.ExecContext(ctx, q,
		job.ID.String(), job.DocumentID.String(), string(job.Type), string(job.Status),
		job.Priority, job.RetryCount, lastRetry, job.ErrorMessage, string(payload), job.CreatedAt.UTC())
	if err != nil {
		s.logger.Error("store.job.save_failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("%w: save job: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.OfflineCaptureJob, error) {
	q := s.rebind(`SELECT payload, status, retry_count, last_retry_at, error_message FROM capture_jobs WHERE id = ?`)
	var payload, status, errMsg string
	var retryCount int
	var lastRetry sql.NullTime
	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(&payload, &status, &retryCount, &lastRetry, &errMsg)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrPersistence, err)
	}
	job, err := decodeJob(payload, status, retryCount, lastRetry, errMsg)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *sqlStore) ListJobs(ctx context.Context, f JobFilter) ([]*entity.OfflineCaptureJob, error) {
	q := `SELECT payload, status, retry_count, last_retry_at, error_message FROM capture_jobs`
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "job_type = ?")
		args = append(args, string(f.Type))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY priority DESC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*entity.OfflineCaptureJob
	for rows.Next() {
		var payload, status, errMsg string
		var retryCount int
		var lastRetry sql.NullTime
		if err := rows.Scan(&payload, &status, &retryCount, &lastRetry, &errMsg); err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrPersistence, err)
		}
		job, err := decodeJob(payload, status, retryCount, lastRetry, errMsg)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	q := s.rebind(`DELETE FROM capture_jobs WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, q, id.String()); err != nil {
		return fmt.Errorf("%w: delete job: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// decodeJob rebuilds a job from its JSON payload, preferring the
// denormalized mutable columns over the snapshot in the payload.
func decodeJob(payload, status string, retryCount int, lastRetry sql.NullTime, errMsg string) (*entity.OfflineCaptureJob, error) {
	var job entity.OfflineCaptureJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, common.NewAppError("STORE_DECODE", "decode job", err)
	}
	job.Status = constants.JobStatus(status)
	job.RetryCount = retryCount
	job.ErrorMessage = errMsg
	if lastRetry.Valid {
		t := lastRetry.Time
		job.LastRetryAt = &t
	}
	return &job, nil
}
