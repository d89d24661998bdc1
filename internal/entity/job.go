package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
)

// OfflineCaptureJob is a deferred cloud provider call, persisted so it
// survives process restarts. Terminal statuses are final until an
// explicit queue drain re-attempts pending jobs.
type OfflineCaptureJob struct {
	ID           uuid.UUID           `json:"id"`
	DocumentID   uuid.UUID           `json:"document_id"`
	Type         constants.JobType   `json:"type"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
	Priority     int                 `json:"priority"`
	RetryCount   int                 `json:"retry_count"`
	LastRetryAt  *time.Time          `json:"last_retry_at,omitempty"`
	Status       constants.JobStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// JobPayload carries the data a deferred provider call needs to replay.
// InsightID points at the stored insight the replayed result merges into.
type JobPayload struct {
	InsightID    uuid.UUID `json:"insight_id"`
	Text         string    `json:"text,omitempty"`
	ImageData    []byte    `json:"image_data,omitempty"`
	DocumentType string    `json:"document_type,omitempty"`
	Language     string    `json:"language,omitempty"`
}
