package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
)

// CaptureMetadata records how a frame was captured.
type CaptureMetadata struct {
	QualityScore         float64                `json:"quality_score"`
	QualityLevel         constants.QualityLevel `json:"quality_level"`
	PerspectiveCorrected bool                   `json:"perspective_corrected"`
	RetakeRecommended    bool                   `json:"retake_recommended"`
	CapturedAt           time.Time              `json:"captured_at"`
}

// CapturedDocument is the immutable product of a capture session.
// Only the processing stage marker mutates after creation.
type CapturedDocument struct {
	ID           uuid.UUID                 `json:"id"`
	BatchID      *uuid.UUID                `json:"batch_id,omitempty"`
	ImageData    []byte                    `json:"-"`
	DocumentType constants.DocumentType    `json:"document_type"`
	Language     string                    `json:"language"`
	// ShareConsent is the user's explicit opt-in to sending
	// unredacted text to cloud providers.
	ShareConsent bool                      `json:"share_consent"`
	PageCount    int                       `json:"page_count"`
	Metadata     CaptureMetadata           `json:"metadata"`
	Stage        constants.ProcessingStage `json:"stage"`
}

// AdvanceStage moves the processing marker forward. Illegal transitions
// are rejected so a completed or failed document stays terminal.
func (d *CapturedDocument) AdvanceStage(to constants.ProcessingStage) bool {
	if !constants.CanTransition(d.Stage, to) {
		return false
	}
	d.Stage = to
	return true
}

// DocumentBatch groups pages captured under one batch identity.
type DocumentBatch struct {
	ID        uuid.UUID          `json:"id"`
	Pages     []CapturedDocument `json:"pages"`
	StartedAt time.Time          `json:"started_at"`
	Finalized bool               `json:"finalized"`
}
