package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
	"github.com/medscan-app/medscan/internal/provider"
	"github.com/medscan-app/medscan/internal/store"
	"github.com/medscan-app/medscan/internal/template"
)

// Route replays one deferred provider call and merges the result into
// the stored insight. It satisfies the queue's drain router contract;
// a returned error marks the job failed.
func (o *Orchestrator) Route(ctx context.Context, job *entity.OfflineCaptureJob) error {
	var payload entity.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return common.NewAppError("JOB_PAYLOAD", "undecodable job payload", err)
	}

	ins, err := o.store.GetInsight(ctx, payload.InsightID)
	if err != nil {
		return common.WrapError(err, "load insight for replay")
	}

	switch job.Type {
	case constants.JobTypeCloudOCR:
		if o.ocr == nil {
			return common.NewAppError("JOB_ROUTE", "no cloud OCR provider configured", common.ErrInvalidInput)
		}
		res, err := o.ocr.RecognizeDocument(ctx, provider.OCRRequest{
			ImageData: payload.ImageData,
			Language:  payload.Language,
		})
		if err != nil {
			return err
		}
		ins.CloudOCR = res
		// better text may change the structured extraction
		ins.Template = o.engine.Analyze(ins.DocumentType, template.Input{
			Text:     res.Text,
			Tables:   res.Tables,
			Entities: analyzerEntities(ins),
		})

	case constants.JobTypeInsight, constants.JobTypeCompliance:
		analyzer := o.insight
		if job.Type == constants.JobTypeCompliance {
			analyzer = o.compliance
		}
		if analyzer == nil {
			return common.NewAppError("JOB_ROUTE", "no analyzer configured for job type", common.ErrInvalidInput)
		}
		text := payload.Text
		if ins.CloudOCR != nil && ins.CloudOCR.Text != "" {
			text = ins.CloudOCR.Text
		}
		res, err := analyzer.Analyze(ctx, provider.VisionRequest{
			ImageData:    payload.ImageData,
			Text:         text,
			DocumentType: payload.DocumentType,
			Language:     payload.Language,
		})
		if err != nil {
			return err
		}
		if job.Type == constants.JobTypeCompliance {
			ins.Compliance = res
		} else {
			ins.Insight = res
		}

	default:
		return common.NewAppError("JOB_ROUTE", "unknown job type "+string(job.Type), common.ErrInvalidInput)
	}

	reaggregate(ins)
	ins.DeferredCloudAnalysis = o.hasOtherPending(ctx, job)

	if err := o.store.SaveInsight(ctx, ins); err != nil {
		return common.WrapError(err, "save replayed insight")
	}
	o.emitAudit(ctx, entity.AuditEvent{
		DocumentID: job.DocumentID,
		AccessType: "insight_replayed",
		Metadata:   map[string]string{"job_type": string(job.Type)},
		OccurredAt: time.Now().UTC(),
	})
	o.logger.Info("pipeline.replay.ok",
		"document_id", job.DocumentID, "job_type", string(job.Type))
	return nil
}

// hasOtherPending reports whether any other deferred job still targets
// the same document.
func (o *Orchestrator) hasOtherPending(ctx context.Context, job *entity.OfflineCaptureJob) bool {
	jobs, err := o.store.ListJobs(ctx, store.JobFilter{Status: constants.JobStatusPending})
	if err != nil {
		return true
	}
	for _, other := range jobs {
		if other.ID != job.ID && other.DocumentID == job.DocumentID {
			return true
		}
	}
	return false
}
