// Package pipeline orchestrates a captured document through on-device
// recognition, cloud OCR, parallel vision analysis, template analysis
// and aggregation. Cloud failures never fail the run: unreachable
// providers are deferred onto the offline queue and the insight is
// produced from whatever completed.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
	"github.com/medscan-app/medscan/internal/provider"
	"github.com/medscan-app/medscan/internal/queue"
	"github.com/medscan-app/medscan/internal/store"
	"github.com/medscan-app/medscan/internal/template"
	"github.com/medscan-app/medscan/internal/vision"
)

// ProgressFunc receives stage-entry notifications during a run.
type ProgressFunc func(stage constants.ProcessingStage, fraction float64)

// Recognizer is the on-device recognition surface the pipeline needs.
// Satisfied by *vision.Processor.
type Recognizer interface {
	RecognizeText(ctx context.Context, imageData []byte, languageHints []string) (*entity.OnDeviceResult, error)
	DetectBarcodes(ctx context.Context, imageData []byte) ([]entity.BarcodeResult, error)
}

// Orchestrator runs the capture pipeline. Cloud providers and the
// connectivity checker are optional; a nil provider simply means that
// leg of the pipeline is skipped.
type Orchestrator struct {
	processor  Recognizer
	engine     *template.Engine
	ocr        provider.OCRProvider
	insight    provider.VisionAnalyzer
	compliance provider.VisionAnalyzer
	check      provider.Connectivity
	queue      *queue.Queue
	store      store.Store
	audit      AuditSink
	logger     *slog.Logger
}

// Options carries the optional collaborators of an Orchestrator.
type Options struct {
	OCR          provider.OCRProvider
	Insight      provider.VisionAnalyzer
	Compliance   provider.VisionAnalyzer
	Connectivity provider.Connectivity
	Audit        AuditSink
}

func New(processor Recognizer, engine *template.Engine, st store.Store, q *queue.Queue, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	audit := opts.Audit
	if audit == nil {
		audit = NewLogAuditSink(logger)
	}
	return &Orchestrator{
		processor:  processor,
		engine:     engine,
		ocr:        opts.OCR,
		insight:    opts.Insight,
		compliance: opts.Compliance,
		check:      opts.Connectivity,
		queue:      q,
		store:      st,
		audit:      audit,
		logger:     logger,
	}
}

// ProcessDocument runs the full pipeline for one captured document and
// persists the resulting insight. The document's stage marker advances
// as the run progresses; progress may be nil.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *entity.CapturedDocument, progress ProgressFunc) (*entity.CapturedInsight, error) {
	if doc == nil || len(doc.ImageData) == 0 {
		return nil, common.NewAppError("PIPELINE_INPUT", "document has no image data", common.ErrInvalidInput)
	}
	ctx = common.WithDocumentID(ctx, doc.ID.String())
	started := time.Now()

	ins := &entity.CapturedInsight{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		CreatedAt:  started.UTC(),
	}

	// stage 1: on-device recognition. A failure here fails the run;
	// without local text there is nothing to analyze or redact.
	o.advance(doc, constants.StageOnDeviceVision, progress)
	onDevice, err := o.runOnDevice(ctx, doc)
	if err != nil {
		doc.AdvanceStage(constants.StageFailed)
		return nil, common.WrapError(err, "on-device recognition")
	}
	ins.OnDevice = onDevice
	ins.PHIRedacted = onDevice.RedactedText != onDevice.Text
	if doc.DocumentType == "" || doc.DocumentType == constants.DocTypeGeneric {
		doc.DocumentType = vision.ClassifyText(onDevice.Text)
	}

	// stage 2: cloud OCR, deferred when unreachable
	o.advance(doc, constants.StageCloudOCR, progress)
	o.runCloudStages(ctx, doc, ins, progress)

	// stage 4: template analysis over the best available material
	ins.Template = o.engine.Analyze(doc.DocumentType, template.Input{
		Text:     unifiedText(ins),
		Tables:   cloudTables(ins),
		Entities: analyzerEntities(ins),
	})

	// stage 5: aggregation
	aggregate(ins, doc)
	o.advance(doc, constants.StageCompleted, progress)

	if err := o.store.SaveInsight(ctx, ins); err != nil {
		o.logger.Error("pipeline.save_insight.failed", "document_id", doc.ID, "error", err)
		return ins, common.WrapError(err, "save insight")
	}
	o.emitAudit(ctx, entity.AuditEvent{
		DocumentID: doc.ID,
		AccessType: "insight_created",
		Metadata: map[string]string{
			"document_type": string(doc.DocumentType),
			"deferred":      boolString(ins.DeferredCloudAnalysis),
		},
		OccurredAt: time.Now().UTC(),
	})

	o.logger.Info("pipeline.document.ok",
		"document_id", doc.ID,
		"document_type", string(doc.DocumentType),
		"deferred", ins.DeferredCloudAnalysis,
		"overall_confidence", ins.OverallConfidence,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return ins, nil
}

// ProcessBatch runs every page on-device, then treats the batch as one
// logical document: page texts are joined with form-feed separators and
// only the first page's image goes to the cloud vision providers.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batch *entity.DocumentBatch, progress ProgressFunc) (*entity.CapturedInsight, error) {
	if batch == nil || len(batch.Pages) == 0 {
		return nil, common.NewAppError("PIPELINE_INPUT", "batch has no pages", common.ErrInvalidInput)
	}
	if !batch.Finalized {
		return nil, common.NewAppError("PIPELINE_INPUT", "batch is not finalized", common.ErrInvalidInput)
	}

	first := &batch.Pages[0]
	merged := *first
	merged.PageCount = len(batch.Pages)

	var texts []string
	var redacted []string
	var confSum float32
	for i := range batch.Pages {
		page := &batch.Pages[i]
		res, err := o.runOnDevice(ctx, page)
		if err != nil {
			return nil, common.WrapError(err, "batch page recognition")
		}
		texts = append(texts, res.Text)
		redacted = append(redacted, res.RedactedText)
		confSum += res.Confidence
		if i == 0 {
			merged.DocumentType = vision.ClassifyText(res.Text)
		}
	}

	// the merged on-device result spans all pages; downstream stages see
	// the batch as a single multi-page document
	onDevice := &entity.OnDeviceResult{
		Text:         joinPages(texts),
		RedactedText: joinPages(redacted),
		Language:     first.Language,
		Confidence:   confSum / float32(len(batch.Pages)),
	}

	return o.processRecognized(ctx, &merged, onDevice, progress)
}

// processRecognized is ProcessDocument from the cloud stages on, for a
// document whose on-device result was produced elsewhere.
func (o *Orchestrator) processRecognized(ctx context.Context, doc *entity.CapturedDocument, onDevice *entity.OnDeviceResult, progress ProgressFunc) (*entity.CapturedInsight, error) {
	ctx = common.WithDocumentID(ctx, doc.ID.String())

	ins := &entity.CapturedInsight{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		OnDevice:   onDevice,
		CreatedAt:  time.Now().UTC(),
	}
	ins.PHIRedacted = onDevice.RedactedText != onDevice.Text

	o.advance(doc, constants.StageCloudOCR, progress)
	o.runCloudStages(ctx, doc, ins, progress)

	ins.Template = o.engine.Analyze(doc.DocumentType, template.Input{
		Text:     unifiedText(ins),
		Tables:   cloudTables(ins),
		Entities: analyzerEntities(ins),
	})

	aggregate(ins, doc)
	o.advance(doc, constants.StageCompleted, progress)

	if err := o.store.SaveInsight(ctx, ins); err != nil {
		return ins, common.WrapError(err, "save insight")
	}
	o.emitAudit(ctx, entity.AuditEvent{
		DocumentID: doc.ID,
		AccessType: "insight_created",
		OccurredAt: time.Now().UTC(),
	})
	return ins, nil
}

// runOnDevice recognizes text locally, redacts PHI and scans barcodes.
func (o *Orchestrator) runOnDevice(ctx context.Context, doc *entity.CapturedDocument) (*entity.OnDeviceResult, error) {
	var hints []string
	if doc.Language != "" {
		hints = append(hints, doc.Language)
	}
	res, err := o.processor.RecognizeText(ctx, doc.ImageData, hints)
	if err != nil {
		return nil, err
	}

	// redact iff PHI was found and the user did not consent to sharing
	res.RedactedText = res.Text
	if !doc.ShareConsent {
		detections := vision.DetectPHI(res.Text)
		res.RedactedText = vision.RedactPHI(res.Text, detections)
	}

	if barcodes, err := o.processor.DetectBarcodes(ctx, doc.ImageData); err == nil {
		res.Barcodes = barcodes
	}
	return res, nil
}

// runCloudStages performs cloud OCR and then fans out to both vision
// analyzers. Each provider call succeeds, defers or drops on its own;
// deferral flags are merged after the goroutines join so the insight
// is only touched from one goroutine.
func (o *Orchestrator) runCloudStages(ctx context.Context, doc *entity.CapturedDocument, ins *entity.CapturedInsight, progress ProgressFunc) {
	var toDefer []constants.JobType

	if o.ocr != nil {
		res, deferred := o.runCloudOCR(ctx, doc)
		ins.CloudOCR = res
		if deferred {
			toDefer = append(toDefer, constants.JobTypeCloudOCR)
		}
	}

	o.advance(doc, constants.StageMultimodalAnalysis, progress)

	req := provider.VisionRequest{
		ImageData:    doc.ImageData,
		Text:         redactedText(ins),
		DocumentType: string(doc.DocumentType),
		Language:     doc.Language,
	}

	var (
		insightRes, compRes *entity.VisionAnalysisResult
		insightDef, compDef bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if o.insight != nil {
		g.Go(func() error {
			insightRes, insightDef = o.runAnalyzer(gctx, o.insight, req, doc, constants.JobTypeInsight)
			return nil
		})
	}
	if o.compliance != nil {
		g.Go(func() error {
			compRes, compDef = o.runAnalyzer(gctx, o.compliance, req, doc, constants.JobTypeCompliance)
			return nil
		})
	}
	_ = g.Wait()

	ins.Insight = insightRes
	ins.Compliance = compRes
	if insightDef {
		toDefer = append(toDefer, constants.JobTypeInsight)
	}
	if compDef {
		toDefer = append(toDefer, constants.JobTypeCompliance)
	}

	for _, jobType := range toDefer {
		ins.DeferredCloudAnalysis = true
		o.deferJob(ctx, doc, ins, jobType)
	}
}

// runCloudOCR calls the cloud OCR provider. The deferred flag is set
// when the provider was unreachable; permanent failures are dropped
// with a log line. Either way the pipeline continues.
func (o *Orchestrator) runCloudOCR(ctx context.Context, doc *entity.CapturedDocument) (*entity.CloudOCRResult, bool) {
	if !o.online(ctx) {
		return nil, true
	}
	res, err := o.ocr.RecognizeDocument(ctx, provider.OCRRequest{
		ImageData: doc.ImageData,
		Language:  doc.Language,
	})
	if err == nil {
		return res, false
	}
	if isDeferrable(err) {
		return nil, true
	}
	o.logger.Warn("pipeline.cloud_ocr.dropped", "document_id", doc.ID, "error", err)
	return nil, false
}

func (o *Orchestrator) runAnalyzer(ctx context.Context, a provider.VisionAnalyzer, req provider.VisionRequest, doc *entity.CapturedDocument, jobType constants.JobType) (*entity.VisionAnalysisResult, bool) {
	if !o.online(ctx) {
		return nil, true
	}
	res, err := a.Analyze(ctx, req)
	if err == nil {
		return res, false
	}
	if isDeferrable(err) {
		return nil, true
	}
	o.logger.Warn("pipeline.analyzer.dropped",
		"provider", a.Name(), "document_id", doc.ID, "error", err)
	return nil, false
}

// deferJob enqueues an offline job carrying everything needed to replay
// the provider call and merge its result into the stored insight.
func (o *Orchestrator) deferJob(ctx context.Context, doc *entity.CapturedDocument, ins *entity.CapturedInsight, jobType constants.JobType) {
	payload := entity.JobPayload{
		InsightID:    ins.ID,
		ImageData:    doc.ImageData,
		DocumentType: string(doc.DocumentType),
		Language:     doc.Language,
	}
	if jobType != constants.JobTypeCloudOCR {
		payload.Text = redactedText(ins)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("pipeline.defer.marshal_failed", "document_id", doc.ID, "error", err)
		return
	}

	job := &entity.OfflineCaptureJob{
		DocumentID: doc.ID,
		Type:       jobType,
		Payload:    raw,
		Priority:   jobPriority(jobType),
	}
	if err := o.queue.Enqueue(ctx, job); err != nil {
		o.logger.Error("pipeline.defer.enqueue_failed", "document_id", doc.ID, "error", err)
		return
	}
	o.logger.Info("pipeline.deferred", "document_id", doc.ID, "job_type", string(jobType))
}

func (o *Orchestrator) online(ctx context.Context) bool {
	if o.check == nil {
		return true
	}
	return o.check.Online(ctx)
}

func (o *Orchestrator) advance(doc *entity.CapturedDocument, stage constants.ProcessingStage, progress ProgressFunc) {
	if doc.AdvanceStage(stage) && progress != nil {
		progress(stage, constants.StageProgress(stage))
	}
}

func (o *Orchestrator) emitAudit(ctx context.Context, ev entity.AuditEvent) {
	if err := o.audit.Record(ctx, ev); err != nil {
		o.logger.Warn("pipeline.audit.failed", "document_id", ev.DocumentID, "error", err)
	}
}

// isDeferrable separates transient failures, which earn a queue slot,
// from permanent ones, which are dropped.
func isDeferrable(err error) bool {
	if errors.Is(err, common.ErrNetworkUnavailable) {
		return true
	}
	return common.IsRetryable(err)
}

// jobPriority ranks deferred work: OCR replays before analysis because
// its text improves the replayed analyzer calls.
func jobPriority(t constants.JobType) int {
	switch t {
	case constants.JobTypeCloudOCR:
		return 10
	case constants.JobTypeInsight:
		return 5
	case constants.JobTypeCompliance:
		return 5
	default:
		return 0
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func joinPages(pages []string) string {
	return strings.Join(pages, "\f")
}
