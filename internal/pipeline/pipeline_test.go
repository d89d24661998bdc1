package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
	"github.com/medscan-app/medscan/internal/provider"
	"github.com/medscan-app/medscan/internal/queue"
	"github.com/medscan-app/medscan/internal/store"
	"github.com/medscan-app/medscan/internal/template"
)

const sampleText = "Laboratory Report\nPatient Name: John Smith\nGlucose: 95 mg/dL"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecognizer struct {
	text     string
	conf     float32
	err      error
	barcodes []entity.BarcodeResult
}

func (f *fakeRecognizer) RecognizeText(_ context.Context, _ []byte, _ []string) (*entity.OnDeviceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.OnDeviceResult{Text: f.text, Language: "eng", Confidence: f.conf}, nil
}

func (f *fakeRecognizer) DetectBarcodes(context.Context, []byte) ([]entity.BarcodeResult, error) {
	return f.barcodes, nil
}

type fakeOCR struct {
	res     *entity.CloudOCRResult
	err     error
	calls   int
	lastReq provider.OCRRequest
}

func (f *fakeOCR) Name() string { return "fake-ocr" }

func (f *fakeOCR) RecognizeDocument(_ context.Context, req provider.OCRRequest) (*entity.CloudOCRResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeAnalyzer struct {
	name    string
	res     *entity.VisionAnalysisResult
	err     error
	calls   int
	lastReq provider.VisionRequest
}

func (f *fakeAnalyzer) Name() string { return f.name }

func (f *fakeAnalyzer) Analyze(_ context.Context, req provider.VisionRequest) (*entity.VisionAnalysisResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type staticOnline bool

func (s staticOnline) Online(context.Context) bool { return bool(s) }

type testHarness struct {
	orch  *Orchestrator
	store store.Store
	queue *queue.Queue
}

func newHarness(rec Recognizer, opts Options) *testHarness {
	logger := discardLogger()
	st := store.NewMemoryStore()
	q := queue.New(st, logger)
	return &testHarness{
		orch:  New(rec, template.NewEngine(logger), st, q, opts, logger),
		store: st,
		queue: q,
	}
}

func testDoc() *entity.CapturedDocument {
	return &entity.CapturedDocument{
		ID:        uuid.New(),
		ImageData: []byte("fake-png-bytes"),
		Stage:     constants.StageCaptured,
	}
}

func TestProcessDocumentOnline(t *testing.T) {
	ocr := &fakeOCR{res: &entity.CloudOCRResult{
		Text:       "LAB RESULTS\nGlucose: 40 mg/dL\nCholesterol: 180 mg/dL",
		Confidence: 0.9,
	}}
	insight := &fakeAnalyzer{name: "insight", res: &entity.VisionAnalysisResult{
		Provider:   "insight",
		Summary:    "Glucose is critically low.",
		Entities:   []string{"Glucose", "Cholesterol"},
		Confidence: 0.7,
	}}
	compliance := &fakeAnalyzer{name: "compliance", res: &entity.VisionAnalysisResult{
		Provider: "compliance",
		Summary:  "One labeling concern found.",
		Entities: []string{"glucose"},
		ComplianceChecks: []entity.ComplianceCheck{
			{Rule: "units-labeled", Status: constants.CompliancePassed},
			{Rule: "range-printed", Status: constants.ComplianceWarning},
		},
		Confidence: 0.6,
	}}
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{
		OCR:          ocr,
		Insight:      insight,
		Compliance:   compliance,
		Connectivity: staticOnline(true),
	})

	doc := testDoc()
	ins, err := h.orch.ProcessDocument(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}

	if doc.Stage != constants.StageCompleted {
		t.Errorf("stage = %s, want COMPLETED", doc.Stage)
	}
	if ins.DocumentType != constants.DocTypeMedicalReport {
		t.Errorf("document type = %s, want MEDICAL_REPORT", ins.DocumentType)
	}
	if ins.UnifiedText != ocr.res.Text {
		t.Errorf("unified text must prefer cloud OCR, got %q", ins.UnifiedText)
	}
	if ins.DeferredCloudAnalysis {
		t.Error("nothing was deferred on a fully online run")
	}
	if math.Abs(float64(ins.OverallConfidence)-0.75) > 1e-6 {
		t.Errorf("overall confidence = %v, want mean 0.75", ins.OverallConfidence)
	}
	if ins.ComplianceStatus != constants.ComplianceWarning {
		t.Errorf("compliance status = %s, want WARNING", ins.ComplianceStatus)
	}
	if got := strings.Join(ins.Entities, ","); got != "Glucose,Cholesterol" {
		t.Errorf("entities not merged uniquely: %q", got)
	}

	// providers receive only PHI-redacted text
	if strings.Contains(insight.lastReq.Text, "John Smith") {
		t.Error("unredacted name leaked to the insight analyzer")
	}
	if !strings.Contains(compliance.lastReq.Text, "*") {
		t.Error("compliance analyzer should see masked text")
	}

	// template analysis ran over the cloud text
	if ins.Template == nil || !ins.Template.HasCritical() {
		t.Error("expected a critical lab finding from the cloud OCR text")
	}

	stored, err := h.store.GetInsight(context.Background(), ins.ID)
	if err != nil {
		t.Fatalf("insight not persisted: %v", err)
	}
	if stored.UnifiedSummary != "Glucose is critically low. One labeling concern found." {
		t.Errorf("unified summary = %q", stored.UnifiedSummary)
	}

	jobs, _ := h.queue.PendingJobs(context.Background())
	if len(jobs) != 0 {
		t.Errorf("expected no deferred jobs, got %d", len(jobs))
	}
}

func TestProcessDocumentOffline(t *testing.T) {
	ocr := &fakeOCR{}
	insight := &fakeAnalyzer{name: "insight"}
	compliance := &fakeAnalyzer{name: "compliance"}
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.9}, Options{
		OCR:          ocr,
		Insight:      insight,
		Compliance:   compliance,
		Connectivity: staticOnline(false),
	})

	doc := testDoc()
	ins, err := h.orch.ProcessDocument(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}

	if ocr.calls != 0 || insight.calls != 0 || compliance.calls != 0 {
		t.Error("providers must not be called while offline")
	}
	if !ins.DeferredCloudAnalysis {
		t.Error("deferred flag not set")
	}
	if !ins.PHIRedacted {
		t.Error("labeled patient name should have been redacted")
	}
	if ins.OverallConfidence != 0.9 {
		t.Errorf("confidence = %v, want the sole on-device confidence", ins.OverallConfidence)
	}
	if ins.ComplianceStatus != constants.ComplianceNotApplicable {
		t.Errorf("compliance status = %s, want NOT_APPLICABLE", ins.ComplianceStatus)
	}
	if ins.UnifiedSummary != pendingSummary {
		t.Errorf("summary = %q, want the pending placeholder", ins.UnifiedSummary)
	}

	jobs, err := h.queue.PendingJobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 deferred jobs, got %d", len(jobs))
	}
	if jobs[0].Type != constants.JobTypeCloudOCR || jobs[0].Priority != 10 {
		t.Errorf("OCR replay must drain first, got %s priority %d", jobs[0].Type, jobs[0].Priority)
	}
	seen := map[constants.JobType]*entity.OfflineCaptureJob{}
	for _, j := range jobs {
		seen[j.Type] = j
		if j.DocumentID != doc.ID {
			t.Errorf("job %s bound to wrong document", j.Type)
		}
	}
	for _, jt := range []constants.JobType{constants.JobTypeInsight, constants.JobTypeCompliance} {
		j, ok := seen[jt]
		if !ok {
			t.Fatalf("missing deferred job %s", jt)
		}
		if j.Priority != 5 {
			t.Errorf("job %s priority = %d, want 5", jt, j.Priority)
		}
		var payload entity.JobPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.InsightID != ins.ID {
			t.Errorf("job %s payload points at wrong insight", jt)
		}
		if strings.Contains(payload.Text, "John Smith") {
			t.Errorf("job %s payload carries unredacted text", jt)
		}
	}

	var ocrPayload entity.JobPayload
	if err := json.Unmarshal(seen[constants.JobTypeCloudOCR].Payload, &ocrPayload); err != nil {
		t.Fatal(err)
	}
	if len(ocrPayload.ImageData) == 0 {
		t.Error("OCR replay payload needs the image")
	}
}

func TestProcessDocumentShareConsent(t *testing.T) {
	insight := &fakeAnalyzer{name: "insight", res: &entity.VisionAnalysisResult{
		Provider: "insight", Summary: "ok", Confidence: 0.7,
	}}
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{
		Insight:      insight,
		Connectivity: staticOnline(true),
	})

	doc := testDoc()
	doc.ShareConsent = true
	ins, err := h.orch.ProcessDocument(context.Background(), doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ins.PHIRedacted {
		t.Error("consented run must not redact")
	}
	if !strings.Contains(insight.lastReq.Text, "John Smith") {
		t.Errorf("consented run should share the raw text, analyzer saw %q", insight.lastReq.Text)
	}
}

func TestProcessDocumentProgress(t *testing.T) {
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{})

	type step struct {
		stage constants.ProcessingStage
		frac  float64
	}
	var got []step
	_, err := h.orch.ProcessDocument(context.Background(), testDoc(), func(s constants.ProcessingStage, f float64) {
		got = append(got, step{s, f})
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []step{
		{constants.StageOnDeviceVision, 0.2},
		{constants.StageCloudOCR, 0.4},
		{constants.StageMultimodalAnalysis, 0.6},
		{constants.StageCompleted, 1.0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d progress steps, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestProcessDocumentRecognizerFailure(t *testing.T) {
	h := newHarness(&fakeRecognizer{err: errors.New("ocr binary missing")}, Options{})

	doc := testDoc()
	if _, err := h.orch.ProcessDocument(context.Background(), doc, nil); err == nil {
		t.Fatal("on-device failure must fail the run")
	}
	if doc.Stage != constants.StageFailed {
		t.Errorf("stage = %s, want FAILED", doc.Stage)
	}
}

func TestProcessDocumentNoImage(t *testing.T) {
	h := newHarness(&fakeRecognizer{text: sampleText}, Options{})
	_, err := h.orch.ProcessDocument(context.Background(), &entity.CapturedDocument{ID: uuid.New()}, nil)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestPermanentProviderFailureDropped(t *testing.T) {
	ocr := &fakeOCR{err: &common.ProviderError{Provider: "fake-ocr", StatusCode: 400}}
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{
		OCR:          ocr,
		Connectivity: staticOnline(true),
	})

	ins, err := h.orch.ProcessDocument(context.Background(), testDoc(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ins.CloudOCR != nil {
		t.Error("rejected provider call must contribute nothing")
	}
	if ins.DeferredCloudAnalysis {
		t.Error("client errors are dropped, not deferred")
	}
	if !strings.Contains(ins.UnifiedText, "Glucose") {
		t.Errorf("unified text must fall back on-device, got %q", ins.UnifiedText)
	}
	jobs, _ := h.queue.PendingJobs(context.Background())
	if len(jobs) != 0 {
		t.Errorf("expected no jobs for a permanent failure, got %d", len(jobs))
	}
}

func TestTransientProviderFailureDeferred(t *testing.T) {
	ocr := &fakeOCR{err: &common.ProviderError{Provider: "fake-ocr", StatusCode: 503}}
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{
		OCR:          ocr,
		Connectivity: staticOnline(true),
	})

	ins, err := h.orch.ProcessDocument(context.Background(), testDoc(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ins.DeferredCloudAnalysis {
		t.Error("server errors after retry exhaustion must defer")
	}
	jobs, _ := h.queue.PendingJobs(context.Background())
	if len(jobs) != 1 || jobs[0].Type != constants.JobTypeCloudOCR {
		t.Errorf("expected one deferred OCR job, got %v", jobs)
	}
}

func TestProcessBatch(t *testing.T) {
	h := newHarness(&fakeRecognizer{text: sampleText, conf: 0.8}, Options{})

	batchID := uuid.New()
	batch := &entity.DocumentBatch{
		ID:        batchID,
		Finalized: true,
		Pages: []entity.CapturedDocument{
			{ID: uuid.New(), BatchID: &batchID, ImageData: []byte("page-1"), Stage: constants.StageCaptured},
			{ID: uuid.New(), BatchID: &batchID, ImageData: []byte("page-2"), Stage: constants.StageCaptured},
		},
	}

	ins, err := h.orch.ProcessBatch(context.Background(), batch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(ins.OnDevice.Text, "\f"); got != 1 {
		t.Errorf("expected one page separator, got %d", got)
	}
	if math.Abs(float64(ins.OnDevice.Confidence)-0.8) > 1e-6 {
		t.Errorf("batch confidence = %v, want page mean", ins.OnDevice.Confidence)
	}
	if ins.DocumentType != constants.DocTypeMedicalReport {
		t.Errorf("document type = %s, want classification from page one", ins.DocumentType)
	}
}

func TestProcessBatchRejectsUnfinalized(t *testing.T) {
	h := newHarness(&fakeRecognizer{text: sampleText}, Options{})

	batch := &entity.DocumentBatch{
		ID:    uuid.New(),
		Pages: []entity.CapturedDocument{{ID: uuid.New(), ImageData: []byte("x")}},
	}
	if _, err := h.orch.ProcessBatch(context.Background(), batch, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("unfinalized batch must be rejected, got %v", err)
	}
	if _, err := h.orch.ProcessBatch(context.Background(), &entity.DocumentBatch{Finalized: true}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("empty batch must be rejected, got %v", err)
	}
}
