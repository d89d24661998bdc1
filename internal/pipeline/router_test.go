package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
)

func seedDeferredInsight(t *testing.T, h *testHarness) *entity.CapturedInsight {
	t.Helper()
	ins := &entity.CapturedInsight{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		OnDevice: &entity.OnDeviceResult{
			Text:         "Patient Name: John Smith\nGlucose: 95 mg/dL",
			RedactedText: "Patient Name: **********\nGlucose: 95 mg/dL",
			Confidence:   0.9,
		},
		DocumentType:          constants.DocTypeMedicalReport,
		DeferredCloudAnalysis: true,
	}
	if err := h.store.SaveInsight(context.Background(), ins); err != nil {
		t.Fatal(err)
	}
	return ins
}

func seedJob(t *testing.T, h *testHarness, ins *entity.CapturedInsight, jt constants.JobType, text string) *entity.OfflineCaptureJob {
	t.Helper()
	raw, err := json.Marshal(entity.JobPayload{
		InsightID:    ins.ID,
		Text:         text,
		ImageData:    []byte("fake-png-bytes"),
		DocumentType: string(ins.DocumentType),
	})
	if err != nil {
		t.Fatal(err)
	}
	job := &entity.OfflineCaptureJob{
		ID:         uuid.New(),
		DocumentID: ins.DocumentID,
		Type:       jt,
		Payload:    raw,
		Priority:   jobPriority(jt),
		Status:     constants.JobStatusPending,
	}
	if err := h.store.SaveJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestRouteReplaysAnalyzer(t *testing.T) {
	insight := &fakeAnalyzer{name: "insight", res: &entity.VisionAnalysisResult{
		Provider:   "insight",
		Summary:    "Values within range.",
		Confidence: 0.7,
	}}
	h := newHarness(&fakeRecognizer{}, Options{Insight: insight})

	ins := seedDeferredInsight(t, h)
	job := seedJob(t, h, ins, constants.JobTypeInsight, ins.OnDevice.RedactedText)

	if err := h.orch.Route(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if insight.lastReq.Text != ins.OnDevice.RedactedText {
		t.Errorf("analyzer saw %q, want the payload text", insight.lastReq.Text)
	}

	stored, err := h.store.GetInsight(context.Background(), ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Insight == nil || stored.Insight.Summary != "Values within range." {
		t.Fatalf("replayed result not merged: %+v", stored.Insight)
	}
	if stored.UnifiedSummary != "Values within range." {
		t.Errorf("summary not re-derived: %q", stored.UnifiedSummary)
	}
	if math.Abs(float64(stored.OverallConfidence)-0.8) > 1e-6 {
		t.Errorf("confidence = %v, want mean of both providers", stored.OverallConfidence)
	}
	if stored.DeferredCloudAnalysis {
		t.Error("no other pending job exists; deferred flag must clear")
	}
}

func TestRouteOCRReplayKeepsDeferredWhileSiblingsPend(t *testing.T) {
	ocr := &fakeOCR{res: &entity.CloudOCRResult{
		Text:       "LAB RESULTS\nGlucose: 40 mg/dL",
		Confidence: 0.95,
	}}
	h := newHarness(&fakeRecognizer{}, Options{OCR: ocr})

	ins := seedDeferredInsight(t, h)
	ocrJob := seedJob(t, h, ins, constants.JobTypeCloudOCR, "")
	seedJob(t, h, ins, constants.JobTypeCompliance, ins.OnDevice.RedactedText)

	if err := h.orch.Route(context.Background(), ocrJob); err != nil {
		t.Fatal(err)
	}

	stored, err := h.store.GetInsight(context.Background(), ins.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.UnifiedText != ocr.res.Text {
		t.Errorf("unified text = %q, want the replayed OCR text", stored.UnifiedText)
	}
	if stored.Template == nil || !stored.Template.HasCritical() {
		t.Error("better OCR text should re-run structured extraction")
	}
	if !stored.DeferredCloudAnalysis {
		t.Error("a sibling job is still pending; deferred flag must stay")
	}
}

func TestRouteAnalyzerPrefersReplayedOCRText(t *testing.T) {
	compliance := &fakeAnalyzer{name: "compliance", res: &entity.VisionAnalysisResult{
		Provider:   "compliance",
		Summary:    "Checked.",
		Confidence: 0.6,
	}}
	h := newHarness(&fakeRecognizer{}, Options{Compliance: compliance})

	ins := seedDeferredInsight(t, h)
	ins.CloudOCR = &entity.CloudOCRResult{Text: "cloud text", Confidence: 0.95}
	if err := h.store.SaveInsight(context.Background(), ins); err != nil {
		t.Fatal(err)
	}
	job := seedJob(t, h, ins, constants.JobTypeCompliance, "stale payload text")

	if err := h.orch.Route(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if compliance.lastReq.Text != "cloud text" {
		t.Errorf("analyzer saw %q, want the stored OCR text", compliance.lastReq.Text)
	}
}

func TestRouteProviderFailurePropagates(t *testing.T) {
	insight := &fakeAnalyzer{name: "insight", err: &common.ProviderError{Provider: "insight", StatusCode: 503}}
	h := newHarness(&fakeRecognizer{}, Options{Insight: insight})

	ins := seedDeferredInsight(t, h)
	job := seedJob(t, h, ins, constants.JobTypeInsight, "text")

	if err := h.orch.Route(context.Background(), job); err == nil {
		t.Fatal("provider failure must surface so the drain can mark the job failed")
	}

	stored, _ := h.store.GetInsight(context.Background(), ins.ID)
	if stored.Insight != nil {
		t.Error("failed replay must not merge anything")
	}
}

func TestRouteErrors(t *testing.T) {
	h := newHarness(&fakeRecognizer{}, Options{})
	ins := seedDeferredInsight(t, h)

	t.Run("undecodable payload", func(t *testing.T) {
		job := &entity.OfflineCaptureJob{ID: uuid.New(), Type: constants.JobTypeInsight, Payload: []byte("{")}
		if err := h.orch.Route(context.Background(), job); err == nil {
			t.Error("expected a payload error")
		}
	})

	t.Run("missing insight", func(t *testing.T) {
		raw, _ := json.Marshal(entity.JobPayload{InsightID: uuid.New()})
		job := &entity.OfflineCaptureJob{ID: uuid.New(), Type: constants.JobTypeInsight, Payload: raw}
		if err := h.orch.Route(context.Background(), job); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		job := seedJob(t, h, ins, constants.JobTypeCloudOCR, "")
		if err := h.orch.Route(context.Background(), job); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})

	t.Run("unknown job type", func(t *testing.T) {
		job := seedJob(t, h, ins, constants.JobType("REWRITE_HISTORY"), "")
		if err := h.orch.Route(context.Background(), job); !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("expected invalid input, got %v", err)
		}
	})
}
