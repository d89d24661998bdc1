package pipeline

import (
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

const pendingSummary = "Cloud analysis pending; summary will be completed when connectivity returns."

// aggregate fills the derived fields of an insight from whatever
// providers completed. Confidence is always the mean of the present
// provider confidences.
func aggregate(ins *entity.CapturedInsight, doc *entity.CapturedDocument) {
	ins.DocumentType = doc.DocumentType
	reaggregate(ins)
}

// reaggregate recomputes the derived fields in place, used both at the
// end of a run and after a deferred provider result is merged in.
func reaggregate(ins *entity.CapturedInsight) {
	ins.UnifiedText = unifiedText(ins)
	ins.UnifiedSummary = unifiedSummary(ins)
	ins.Entities = mergeUnique(analyzerEntities(ins))
	ins.ActionItems = mergeUnique(analyzerActionItems(ins))
	ins.OverallConfidence = meanConfidence(ins.ProviderConfidences())
	ins.ComplianceStatus = deriveComplianceStatus(ins.Compliance)
}

// unifiedText prefers the higher-fidelity cloud OCR text and falls back
// to the on-device recognition.
func unifiedText(ins *entity.CapturedInsight) string {
	if ins.CloudOCR != nil && ins.CloudOCR.Text != "" {
		return ins.CloudOCR.Text
	}
	if ins.OnDevice != nil {
		return ins.OnDevice.Text
	}
	return ""
}

// redactedText is what leaves the device: cloud OCR output is already
// remote, so only the on-device redacted text is offered to analyzers.
func redactedText(ins *entity.CapturedInsight) string {
	if ins.OnDevice != nil && ins.OnDevice.RedactedText != "" {
		return ins.OnDevice.RedactedText
	}
	if ins.OnDevice != nil {
		return ins.OnDevice.Text
	}
	return ""
}

func unifiedSummary(ins *entity.CapturedInsight) string {
	var parts []string
	if ins.Insight != nil && ins.Insight.Summary != "" {
		parts = append(parts, ins.Insight.Summary)
	}
	if ins.Compliance != nil && ins.Compliance.Summary != "" {
		parts = append(parts, ins.Compliance.Summary)
	}
	if len(parts) == 0 {
		if ins.DeferredCloudAnalysis {
			return pendingSummary
		}
		return "No cloud analysis available for this document."
	}
	return strings.Join(parts, " ")
}

func cloudTables(ins *entity.CapturedInsight) []entity.TableStructure {
	if ins.CloudOCR == nil {
		return nil
	}
	return ins.CloudOCR.Tables
}

func analyzerEntities(ins *entity.CapturedInsight) []string {
	var out []string
	if ins.Insight != nil {
		out = append(out, ins.Insight.Entities...)
	}
	if ins.Compliance != nil {
		out = append(out, ins.Compliance.Entities...)
	}
	return out
}

func analyzerActionItems(ins *entity.CapturedInsight) []string {
	var out []string
	if ins.Insight != nil {
		out = append(out, ins.Insight.ActionItems...)
	}
	if ins.Compliance != nil {
		out = append(out, ins.Compliance.ActionItems...)
	}
	return out
}

func mergeUnique(items []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func meanConfidence(confs []float32) float32 {
	if len(confs) == 0 {
		return 0
	}
	var sum float32
	for _, c := range confs {
		sum += c
	}
	return sum / float32(len(confs))
}

// deriveComplianceStatus folds the compliance analyzer's checks into a
// single status: any failure wins, then any warning, then passed.
func deriveComplianceStatus(comp *entity.VisionAnalysisResult) constants.ComplianceStatus {
	if comp == nil || len(comp.ComplianceChecks) == 0 {
		return constants.ComplianceNotApplicable
	}
	status := constants.CompliancePassed
	for _, check := range comp.ComplianceChecks {
		switch check.Status {
		case constants.ComplianceFailed:
			return constants.ComplianceFailed
		case constants.ComplianceWarning:
			status = constants.ComplianceWarning
		}
	}
	return status
}
